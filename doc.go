// Package dashAuth is the session and access-control layer of the manufacturing
// dashboard client. It owns one authenticated session: the bearer credential and the
// signed-in user's profile, persisted across restarts, kept consistent with the
// backend, and used to decide which routes the user may reach.
//
// A [Client] is assembled with [Builder]:
//
//	c, err := dashAuth.New().
//		WithConfig(cfg).
//		WithNavigator(nav).
//		Build()
//
// Client methods are safe to call from multiple goroutines after [Client.Initialize].
//
// # Architecture boundaries
//
// dashAuth is the public facade. Credential inspection lives in token, level
// resolution in permission, session state in session, persistence in storage,
// decisions in guard, HTTP enforcement in middleware, and the REST client with its
// credential interceptor in api.
//
// # What this package must NOT do
//
//   - Verify credential signatures; the backend is authoritative.
//   - Treat a client-side Allowed decision as a security boundary for data access.
//   - Import any sub-package that re-imports dashAuth.
package dashAuth
