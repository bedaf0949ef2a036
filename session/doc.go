// Package session owns the process-wide authentication state of a dashboard client:
// the authenticated flag, the cached [UserRecord], and the bearer credential, together
// with their persistence and the "authentication invalidated" signal.
//
// # Lifecycle
//
// A [Store] is created empty, rehydrated once by [Store.Initialize], mutated by
// [Store.Login], [Store.Logout], [Store.RefetchUser] and the invalidation signal, and
// reset to empty on logout. Every logout ends a lifetime segment: the context returned
// by [Store.Lifetime] is cancelled so requests bound to it are discarded.
//
// # Architecture boundaries
//
// Persistence goes through the [Storage] key-value interface (see package storage for
// implementations). The backend is reached only through [Backend]; navigation to the
// login surface only through [Navigator].
//
// # What this package must NOT do
//
//   - Persist a credential that fails token validation.
//   - Hold its lock while calling storage, the backend, hooks, or subscribers.
//   - Import api, guard, or dashAuth.
package session
