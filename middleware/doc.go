// Package middleware adapts the access guard to net/http route wrappers.
//
// # Guards
//
//   - [Guard]: evaluates an arbitrary [guard.Requirement].
//   - [RequireLevel]: minimum canonical level only.
//   - [RequireRoles]: role-group labels only.
//
// Each guard reads the current session snapshot, resolves a pending profile by
// refetching it once, and either redirects or calls the wrapped handler with the
// snapshot in the request context.
//
// # Architecture boundaries
//
// This package translates guard decisions into HTTP responses. All decisions are
// delegated to the [Authorizer].
//
// # What this package must NOT do
//
//   - Read or validate credentials directly.
//   - Mutate session state other than requesting a profile refetch.
package middleware
