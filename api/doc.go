// Package api is the dashboard REST client. Every request passes through an
// [Interceptor], which attaches the session credential and turns server-signalled
// invalidation (HTTP 401 or a force_logout envelope) into the session's invalidation
// signal.
//
// # Response envelopes
//
// The backend answers either with a bare JSON document or with an envelope
//
//	{"success": bool, "message": string, "results": any}
//
// [Client.Do] unwraps envelopes transparently and reports success=false as an
// [*APIError].
//
// # What this package must NOT do
//
//   - Decide authorization; it only reports what the server said.
//   - Mutate session state other than through [CredentialSource].
package api
