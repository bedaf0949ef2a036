// Package devserver is a development stand-in for the dashboard REST API. It issues
// signed credentials, serves the signed-in profile, honours remote logout with
// server-side revocation, and answers the search collaborators with canned data.
//
// Revoked credentials receive the force_logout envelope so clients exercise their
// invalidation path end to end.
//
// # What this package must NOT do
//
//   - Serve production traffic; accounts and fixtures are in memory.
package devserver
