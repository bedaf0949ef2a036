// Package token decodes and checks dashboard bearer credentials without contacting
// the backend, and mints signed credentials for the development backend and tests.
//
// # Validity
//
// A credential is a three-segment JWT. Only the middle (payload) segment is read on
// the client: it must be base64url JSON carrying a numeric exp claim. A credential is
// valid iff decoding succeeds and the current time in milliseconds is strictly less
// than exp*1000. Every failure maps to false.
//
// # Architecture boundaries
//
// [Validator] is pure over its input and the injected clock. [Issuer] is the only type
// that touches signing keys and is never used on the client path.
//
// # What this package must NOT do
//
//   - Return an error or panic from [Validator.IsValid].
//   - Treat an undecodable or exp-less credential as valid.
//   - Import session, api, or dashAuth.
package token
