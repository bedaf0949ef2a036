// Package storage provides the persistence backends a session.Store keeps its
// credential and user entries in.
//
//   - [Memory]: process-local, lost on exit. Default for tests and servers.
//   - [File]: a 0600 JSON file, re-read on every Get so that a logout performed by
//     another process sharing the file is observed on the next request.
//   - [Redis]: shared between processes; implements session.Watcher through pub/sub so
//     a logout elsewhere invalidates every process using the same namespace.
//
// # What this package must NOT do
//
//   - Interpret the stored values (credentials and user records are opaque strings).
//   - Import session, api, or dashAuth.
package storage
