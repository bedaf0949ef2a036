// Package audit implements async event dispatching for session transitions and
// access decisions.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured record with timestamp, type, user, role, level, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the client facade does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import dashAuth or any sibling package.
package audit
