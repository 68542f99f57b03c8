// Package audit delivers auth lifecycle events (signed in, signed out,
// session expired, ...) to caller-supplied sinks.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op, fan-out).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured record with timestamp, type, user, identity and metadata.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does not decide which
// events to emit; the engine derives them from state transitions.
package audit
