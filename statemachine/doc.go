// Package statemachine is a generic, serialized event dispatcher.
//
// A [Machine] owns one current state of type S. Events sent to it are applied
// strictly one at a time, in submission order, by a single goroutine: the
// [Resolver] computes the next state and the actions to run, the new state is
// published to every listener, and each action is started on its own
// goroutine. Actions talk back to the machine only by sending more events.
//
// # Architecture boundaries
//
// The package knows nothing about authentication. State, event and
// environment types are supplied by the caller (see package state and
// internal/flows).
//
// # What this package must NOT do
//
//   - Let an action or listener write the current state.
//   - Block the dispatch loop on a slow listener.
//   - Enforce timeouts on flows. Cancellation is driven by events.
package statemachine
