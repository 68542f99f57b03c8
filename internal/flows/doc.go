// Package flows contains the resolvers and actions of every authentication
// and authorization flow.
//
// Resolvers are pure functions of (state, event). They compose explicitly:
// each parent resolver struct holds its children as values, delegates the
// events a child owns, and re-wraps the child's result. Actions are the only
// place where I/O happens; they call the collaborators in [Environment] and
// report back by sending events.
//
// # Architecture boundaries
//
// The dispatch loop lives in statemachine and the public operations in the
// root package. This package owns neither: it only describes how a state
// reacts to an event and which work that reaction requests.
//
// # What this package must NOT do
//
//   - Read the clock, perform I/O or log inside a resolver.
//   - Mutate state from an action. Actions only emit events.
//   - Import the root package (to avoid import cycles).
package flows
