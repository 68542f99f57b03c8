// Package state defines the closed state and event unions driven by the
// authentication state machine, together with the value records they carry.
//
// Every union is a sealed interface with an unexported marker method. Variants
// are plain structs, so two states compare structurally and a state value can
// be shared freely between the dispatch loop, actions and listeners.
//
// # Architecture boundaries
//
// This package owns types only. Resolvers live in internal/flows, the
// dispatch loop in statemachine, and the public operations in the root
// package.
//
// # What this package must NOT do
//
//   - Perform I/O or read the clock.
//   - Import statemachine, internal/flows or the root package.
//   - Mutate a state value after it has been constructed.
package state
