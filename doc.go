// Package authmachine is a client-side authentication engine for a Cognito
// style user pool and identity pool, driven by a hierarchical state machine.
//
// An [Engine] owns one session. Every operation builds an event, sends it to
// the machine and waits on the published states for the outcome. Flows such
// as sign-in, sign-up, sign-out and credential fetching are resolved by pure
// resolvers in internal/flows; provider calls run as actions outside the
// dispatch loop.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authmachine is the public surface. It exposes [Engine], [Builder], [Config]
// and the operation value types. The state and event unions live in package
// state, and the dispatcher in package statemachine. Provider adapters live
// under provider/ and the credential stores under credstore/.
//
// # What this package must NOT do
//
//   - Persist anything other than credentials.
//   - Hold global state. Two engines share nothing.
//   - Import any sub-package that re-imports authmachine.
package authmachine
