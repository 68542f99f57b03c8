package statemachine

import "context"

// Event is the unit of input to a [Machine].
type Event interface {
	EventID() string
	EventName() string
}

// Dispatcher accepts events. Actions receive the machine as a Dispatcher so
// that their only way out is emitting events.
type Dispatcher interface {
	Send(ctx context.Context, event Event) error
}

// Action is a side-effecting unit of work requested by a resolution. It runs
// on its own goroutine with the environment E and reports back by sending
// events.
type Action[E any] interface {
	Identifier() string
	Execute(ctx context.Context, dispatcher Dispatcher, env E)
}

// Resolution is a resolver's output. Actions are requested, not yet run.
type Resolution[S any, E any] struct {
	NewState S
	Actions  []Action[E]
}

// From returns a resolution that keeps s and requests nothing.
func From[S any, E any](s S) Resolution[S, E] {
	return Resolution[S, E]{NewState: s}
}

// Resolver computes the next state for an event. Implementations must be pure:
// no I/O, no clock, no mutation of old.
type Resolver[S any, E any] interface {
	Resolve(old S, event Event) Resolution[S, E]
}

// ResolverFunc adapts a function to [Resolver].
type ResolverFunc[S any, E any] func(old S, event Event) Resolution[S, E]

func (f ResolverFunc[S, E]) Resolve(old S, event Event) Resolution[S, E] {
	return f(old, event)
}

// ActionFunc adapts a function to [Action].
type ActionFunc[E any] struct {
	Name string
	Fn   func(ctx context.Context, dispatcher Dispatcher, env E)
}

func (a ActionFunc[E]) Identifier() string { return a.Name }

func (a ActionFunc[E]) Execute(ctx context.Context, dispatcher Dispatcher, env E) {
	if a.Fn != nil {
		a.Fn(ctx, dispatcher, env)
	}
}
