package statemachine

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize       = 64
	defaultListenerBacklog = 1024
)

// Transition describes one resolved event. Changed is false when the resolver
// returned a state equal to the old one, in which case nothing was published.
type Transition[S any] struct {
	Event    Event
	Old      S
	New      S
	Changed  bool
	Actions  []string
	Duration time.Duration
}

// Observer is called on the dispatch goroutine after every resolution. It must
// not block and must not call Send.
type Observer[S any] func(Transition[S])

// Options configures a [Machine]. The zero value is usable.
type Options[S any] struct {
	Logger *slog.Logger

	// QueueSize bounds the number of accepted but unresolved events. Send
	// blocks while the queue is full.
	QueueSize int

	// ListenerBacklog is the number of undelivered states a subscription may
	// hold before it is dropped. Zero selects the default; a negative value
	// disables the limit.
	ListenerBacklog int

	Observer Observer[S]
}

type envelope struct {
	event    Event
	resolved chan struct{}
}

// Machine serializes events against a current state of type S and runs the
// requested actions with environment E.
type Machine[S any, E any] struct {
	resolver Resolver[S, E]
	env      E
	logger   *slog.Logger
	observer Observer[S]
	backlog  int

	queue  chan envelope
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	current S
	subs    map[uint64]*Subscription[S]
	nextSub uint64

	actions   sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// New starts a machine in state initial. Call Close to stop it.
func New[S any, E any](initial S, resolver Resolver[S, E], env E, opts Options[S]) *Machine[S, E] {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	switch {
	case opts.ListenerBacklog == 0:
		opts.ListenerBacklog = defaultListenerBacklog
	case opts.ListenerBacklog < 0:
		opts.ListenerBacklog = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine[S, E]{
		resolver: resolver,
		env:      env,
		logger:   opts.Logger,
		observer: opts.Observer,
		backlog:  opts.ListenerBacklog,
		queue:    make(chan envelope, opts.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		current:  initial,
		subs:     make(map[uint64]*Subscription[S]),
	}

	go m.run()
	return m
}

// Send submits event and returns once it has been resolved: the new state is
// visible through Current and queued to every listener, and the requested
// actions have been started. Actions themselves may still be running.
func (m *Machine[S, E]) Send(ctx context.Context, event Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if m.closed.Load() {
		return ErrMachineClosed
	}

	env := envelope{event: event, resolved: make(chan struct{})}
	select {
	case m.queue <- env:
	case <-m.ctx.Done():
		return ErrMachineClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-env.resolved:
		return nil
	case <-m.done:
		return ErrMachineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the latest resolved state.
func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Listen subscribes to state changes. The current state is always delivered
// first, followed by every later change in order. The subscription ends when
// ctx is done, Cancel is called, or the machine is closed.
func (m *Machine[S, E]) Listen(ctx context.Context) *Subscription[S] {
	sub := newSubscription[S](m.backlog)
	go sub.pump()

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		sub.terminate(false)
		return sub
	}
	sub.push(m.current)
	m.nextSub++
	id := m.nextSub
	m.subs[id] = sub
	m.mu.Unlock()

	sub.cancel = func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		sub.terminate(false)
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Cancel()
			case <-sub.stop:
			}
		}()
	}
	return sub
}

// Listeners reports how many subscriptions are attached.
func (m *Machine[S, E]) Listeners() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// QueueDepth reports how many events wait for the dispatch loop.
func (m *Machine[S, E]) QueueDepth() int {
	return len(m.queue)
}

// DroppedListeners reports how many subscriptions were detached for falling
// behind.
func (m *Machine[S, E]) DroppedListeners() uint64 {
	return m.dropped.Load()
}

// Close stops the dispatch loop, cancels the context passed to running
// actions, waits for them to return, and closes every subscription. Later
// calls to Send return ErrMachineClosed.
func (m *Machine[S, E]) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.cancel()
		<-m.done
		m.actions.Wait()

		m.mu.Lock()
		for id, sub := range m.subs {
			delete(m.subs, id)
			sub.terminate(false)
		}
		m.mu.Unlock()
	})
	return nil
}

func (m *Machine[S, E]) run() {
	defer close(m.done)

	for {
		select {
		case <-m.ctx.Done():
			return
		case env := <-m.queue:
			m.process(env)
		}
	}
}

func (m *Machine[S, E]) process(env envelope) {
	start := time.Now()
	old := m.Current()

	res, ok := m.resolve(old, env.event)
	if !ok {
		close(env.resolved)
		return
	}

	changed := !reflect.DeepEqual(old, res.NewState)
	if changed {
		m.publish(res.NewState)
	}

	ids := make([]string, 0, len(res.Actions))
	for _, action := range res.Actions {
		if action == nil {
			continue
		}
		ids = append(ids, action.Identifier())
		m.schedule(env.event, action)
	}

	m.logger.Debug("event resolved",
		"event", env.event.EventName(),
		"event_id", env.event.EventID(),
		"changed", changed,
		"state", fmt.Sprintf("%T", res.NewState),
		"actions", ids,
	)

	if m.observer != nil {
		m.observer(Transition[S]{
			Event:    env.event,
			Old:      old,
			New:      res.NewState,
			Changed:  changed,
			Actions:  ids,
			Duration: time.Since(start),
		})
	}
	close(env.resolved)
}

func (m *Machine[S, E]) resolve(old S, event Event) (res Resolution[S, E], ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("resolver panicked",
				"event", event.EventName(),
				"event_id", event.EventID(),
				"error", fmt.Sprint(r),
			)
			ok = false
		}
	}()
	return m.resolver.Resolve(old, event), true
}

func (m *Machine[S, E]) publish(next S) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = next
	for id, sub := range m.subs {
		if sub.push(next) {
			continue
		}
		delete(m.subs, id)
		sub.terminate(true)
		m.dropped.Add(1)
		m.logger.Warn("listener dropped", "backlog", m.backlog)
	}
}

func (m *Machine[S, E]) schedule(event Event, action Action[E]) {
	m.actions.Add(1)
	go func() {
		defer m.actions.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("action panicked",
					"action", action.Identifier(),
					"event_id", event.EventID(),
					"error", fmt.Sprint(r),
				)
			}
		}()
		action.Execute(m.ctx, m, m.env)
	}()
}
