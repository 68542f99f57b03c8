package statemachine

import (
	"sync"
	"sync/atomic"
)

// Subscription delivers published states in order. Each subscription has its
// own queue and goroutine, so a slow reader delays only itself.
//
// The channel returned by C is closed when the subscription is cancelled, the
// machine is closed, or the reader fell further behind than the configured
// backlog (see [Subscription.Dropped]).
type Subscription[S any] struct {
	ch      chan S
	wake    chan struct{}
	stop    chan struct{}
	limit   int
	mu      sync.Mutex
	pending []S

	stopOnce sync.Once
	dropped  atomic.Bool
	cancel   func()
}

func newSubscription[S any](limit int) *Subscription[S] {
	return &Subscription[S]{
		ch:    make(chan S),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		limit: limit,
	}
}

// C returns the delivery channel.
func (s *Subscription[S]) C() <-chan S {
	return s.ch
}

// Cancel detaches the subscription. It is safe to call more than once.
func (s *Subscription[S]) Cancel() {
	if s.cancel != nil {
		s.cancel()
		return
	}
	s.terminate(false)
}

// Dropped reports whether the machine detached this subscription because its
// reader fell behind.
func (s *Subscription[S]) Dropped() bool {
	return s.dropped.Load()
}

// push queues v. It reports false when the backlog limit is reached.
func (s *Subscription[S]) push(v S) bool {
	s.mu.Lock()
	if s.limit > 0 && len(s.pending) >= s.limit {
		s.mu.Unlock()
		return false
	}
	s.pending = append(s.pending, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Subscription[S]) terminate(dropped bool) {
	s.stopOnce.Do(func() {
		if dropped {
			s.dropped.Store(true)
		}
		close(s.stop)
	})
}

func (s *Subscription[S]) pump() {
	defer close(s.ch)

	var zero S
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		next := s.pending[0]
		s.pending[0] = zero
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.ch <- next:
		case <-s.stop:
			return
		}
	}
}
