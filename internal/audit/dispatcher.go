package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxWait bounds how long Emit waits for room when DropIfFull is off.
const DefaultMaxWait = 25 * time.Millisecond

// Config controls buffering between the state machine and the sink.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops an event as soon as the buffer is full. Otherwise
	// Emit waits up to MaxWait for room and then drops it.
	DropIfFull bool
	MaxWait    time.Duration
}

// Stats counts lifecycle events by outcome. Sequence is the number handed to
// the most recent event; Delivered+Dropped+Pending never exceeds it.
type Stats struct {
	Sequence  uint64
	Delivered uint64
	Dropped   uint64
	Pending   int
}

// Dispatcher hands lifecycle events from the dispatch goroutine to a sink
// running on its own goroutine. Every event gets the next sequence number
// before it is queued, so a sink sees a gap wherever an event was dropped.
// A nil Dispatcher drops everything.
type Dispatcher struct {
	cfg  Config
	sink Sink

	// mu guards closed and every send on queue.
	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}

	sequence  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
		d.delivered.Add(1)
	}
}

// Emit numbers event and queues it. It never waits longer than MaxWait, so a
// slow sink costs the caller at most that much per event.
func (d *Dispatcher) Emit(event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	event.Sequence = d.sequence.Add(1)
	select {
	case d.queue <- event:
		return
	default:
	}
	if d.cfg.DropIfFull {
		d.dropped.Add(1)
		return
	}

	timer := time.NewTimer(d.cfg.MaxWait)
	defer timer.Stop()
	select {
	case d.queue <- event:
	case <-timer.C:
		d.dropped.Add(1)
	}
}

// Close delivers what is buffered and stops the sink goroutine. Later Emit
// calls are ignored.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Sequence:  d.sequence.Load(),
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Pending:   len(d.queue),
	}
}
