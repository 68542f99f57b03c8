package authmachine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/authmachine/internal/audit"
	"github.com/MrEthical07/authmachine/internal/flows"
	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// Engine is one client session against a user pool and identity pool. All
// methods are safe for concurrent use. Operations that start a flow wait
// for its outcome; a competing flow is cancelled or awaited first.
type Engine struct {
	config   Config
	logger   *slog.Logger
	machine  *statemachine.Machine[state.AuthState, *flows.Environment]
	userPool provider.UserPoolClient
	metrics  *Metrics
	audit    *audit.Dispatcher
	now      func() time.Time

	fetches singleflight.Group
	closed  atomic.Bool
}

// Subscription delivers engine states, the current one first.
type Subscription = statemachine.Subscription[state.AuthState]

// Listen subscribes to raw state changes. Most callers use the operation
// results or an [AuditSink] instead.
func (e *Engine) Listen(ctx context.Context) *Subscription {
	return e.machine.Listen(ctx)
}

// Current returns the latest state.
func (e *Engine) Current() state.AuthState {
	return e.machine.Current()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Close stops the engine. In-flight provider calls are cancelled and
// pending operations return ErrEngineNotReady. Close is idempotent.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	_ = e.machine.Close()
	e.audit.Close()
}

// AuditStats counts lifecycle events handed to the [AuditSink]. Every event
// carries its Sequence, so a sink sees a gap wherever one was dropped.
type AuditStats = audit.Stats

// AuditStats reports delivered and dropped lifecycle events. It is zero when
// no sink is configured.
func (e *Engine) AuditStats() AuditStats {
	if e == nil {
		return AuditStats{}
	}
	return e.audit.Stats()
}

// Telemetry is one read of the counters together with the live state of the
// dispatch loop, as published by the exporters.
type Telemetry struct {
	Metrics MetricsSnapshot
	// Authentication and Authorization name the current sub-states, e.g.
	// "SignedIn" and "SessionEstablished". Before configuration finishes
	// Authentication names the root state and Authorization is empty.
	Authentication string
	Authorization  string

	Listeners        int
	ListenersDropped uint64
	QueueDepth       int

	AuditEnabled bool
	Audit        AuditStats
}

func (e *Engine) Telemetry() Telemetry {
	if e == nil {
		return Telemetry{Metrics: MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}}
	}
	t := Telemetry{
		Metrics:          e.MetricsSnapshot(),
		Listeners:        e.machine.Listeners(),
		ListenersDropped: e.machine.DroppedListeners(),
		QueueDepth:       e.machine.QueueDepth(),
		AuditEnabled:     e.audit != nil,
		Audit:            e.audit.Stats(),
	}
	switch s := e.machine.Current().(type) {
	case state.AuthConfigured:
		t.Authentication = state.VariantName(s.Authentication)
		t.Authorization = state.VariantName(s.Authorization)
	default:
		t.Authentication = state.VariantName(s)
	}
	return t
}

// MetricsSnapshot returns the current counters. It is empty when metrics are
// disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) send(ctx context.Context, event statemachine.Event) error {
	if e.closed.Load() {
		return ErrEngineNotReady
	}
	if err := e.machine.Send(ctx, event); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrEngineNotReady
	}
	return nil
}
