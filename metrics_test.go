package authmachine

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/providertest"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSignInSuccess)

	if got := m.Value(MetricSignInSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricSignInSuccess)
	m.Add(MetricActionsScheduled, 3)
	m.Observe(MetricResolveLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatalf("expected nil metrics to be disabled")
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatalf("expected empty snapshot")
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSignInSuccess)
	m.Inc(MetricSignInSuccess)
	m.Add(MetricSignInSuccess, 3)
	m.Add(MetricSignInSuccess, 0)

	if got := m.Value(MetricSignInSuccess); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestMetricsIgnoresUnknownID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricNone)
	m.Inc(MetricID(1000))

	if got := m.Value(metricNone); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricSessionRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricSessionRefreshSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Microsecond,
		50 * time.Microsecond,
		80 * time.Microsecond,
		200 * time.Microsecond,
		500 * time.Microsecond,
		time.Millisecond,
		3 * time.Millisecond,
		20 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricResolveLatency, d)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricResolveLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsHistogramOnlyForResolveLatency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Observe(MetricSignInSuccess, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricSignInSuccess]; ok {
		t.Fatalf("expected no histogram for a counter")
	}
	for i, v := range snap.Histograms[MetricResolveLatency] {
		if v != 0 {
			t.Fatalf("bucket %d expected 0, got %d", i, v)
		}
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricSignInSuccess)
	m.Inc(MetricSignInFailure)
	m.Inc(MetricSignInFailure)
	m.Observe(MetricResolveLatency, 2*time.Microsecond)

	snap := m.Snapshot()

	if snap.Counters[MetricSignInSuccess] != 1 {
		t.Fatalf("expected MetricSignInSuccess=1 got %d", snap.Counters[MetricSignInSuccess])
	}
	if snap.Counters[MetricSignInFailure] != 2 {
		t.Fatalf("expected MetricSignInFailure=2 got %d", snap.Counters[MetricSignInFailure])
	}
	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("expected %d counters, got %d", metricIDCount, len(snap.Counters))
	}
	if len(snap.Histograms[MetricResolveLatency]) != 8 {
		t.Fatalf("expected histogram length 8")
	}
	if snap.Histograms[MetricResolveLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricResolveLatency][0])
	}
}

func TestEngineMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	e := &Engine{metrics: m}
	e.metricInc(MetricSignOut)

	if got := len(e.MetricsSnapshot().Counters); got != 0 {
		t.Fatalf("expected empty snapshot, got %d counters", got)
	}
}

func TestEngineTelemetry(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	sink := NewChannelSink(16)
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore(), func(b *Builder) {
		b.WithAuditSink(sink)
	})
	ctx := testContext(t)

	signInAlice(t, ctx, engine)
	expectAuditEvent(t, sink, AuditEventSignedIn, true)

	before := engine.Telemetry()
	if before.Authentication != "SignedIn" || before.Authorization == "" {
		t.Fatalf("unexpected states %q / %q", before.Authentication, before.Authorization)
	}
	if before.Metrics.Counters[MetricSignInSuccess] != 1 {
		t.Fatalf("expected one sign-in, got %v", before.Metrics.Counters)
	}
	if !before.AuditEnabled || before.Audit.Sequence == 0 || before.Audit.Dropped != 0 {
		t.Fatalf("unexpected audit stats %+v", before.Audit)
	}

	sub := engine.Listen(ctx)
	if got := engine.Telemetry().Listeners; got != before.Listeners+1 {
		t.Fatalf("expected %d listeners, got %d", before.Listeners+1, got)
	}
	sub.Cancel()
	if got := engine.Telemetry().Listeners; got != before.Listeners {
		t.Fatalf("expected %d listeners after cancel, got %d", before.Listeners, got)
	}
}

func TestTelemetryBeforeConfiguration(t *testing.T) {
	var e *Engine
	if got := e.Telemetry(); got.Authentication != "" || got.Metrics.Counters == nil {
		t.Fatalf("unexpected telemetry from nil engine: %+v", got)
	}
}
