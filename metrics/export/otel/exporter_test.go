package otel

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/authmachine"
)

type fakeSource struct {
	mu        sync.RWMutex
	telemetry authmachine.Telemetry
}

func (f *fakeSource) Telemetry() authmachine.Telemetry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := f.telemetry
	out.Metrics = authmachine.MetricsSnapshot{
		Counters:   make(map[authmachine.MetricID]uint64, len(f.telemetry.Metrics.Counters)),
		Histograms: make(map[authmachine.MetricID][]uint64, len(f.telemetry.Metrics.Histograms)),
	}
	for k, v := range f.telemetry.Metrics.Counters {
		out.Metrics.Counters[k] = v
	}
	for k, buckets := range f.telemetry.Metrics.Histograms {
		out.Metrics.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// findInt64 returns the data point of name whose attributes include every
// key/value pair in attrs.
func findInt64(rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) (int64, bool) {
	match := func(set attribute.Set) bool {
		for _, kv := range attrs {
			v, ok := set.Value(kv.Key)
			if !ok || v != kv.Value {
				return false
			}
		}
		return true
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("authmachine-test")

	src := &fakeSource{telemetry: authmachine.Telemetry{
		Metrics: authmachine.MetricsSnapshot{
			Counters: map[authmachine.MetricID]uint64{
				authmachine.MetricSignInSuccess: 3,
				authmachine.MetricSignUpFailure: 1,
			},
			Histograms: map[authmachine.MetricID][]uint64{
				authmachine.MetricResolveLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		Authentication:   "SignedIn",
		Authorization:    "SessionEstablished",
		Listeners:        2,
		ListenersDropped: 1,
		AuditEnabled:     true,
		Audit:            authmachine.AuditStats{Sequence: 5, Delivered: 4, Dropped: 1},
	}}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	tests := []struct {
		name  string
		attrs []attribute.KeyValue
		want  int64
	}{
		{"authmachine_flow_outcomes_total", []attribute.KeyValue{attribute.String("flow", "signin"), attribute.String("outcome", "success")}, 3},
		{"authmachine_flow_outcomes_total", []attribute.KeyValue{attribute.String("flow", "signup"), attribute.String("outcome", "failure")}, 1},
		{"authmachine_resolve_latency_seconds_bucket", []attribute.KeyValue{attribute.String("le", "+Inf")}, 8},
		{"authmachine_resolve_latency_seconds_count", nil, 8},
		{"authmachine_listeners_active", nil, 2},
		{"authmachine_listeners_dropped_total", nil, 1},
		{"authmachine_audit_events_total", []attribute.KeyValue{attribute.String("outcome", "dropped")}, 1},
		{"authmachine_audit_events_total", []attribute.KeyValue{attribute.String("outcome", "delivered")}, 4},
		{"authmachine_state_info", []attribute.KeyValue{attribute.String("authentication", "SignedIn")}, 1},
	}
	for _, tt := range tests {
		if v, ok := findInt64(rm, tt.name, tt.attrs...); !ok || v != tt.want {
			t.Fatalf("expected %s%v=%d, got %d (found=%v)", tt.name, tt.attrs, tt.want, v, ok)
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newTestMeter()
	meter := provider.Meter("authmachine-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterCloseStopsObservation(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("authmachine-test")

	src := &fakeSource{telemetry: authmachine.Telemetry{
		Metrics: authmachine.MetricsSnapshot{
			Counters: map[authmachine.MetricID]uint64{authmachine.MetricSignOut: 2},
		},
	}}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, ok := findInt64(rm, "authmachine_flow_outcomes_total"); ok {
		t.Fatalf("expected no observation after Close")
	}

	var nilExp *OTelExporter
	if err := nilExp.Close(); err != nil {
		t.Fatalf("expected nil Close to succeed, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("authmachine-test")

	src := &fakeSource{telemetry: authmachine.Telemetry{
		Metrics: authmachine.MetricsSnapshot{
			Counters: map[authmachine.MetricID]uint64{
				authmachine.MetricSignInSuccess: 1,
			},
			Histograms: map[authmachine.MetricID][]uint64{
				authmachine.MetricResolveLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.telemetry.Metrics.Counters[authmachine.MetricSignInSuccess] = v
			src.telemetry.Listeners = int(v)
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
