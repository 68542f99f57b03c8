package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/authmachine"
	"github.com/MrEthical07/authmachine/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil telemetry source")
)

type telemetrySource interface {
	Telemetry() authmachine.Telemetry
}

// OTelExporter publishes engine telemetry through observable instruments
// read on every collection. Sample labels become attributes.
type OTelExporter struct {
	source       telemetrySource
	registration metric.Registration
	instruments  map[string]metric.Int64Observable
}

// NewOTelExporter registers one instrument per series on meter. Close
// unregisters the callback.
func NewOTelExporter(meter metric.Meter, engine *authmachine.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source telemetrySource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:      source,
		instruments: make(map[string]metric.Int64Observable, len(internaldefs.Families)+1),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.Families)+1)

	for _, f := range internaldefs.Families {
		for _, series := range seriesOf(f) {
			ins, err := newInstrument(meter, f, series)
			if err != nil {
				return nil, fmt.Errorf("create instrument %s: %w", series, err)
			}
			exporter.instruments[series] = ins
			observables = append(observables, ins)
		}
	}

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	exporter.registration = registration
	return exporter, nil
}

func seriesOf(f *internaldefs.Family) []string {
	if f.Kind == internaldefs.KindHistogram {
		return []string{f.Name + "_bucket", f.Name + "_count"}
	}
	return []string{f.Name}
}

func newInstrument(meter metric.Meter, f *internaldefs.Family, series string) (metric.Int64Observable, error) {
	switch {
	case f.Kind == internaldefs.KindCounter:
		return meter.Int64ObservableCounter(series, metric.WithDescription(f.Help))
	case f.Kind == internaldefs.KindHistogram && series == f.Name+"_bucket":
		return meter.Int64ObservableGauge(series, metric.WithDescription("Cumulative count of "+f.Name+" per upper bound le."))
	case f.Kind == internaldefs.KindHistogram:
		return meter.Int64ObservableGauge(series, metric.WithDescription("Sample count of "+f.Name+"."))
	default:
		return meter.Int64ObservableGauge(series, metric.WithDescription(f.Help))
	}
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	for _, s := range internaldefs.Collect(e.source.Telemetry()) {
		ins, ok := e.instruments[s.Series]
		if !ok {
			continue
		}
		if len(s.Labels) == 0 {
			observer.ObserveInt64(ins, int64(s.Value))
			continue
		}
		attrs := make([]attribute.KeyValue, 0, len(s.Labels))
		for _, l := range s.Labels {
			attrs = append(attrs, attribute.String(l.Name, l.Value))
		}
		observer.ObserveInt64(ins, int64(s.Value), metric.WithAttributes(attrs...))
	}
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
