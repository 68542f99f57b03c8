package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authmachine"
	"github.com/MrEthical07/authmachine/metrics/export/internaldefs"
)

type telemetrySource interface {
	Telemetry() authmachine.Telemetry
}

// PrometheusExporter renders engine telemetry on demand.
type PrometheusExporter struct {
	source telemetrySource
}

func NewPrometheusExporter(engine *authmachine.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any value exposing Telemetry.
func NewPrometheusExporterFromSource(source telemetrySource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves [PrometheusExporter.Render] as text/plain.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current telemetry. HELP and TYPE are written once per
// family, before its first sample.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	samples := internaldefs.Collect(p.source.Telemetry())
	var b strings.Builder
	b.Grow(64 * len(samples))

	var current *internaldefs.Family
	for _, s := range samples {
		if s.Family != current {
			current = s.Family
			writeHeader(&b, current)
		}
		b.WriteString(s.Series)
		writeLabels(&b, s.Labels)
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(s.Value, 10))
		b.WriteByte('\n')
	}
	return b.String()
}

func writeHeader(b *strings.Builder, f *internaldefs.Family) {
	b.WriteString("# HELP ")
	b.WriteString(f.Name)
	b.WriteByte(' ')
	b.WriteString(escape(f.Help, false))
	b.WriteString("\n# TYPE ")
	b.WriteString(f.Name)
	switch f.Kind {
	case internaldefs.KindGauge:
		b.WriteString(" gauge\n")
	case internaldefs.KindHistogram:
		b.WriteString(" histogram\n")
	default:
		b.WriteString(" counter\n")
	}
}

func writeLabels(b *strings.Builder, labels []internaldefs.Label) {
	if len(labels) == 0 {
		return
	}
	b.WriteByte('{')
	for i, l := range labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Name)
		b.WriteString("=\"")
		b.WriteString(escape(l.Value, true))
		b.WriteByte('"')
	}
	b.WriteByte('}')
}

// escape applies the text format escaping. Label values also escape quotes.
func escape(s string, quote bool) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\n", "\\n")
	if quote {
		s = strings.ReplaceAll(s, "\"", "\\\"")
	}
	return s
}
