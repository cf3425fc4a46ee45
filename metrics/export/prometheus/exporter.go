package prometheus

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/stateformat"
	"github.com/MrEthical07/stateformat/metrics/export/internaldefs"
)

// MetricsSource is what the exporter reads on every scrape.
type MetricsSource interface {
	MetricsSnapshot() stateformat.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders stateformat metrics in Prometheus text exposition
// format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter reads from svc.
func NewPrometheusExporter(svc *stateformat.Service) *PrometheusExporter {
	return &PrometheusExporter{source: svc}
}

// NewPrometheusExporterFromSource reads from any MetricsSource.
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render over HTTP.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics, or "" when metrics are disabled and no
// audit events were dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)
	for _, def := range internaldefs.CounterDefs {
		writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		writeHistogram(&b, def.Name, def.Help, snapshot.Histograms[def.ID])
	}
	writeCounter(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, dropped)
	return b.String()
}

// Help strings come from internaldefs and never need escaping.
func writeFamily(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	writeFamily(b, name, help, "counter")
	fmt.Fprintf(b, "%s %d\n", name, value)
}

// writeHistogram renders raw per-bucket counts cumulatively. Snapshots carry
// no sum, so _sum is always 0.
func writeHistogram(b *strings.Builder, name, help string, raw []uint64) {
	writeFamily(b, name, help, "histogram")
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(b, "%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	fmt.Fprintf(b, "%s_count %d\n%s_sum 0\n", name, cumulative[len(cumulative)-1], name)
}
