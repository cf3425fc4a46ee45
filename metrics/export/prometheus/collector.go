package prometheus

import (
	"strconv"

	"github.com/MrEthical07/stateformat/metrics/export/internaldefs"
	promclient "github.com/prometheus/client_golang/prometheus"
)

// Collector adapts a MetricsSource to client_golang, for services that
// already run a prometheus.Registry. It reads one snapshot per scrape.
type Collector struct {
	source       MetricsSource
	counters     []*promclient.Desc
	histograms   []*promclient.Desc
	auditDropped *promclient.Desc
	bounds       []float64
}

var _ promclient.Collector = (*Collector)(nil)

// NewCollector builds a Collector over source. Register it with
// prometheus.Registry.Register.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source:       source,
		counters:     make([]*promclient.Desc, len(internaldefs.CounterDefs)),
		histograms:   make([]*promclient.Desc, len(internaldefs.HistogramDefs)),
		auditDropped: promclient.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
	for i, def := range internaldefs.CounterDefs {
		c.counters[i] = promclient.NewDesc(def.Name, def.Help, nil, nil)
	}
	for i, def := range internaldefs.HistogramDefs {
		c.histograms[i] = promclient.NewDesc(def.Name, def.Help, nil, nil)
	}
	// The last bound is +Inf, which client_golang adds itself.
	for _, le := range internaldefs.HistogramBounds[:len(internaldefs.HistogramBounds)-1] {
		v, err := strconv.ParseFloat(le, 64)
		if err != nil {
			panic("internaldefs: bad histogram bound " + le)
		}
		c.bounds = append(c.bounds, v)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *promclient.Desc) {
	for _, d := range c.counters {
		ch <- d
	}
	for _, d := range c.histograms {
		ch <- d
	}
	ch <- c.auditDropped
}

func (c *Collector) Collect(ch chan<- promclient.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- promclient.MustNewConstMetric(c.counters[i], promclient.CounterValue, float64(snapshot.Counters[def.ID]))
	}
	for i, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		buckets := make(map[float64]uint64, len(c.bounds))
		for j, le := range c.bounds {
			buckets[le] = cumulative[j]
		}
		ch <- promclient.MustNewConstHistogram(c.histograms[i], cumulative[len(cumulative)-1], 0, buckets)
	}
	ch <- promclient.MustNewConstMetric(c.auditDropped, promclient.CounterValue, float64(c.source.AuditDropped()))
}
