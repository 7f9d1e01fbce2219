package prometheus

import (
	"net/http"

	"github.com/miaomc/passport"
	"github.com/miaomc/passport/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is satisfied by *passport.Engine.
type MetricsSource interface {
	MetricsSnapshot() passport.MetricsSnapshot
	AuditDropped() uint64
}

// Collector is a prometheus.Collector reading engine snapshots on scrape.
type Collector struct {
	source     MetricsSource
	counters   []*prometheus.Desc
	histograms []*prometheus.Desc
	dropped    *prometheus.Desc
	bounds     []float64
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source:  source,
		dropped: prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
		bounds:  internaldefs.UpperBounds(),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d
	}
	for _, d := range c.histograms {
		ch <- d
	}
	ch <- c.dropped
}

// Collect emits every counter, the latency histogram and the audit drop
// count. Histogram sums are not tracked by the engine and are reported as 0.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snap := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(c.counters[i], prometheus.CounterValue, float64(snap.Counters[def.ID]))
	}

	for i, def := range internaldefs.HistogramDefs {
		raw, ok := snap.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(c.bounds))
		for j, le := range c.bounds {
			buckets[le] = cumulative[j]
		}
		ch <- prometheus.MustNewConstHistogram(c.histograms[i], cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// Exporter owns a private registry holding a [Collector].
type Exporter struct {
	registry *prometheus.Registry
}

// NewExporter registers a collector for source on a fresh registry.
func NewExporter(source MetricsSource) (*Exporter, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		return nil, err
	}
	return &Exporter{registry: reg}, nil
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
