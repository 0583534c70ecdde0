package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreStat is one store's live state as sampled at scrape time.
type StoreStat struct {
	Name            string
	Keys            int
	FileBytes       int64
	SchedulerHalted bool
}

// StatsSource supplies per-store stats to the collector. The store
// service side implements it; the collector never imports it.
type StatsSource interface {
	StoreStats() []StoreStat
}

// Collector exports per-store gauges computed at scrape time.
//
// @design DS-0402
type Collector struct {
	source StatsSource

	keysDesc   *prometheus.Desc
	bytesDesc  *prometheus.Desc
	haltedDesc *prometheus.Desc
}

// NewCollector creates a collector over the given stats source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		keysDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "keys"),
			"Number of keys in the store",
			[]string{"store"}, nil,
		),
		bytesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "file_bytes"),
			"Size of the store's backing file in bytes",
			[]string{"store"}, nil,
		),
		haltedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "scheduler_halted"),
			"1 when the store's snapshot scheduler halted after a tick failure",
			[]string{"store"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keysDesc
	ch <- c.bytesDesc
	ch <- c.haltedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	for _, stat := range c.source.StoreStats() {
		ch <- prometheus.MustNewConstMetric(c.keysDesc, prometheus.GaugeValue, float64(stat.Keys), stat.Name)
		ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.GaugeValue, float64(stat.FileBytes), stat.Name)
		halted := 0.0
		if stat.SchedulerHalted {
			halted = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.haltedDesc, prometheus.GaugeValue, halted, stat.Name)
	}
}
