package metrics

import "github.com/prometheus/client_golang/prometheus"

// gaugeMetrics lists which of the fixed-array counters above are levels
// (current depth) rather than running totals, so the collector exports
// them as prometheus.GaugeValue instead of prometheus.CounterValue.
var gaugeMetrics = map[int]bool{
	DCBZombieDepth: true,
}

var exportedNames = map[int]string{
	DCBAllocs:          "dcb_allocs_total",
	DCBCloses:          "dcb_closes_total",
	DCBFinalFrees:      "dcb_final_frees_total",
	DCBZombieDepth:     "dcb_zombie_queue_depth",
	DCBReapCompletions: "dcb_reap_completions_total",
}

// Collector adapts the fixed-array counters in this package to
// Prometheus' pull model, grounded on FeatureBaseDB's use of
// prometheus/client_golang for its own server metrics surface.
type Collector struct {
	descs map[int]*prometheus.Desc
}

// NewCollector builds a Collector exposing the DCB-related counters
// registered in exportedNames.
func NewCollector() *Collector {
	descs := make(map[int]*prometheus.Desc, len(exportedNames))
	for name, metricName := range exportedNames {
		descs[name] = prometheus.NewDesc(metricName, "DCB core metric: "+metricName, nil, nil)
	}
	return &Collector{descs: descs}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector, sampling the live counter
// values on every scrape.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, desc := range c.descs {
		valueType := prometheus.CounterValue
		if gaugeMetrics[name] {
			valueType = prometheus.GaugeValue
		}
		ch <- prometheus.MustNewConstMetric(desc, valueType, float64(Get(name)))
	}
}
