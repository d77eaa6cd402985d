package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LiveStats provides the metrics collector access to live pipeline state.
type LiveStats interface {
	InFlight() int
	LiveScopes() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats LiveStats

	inFlight   *prometheus.Desc
	liveScopes *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil (gauges report 0).
func NewCollector(stats LiveStats) *Collector {
	return &Collector{
		stats: stats,
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "transcriptions_in_flight"),
			"Transcriptions currently running.",
			nil, nil,
		),
		liveScopes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "artifact", "live_scopes"),
			"Request artifact scopes not yet closed.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlight
	ch <- c.liveScopes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var inFlight, scopes int
	if c.stats != nil {
		inFlight = c.stats.InFlight()
		scopes = c.stats.LiveScopes()
	}
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(inFlight))
	ch <- prometheus.MustNewConstMetric(c.liveScopes, prometheus.GaugeValue, float64(scopes))
}
