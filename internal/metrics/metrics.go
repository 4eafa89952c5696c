// Package metrics exposes Prometheus instrumentation for the scan pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the scan and provider metrics. A nil Collector is valid
// and records nothing, so wiring stays optional in tests.
type Collector struct {
	scansStarted   prometheus.Counter
	scansCompleted *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	providerErrors *prometheus.CounterVec
	tierSizes      *prometheus.GaugeVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optedge_scans_started_total",
			Help: "Number of opportunity scans started.",
		}),
		scansCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optedge_scans_completed_total",
			Help: "Number of scans reaching a terminal state, by outcome.",
		}, []string{"status"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optedge_scan_duration_seconds",
			Help:    "Wall time of a full universe scan.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optedge_provider_errors_total",
			Help: "Market data provider failures, by operation.",
		}, []string{"operation"}),
		tierSizes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optedge_opportunities",
			Help: "Opportunities published by the last completed scan, by tier.",
		}, []string{"tier"}),
	}
	reg.MustRegister(c.scansStarted, c.scansCompleted, c.scanDuration, c.providerErrors, c.tierSizes)
	return c
}

func (c *Collector) ScanStarted() {
	if c == nil {
		return
	}
	c.scansStarted.Inc()
}

func (c *Collector) ScanCompleted(status string, seconds float64) {
	if c == nil {
		return
	}
	c.scansCompleted.WithLabelValues(status).Inc()
	c.scanDuration.Observe(seconds)
}

func (c *Collector) ProviderError(operation string) {
	if c == nil {
		return
	}
	c.providerErrors.WithLabelValues(operation).Inc()
}

func (c *Collector) SetTierSize(tier string, n int) {
	if c == nil {
		return
	}
	c.tierSizes.WithLabelValues(tier).Set(float64(n))
}
