package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.ScanStarted()
		c.ScanCompleted("success", 1.5)
		c.ProviderError("quote")
		c.SetTierSize("high", 3)
	})
}

func TestCollectorRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ScanStarted()
	c.ScanStarted()
	c.ScanCompleted("success", 2.5)
	c.ScanCompleted("degraded", 0.1)
	c.ProviderError("chain")
	c.SetTierSize("high", 4)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				byName[fam.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				byName[fam.GetName()] += m.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 2.0, byName["optedge_scans_started_total"])
	assert.Equal(t, 2.0, byName["optedge_scans_completed_total"])
	assert.Equal(t, 1.0, byName["optedge_provider_errors_total"])
	assert.Equal(t, 4.0, byName["optedge_opportunities"])
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}
