package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/options-edge-scanner/internal/config"
	"github.com/options-edge-scanner/internal/scan"
)

func alertCfg() config.AlertingConfig {
	return config.AlertingConfig{
		Enabled:      true,
		MinScore:     80,
		CooldownSecs: 900,
	}
}

func highOpp(symbol, name string, score int) scan.Opportunity {
	return scan.Opportunity{
		Symbol:       symbol,
		StrategyName: name,
		Score:        score,
		Probability:  82,
		RewardRisk:   scan.RatioOf(2.1),
		MaxLoss:      scan.Dollars(350),
		Expiration:   time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	}
}

func TestAlertable_ScoreFloor(t *testing.T) {
	m := NewManager(alertCfg(), nil)

	picks := m.alertable([]scan.Opportunity{
		highOpp("SPY", "Iron Condor", 85),
		highOpp("QQQ", "Bull Call Spread", 79),
	})

	require.Len(t, picks, 1)
	assert.Equal(t, "SPY", picks[0].Symbol)
}

func TestAlertable_CooldownSuppressesRepeats(t *testing.T) {
	m := NewManager(alertCfg(), nil)

	first := m.alertable([]scan.Opportunity{highOpp("SPY", "Iron Condor", 85)})
	require.Len(t, first, 1)

	// The same symbol/strategy pair inside the window is suppressed; a
	// different structure on the same symbol is not.
	second := m.alertable([]scan.Opportunity{
		highOpp("SPY", "Iron Condor", 90),
		highOpp("SPY", "Naked Put", 88),
	})
	require.Len(t, second, 1)
	assert.Equal(t, "Naked Put", second[0].StrategyName)
}

func TestAlertable_ExpiredCooldownReleases(t *testing.T) {
	cfg := alertCfg()
	cfg.CooldownSecs = 0
	m := NewManager(cfg, nil)

	require.Len(t, m.alertable([]scan.Opportunity{highOpp("SPY", "Iron Condor", 85)}), 1)
	require.Len(t, m.alertable([]scan.Opportunity{highOpp("SPY", "Iron Condor", 85)}), 1)
}

func TestFormatDigest(t *testing.T) {
	m := NewManager(alertCfg(), nil)

	picks := []scan.Opportunity{highOpp("SPY", "Iron Condor", 85)}
	result := &scan.Result{Tiers: scan.Classify(picks)}

	digest := m.formatDigest(result, picks)

	assert.Contains(t, digest, "1 high-probability setups")
	assert.Contains(t, digest, "SPY Iron Condor")
	assert.Contains(t, digest, "exp Oct 16")
	assert.Contains(t, digest, "score 85")
	assert.Contains(t, digest, "prob 82%")
	assert.Contains(t, digest, "reward/risk 2.10")
	assert.Contains(t, digest, "max loss $350.00")
}

func TestHandleResult_SyntheticResultsNeverAlert(t *testing.T) {
	m := NewManager(alertCfg(), nil)

	// A synthetic result must not touch the cooldown map or send anything.
	m.handleResult(&scan.Result{
		Synthetic: true,
		Tiers:     scan.Classify([]scan.Opportunity{highOpp("SPY", "Iron Condor", 95)}),
	})

	assert.Empty(t, m.cooldown)
}
