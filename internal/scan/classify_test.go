package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opp(symbol string, probability, score int, rr Ratio, maxLoss Money) Opportunity {
	return Opportunity{
		Symbol:      symbol,
		Probability: probability,
		Score:       score,
		RewardRisk:  rr,
		MaxLoss:     maxLoss,
	}
}

func TestClassify_ProbabilityTiers(t *testing.T) {
	out := Classify([]Opportunity{
		opp("HIGH", 70, 90, RatioOf(3), Dollars(200)),
		opp("MED", 60, 60, RatioOf(3), Dollars(200)),
		opp("LOW", 59, 40, RatioOf(3), Dollars(200)),
	})

	require.Len(t, out.High, 1)
	require.Len(t, out.Medium, 1)
	require.Len(t, out.Low, 1)
	assert.Empty(t, out.NearMiss)
	assert.Equal(t, "HIGH", out.High[0].Symbol)
	assert.Equal(t, "MED", out.Medium[0].Symbol)
	assert.Equal(t, "LOW", out.Low[0].Symbol)
	assert.Equal(t, 3, out.Total())
}

func TestClassify_NearMissTakesPriorityOverHigh(t *testing.T) {
	// Probability 69 would land in Medium, but score 85 keeps it out of the
	// score gate and the probability gate fires first anyway.
	out := Classify([]Opportunity{
		opp("SPY", 69, 85, RatioOf(2.5), Dollars(200)),
	})

	require.Len(t, out.NearMiss, 1)
	assert.Empty(t, out.Medium)
	reason := out.NearMiss[0].NearMissReason
	assert.Contains(t, reason, "probability 69%")
	assert.NotContains(t, reason, "reward/risk")
	assert.NotContains(t, reason, "score")
}

func TestClassify_EachGateReportsItself(t *testing.T) {
	out := Classify([]Opportunity{
		opp("RR", 75, 90, RatioOf(1.9), Dollars(200)),
		opp("SC", 75, 77, RatioOf(3), Dollars(200)),
	})

	require.Len(t, out.NearMiss, 2)
	bySymbol := map[string]string{}
	for _, o := range out.NearMiss {
		bySymbol[o.Symbol] = o.NearMissReason
	}
	assert.Contains(t, bySymbol["RR"], "reward/risk 1.90")
	assert.Contains(t, bySymbol["SC"], "score 77")
}

func TestClassify_CombinedGatesJoined(t *testing.T) {
	out := Classify([]Opportunity{
		opp("X", 68, 76, RatioOf(1.8), Dollars(100)),
	})

	require.Len(t, out.NearMiss, 1)
	reason := out.NearMiss[0].NearMissReason
	assert.Contains(t, reason, "probability 68%")
	assert.Contains(t, reason, "reward/risk 1.80")
	assert.Contains(t, reason, "score 76")
	assert.Contains(t, reason, "; ")
}

func TestClassify_MaxLossBandOnlyAnnotates(t *testing.T) {
	// Max loss in (500,600] alone never makes a near-miss.
	alone := Classify([]Opportunity{
		opp("OK", 75, 90, RatioOf(3), Dollars(550)),
	})
	assert.Empty(t, alone.NearMiss)
	require.Len(t, alone.High, 1)

	// But when a gate fires it is appended to the reason.
	gated := Classify([]Opportunity{
		opp("NM", 69, 90, RatioOf(3), Dollars(550)),
	})
	require.Len(t, gated.NearMiss, 1)
	assert.Contains(t, gated.NearMiss[0].NearMissReason, "max loss $550.00")
}

func TestClassify_UnlimitedLossSkipsBand(t *testing.T) {
	out := Classify([]Opportunity{
		opp("NK", 69, 90, NotApplicable(), UnlimitedMoney()),
	})
	require.Len(t, out.NearMiss, 1)
	assert.NotContains(t, out.NearMiss[0].NearMissReason, "max loss")
}

func TestClassify_SortsDescendingByScore(t *testing.T) {
	out := Classify([]Opportunity{
		opp("A", 72, 81, RatioOf(3), Dollars(100)),
		opp("B", 71, 95, RatioOf(3), Dollars(100)),
		opp("C", 74, 88, RatioOf(3), Dollars(100)),
	})

	require.Len(t, out.High, 3)
	assert.Equal(t, "B", out.High[0].Symbol)
	assert.Equal(t, "C", out.High[1].Symbol)
	assert.Equal(t, "A", out.High[2].Symbol)
}

func TestClassify_TierLookup(t *testing.T) {
	out := Classify([]Opportunity{
		opp("HIGH", 75, 90, RatioOf(3), Dollars(100)),
	})

	assert.Len(t, out.Tier(TierHigh), 1)
	assert.Empty(t, out.Tier(TierLow))
	assert.Nil(t, out.Tier(Tier("bogus")))
}
