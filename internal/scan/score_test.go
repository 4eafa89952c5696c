package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_KnownValues(t *testing.T) {
	// probability 55*0.35 + fallback 30 + urgency (25-10/2) + mid IV 8 = 77.25
	assert.Equal(t, 77, Score(55, NotApplicable(), 10, 0.5))

	// 85*0.35 + 0.5*5.5 + 20 + 8 = 60.5, rounds to 61
	assert.Equal(t, 61, Score(85, RatioOf(0.5), 10, 0.5))
}

func TestScore_RewardRiskCapped(t *testing.T) {
	capped := Score(50, RatioOf(10), 30, 0.5)
	beyond := Score(50, RatioOf(250), 30, 0.5)
	assert.Equal(t, capped, beyond)
}

func TestScore_SentinelBeatsSmallRatio(t *testing.T) {
	// The n/a fallback (30) outweighs any ratio below 30/5.5.
	assert.Greater(t,
		Score(60, NotApplicable(), 20, 0.5),
		Score(60, RatioOf(1.0), 20, 0.5))
}

func TestScore_MonotonicInProbability(t *testing.T) {
	prev := -1
	for prob := 0; prob <= 100; prob += 5 {
		got := Score(prob, RatioOf(1.5), 15, 0.45)
		assert.GreaterOrEqual(t, got, prev, "probability %d", prob)
		prev = got
	}
}

func TestScore_UrgencyFloorsAtZero(t *testing.T) {
	// Past 50 days the urgency term contributes nothing more.
	assert.Equal(t,
		Score(60, RatioOf(2), 50, 0.5),
		Score(60, RatioOf(2), 365, 0.5))
}

func TestScore_IVBands(t *testing.T) {
	low := Score(60, RatioOf(2), 20, 0.2)
	mid := Score(60, RatioOf(2), 20, 0.5)
	high := Score(60, RatioOf(2), 20, 0.8)

	assert.Equal(t, low-2, mid)
	assert.Equal(t, mid-3, high)
}

func TestScore_Bounded(t *testing.T) {
	cases := []struct {
		prob int
		rr   Ratio
		dte  int
		iv   float64
	}{
		{0, RatioOf(0), 1000, 0.9},
		{100, RatioOf(100), 0, 0.1},
		{100, NotApplicable(), 1, 0.3},
		{0, NotApplicable(), 0, 0.5},
	}
	for _, tc := range cases {
		got := Score(tc.prob, tc.rr, tc.dte, tc.iv)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
	}
}
