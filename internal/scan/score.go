package scan

import "math"

// Scoring coefficients. Fixed heuristics, kept verbatim so ranks stay
// comparable across releases.
const (
	probabilityWeight  = 0.35
	rewardRiskWeight   = 5.5
	rewardRiskCap      = 10
	rewardRiskFallback = 30 // stands in for the ratio term when rr is n/a
	expiryUrgencyCeil  = 25
	ivScoreLow         = 10 // avgIV < 0.4
	ivScoreHigh        = 5  // avgIV > 0.6
	ivScoreMid         = 8
)

// Score maps probability, reward/risk, days-to-expiry and average implied
// volatility onto a single 0-100 composite used for ranking within a tier.
// The result is monotonically non-decreasing in probability and always
// bounded to [0,100], including the non-numeric reward/risk path.
func Score(probability int, rewardRisk Ratio, daysToExpiry int, avgIV float64) int {
	score := float64(probability) * probabilityWeight

	if rewardRisk.Applicable {
		score += math.Min(rewardRiskCap, rewardRisk.Value) * rewardRiskWeight
	} else {
		score += rewardRiskFallback
	}

	score += math.Max(0, expiryUrgencyCeil-float64(daysToExpiry)/2)

	switch {
	case avgIV < 0.4:
		score += ivScoreLow
	case avgIV > 0.6:
		score += ivScoreHigh
	default:
		score += ivScoreMid
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return int(math.Round(score))
}
