package scan

import (
	"fmt"
	"sort"
	"strings"
)

type Tier string

const (
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
	TierNearMiss Tier = "near-miss"
)

// Classified holds the four tier lists, each sorted descending by score.
type Classified struct {
	High     []Opportunity `json:"high"`
	Medium   []Opportunity `json:"medium"`
	Low      []Opportunity `json:"low"`
	NearMiss []Opportunity `json:"near_miss"`
}

// Total counts opportunities across all tiers.
func (c *Classified) Total() int {
	return len(c.High) + len(c.Medium) + len(c.Low) + len(c.NearMiss)
}

// Tier returns the list for a named tier.
func (c *Classified) Tier(t Tier) []Opportunity {
	switch t {
	case TierHigh:
		return c.High
	case TierMedium:
		return c.Medium
	case TierLow:
		return c.Low
	case TierNearMiss:
		return c.NearMiss
	}
	return nil
}

// Classify buckets a flat opportunity list into exactly one tier each.
// Near-miss detection runs first; the remaining tiers fall through on
// probability thresholds. Ties within a tier keep input order.
func Classify(opportunities []Opportunity) Classified {
	var out Classified

	for _, opp := range opportunities {
		if reason, isNearMiss := nearMissReason(&opp); isNearMiss {
			opp.NearMissReason = reason
			out.NearMiss = append(out.NearMiss, opp)
			continue
		}
		switch {
		case opp.Probability >= 70:
			out.High = append(out.High, opp)
		case opp.Probability >= 60:
			out.Medium = append(out.Medium, opp)
		default:
			out.Low = append(out.Low, opp)
		}
	}

	for _, tier := range [][]Opportunity{out.High, out.Medium, out.Low, out.NearMiss} {
		sort.SliceStable(tier, func(i, j int) bool {
			return tier[i].Score > tier[j].Score
		})
	}

	return out
}

// nearMissReason checks the near-miss gates: probability in [68,70),
// numeric reward/risk in [1.8,2), or score in [75,80). The max-loss band
// (500,600] never gates on its own but is appended to the reason when true.
func nearMissReason(opp *Opportunity) (string, bool) {
	var reasons []string

	if opp.Probability >= 68 && opp.Probability < 70 {
		reasons = append(reasons, fmt.Sprintf("probability %d%% is just below the 70%% high-probability cutoff", opp.Probability))
	}
	if opp.RewardRisk.Applicable && opp.RewardRisk.Value >= 1.8 && opp.RewardRisk.Value < 2 {
		reasons = append(reasons, fmt.Sprintf("reward/risk %.2f is just below the 2.0 threshold", opp.RewardRisk.Value))
	}
	if opp.Score >= 75 && opp.Score < 80 {
		reasons = append(reasons, fmt.Sprintf("score %d is just below the 80 cutoff", opp.Score))
	}

	if len(reasons) == 0 {
		return "", false
	}

	if !opp.MaxLoss.Unlimited && opp.MaxLoss.Amount > 500 && opp.MaxLoss.Amount <= 600 {
		reasons = append(reasons, fmt.Sprintf("max loss %s sits just above the $500 comfort band", opp.MaxLoss))
	}

	return strings.Join(reasons, "; "), true
}
