package scan

import (
	"time"

	"github.com/options-edge-scanner/internal/strategy"
)

// DemoOpportunities is the fixed illustrative dataset substituted when a scan
// fails outright. Values are plausible but invented; results built from them
// are always flagged synthetic by the orchestrator.
func DemoOpportunities() []Opportunity {
	expiry := time.Now().AddDate(0, 0, 21).Truncate(24 * time.Hour)
	shortExpiry := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)

	demos := []Opportunity{
		{
			Symbol:        "SPY",
			StrategyName:  "Iron Condor",
			Archetype:     ArchetypeCreditSpread,
			Expiration:    expiry,
			DaysToExpiry:  21,
			Cost:          Dollars(1.85),
			MaxLoss:       Dollars(815),
			MaxProfit:     Dollars(1.85),
			Probability:   82,
			AvgImpliedVol: 0.42,
			Setup: map[string]float64{
				"short_put": 436, "long_put": 427, "short_call": 463, "long_call": 472,
			},
			Greeks: strategy.Greeks{Delta: 0.04, Theta: 2.1, Vega: -11.5},
			Reason: "Illustrative: wide condor collecting premium in elevated volatility",
		},
		{
			Symbol:        "QQQ",
			StrategyName:  "Bull Call Spread",
			Archetype:     ArchetypeDebitSpread,
			Expiration:    expiry,
			DaysToExpiry:  21,
			Cost:          Dollars(3.40),
			MaxLoss:       Dollars(3.40),
			MaxProfit:     Dollars(656),
			Probability:   66,
			AvgImpliedVol: 0.28,
			Setup: map[string]float64{
				"long_call": 380, "short_call": 387,
			},
			Greeks: strategy.Greeks{Delta: -0.22, Theta: 1.4, Vega: -3.2},
			Reason: "Illustrative: defined-risk upside spread in quiet volatility",
		},
		{
			Symbol:        "IWM",
			StrategyName:  "Naked Put",
			Archetype:     ArchetypeThetaDecay,
			Expiration:    shortExpiry,
			DaysToExpiry:  7,
			Cost:          Dollars(1.15),
			MaxLoss:       UnlimitedMoney(),
			MaxProfit:     Dollars(1.15),
			Probability:   55,
			AvgImpliedVol: 0.33,
			Setup: map[string]float64{
				"short_put": 186,
			},
			Greeks: strategy.Greeks{Delta: 0.18, Theta: 3.6, Vega: -6.4},
			Reason: "Illustrative: short-dated theta harvest below support",
		},
		{
			Symbol:        "AAPL",
			StrategyName:  "Narrow Iron Condor",
			Archetype:     ArchetypeCreditSpread,
			Expiration:    expiry,
			DaysToExpiry:  21,
			Cost:          Dollars(2.35),
			MaxLoss:       Dollars(540),
			MaxProfit:     Dollars(2.35),
			Probability:   68,
			AvgImpliedVol: 0.31,
			Setup: map[string]float64{
				"short_put": 189, "long_put": 186, "short_call": 197, "long_call": 200,
			},
			Greeks: strategy.Greeks{Delta: 0.02, Theta: 1.8, Vega: -7.9},
			Reason: "Illustrative: tight wings trading probability for credit",
		},
	}

	for i := range demos {
		o := &demos[i]
		switch {
		case o.MaxLoss.Unlimited:
			o.RewardRisk = NotApplicable()
		case o.MaxProfit.Unlimited:
			o.RewardRisk = RatioOf(3)
		case o.MaxLoss.Amount > 0:
			o.RewardRisk = RatioOf(o.MaxProfit.Amount / o.MaxLoss.Amount)
		default:
			o.RewardRisk = RatioOf(3)
		}
		if iv := int(o.AvgImpliedVol * 100); iv < 95 {
			o.IVPercentile = iv
		} else {
			o.IVPercentile = 95
		}
		o.Score = Score(o.Probability, o.RewardRisk, o.DaysToExpiry, o.AvgImpliedVol)
		o.ID = opportunityID(o.Symbol, o.StrategyName, o.Expiration, o.Setup)
	}

	return demos
}
