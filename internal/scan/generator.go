package scan

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/options-edge-scanner/internal/market"
	"github.com/options-edge-scanner/internal/strategy"
)

// ProbabilityModel holds the per-archetype win probability heuristics. The
// coefficients are fixed approximations, not calibrated models; isolating
// them here lets a pricing-based model replace them without touching the
// generator or classifier.
type ProbabilityModel interface {
	IronCondor(avgIV float64) int
	BullCall(avgIV float64) int
	BearPut() int
	NakedPut() int
	LongStraddle() int
	NarrowCondor() int
}

// HeuristicModel is the default fixed-coefficient probability model.
type HeuristicModel struct{}

func (HeuristicModel) IronCondor(avgIV float64) int {
	return int(math.Min(85, math.Round(75+avgIV*20)))
}

func (HeuristicModel) BullCall(avgIV float64) int {
	return int(math.Round(65 + (0.3-math.Min(avgIV, 0.3))*50))
}

func (HeuristicModel) BearPut() int { return 63 }

func (HeuristicModel) NakedPut() int { return 55 }

func (HeuristicModel) LongStraddle() int { return 52 }

func (HeuristicModel) NarrowCondor() int { return 68 }

// Generator synthesizes candidate strategies for one underlying from its
// quote and full option chain.
type Generator struct {
	prob ProbabilityModel
}

func NewGenerator(prob ProbabilityModel) *Generator {
	if prob == nil {
		prob = HeuristicModel{}
	}
	return &Generator{prob: prob}
}

// expirationGroup is one expiration bucket of the chain, in natural order.
type expirationGroup struct {
	expiration time.Time
	contracts  []market.OptionContract
	calls      []market.OptionContract
	puts       []market.OptionContract
}

// Generate runs the four archetype rules over each expiration bucket of the
// chain. Rules are independent and non-exclusive: any expiration can produce
// zero to four-plus candidates, in rule order.
func (g *Generator) Generate(quote *market.Quote, chain []market.OptionContract, filters Filters, now time.Time) []Opportunity {
	if !quote.HasPrice() || len(chain) == 0 {
		return nil
	}
	price := quote.Last

	var opportunities []Opportunity
	for _, group := range groupByExpiration(chain) {
		// An expiration without both sides cannot form any archetype.
		if len(group.calls) == 0 || len(group.puts) == 0 {
			continue
		}

		daysToExpiry := int(math.Ceil(group.expiration.Sub(now).Hours() / 24))
		withinRange := filters.withinExpiryRange(daysToExpiry)
		avgIV := averageImpliedVol(group.contracts)

		candidates := make([]Opportunity, 0, 4)
		if withinRange && avgIV > 0.35 {
			if opp, ok := g.ironCondor(quote.Symbol, price, group, daysToExpiry, avgIV); ok {
				candidates = append(candidates, opp)
			}
		}
		if withinRange {
			if opp, ok := g.bullCallSpread(quote.Symbol, price, group, daysToExpiry, avgIV); ok {
				candidates = append(candidates, opp)
			}
			if opp, ok := g.bearPutSpread(quote.Symbol, price, group, daysToExpiry, avgIV); ok {
				candidates = append(candidates, opp)
			}
		}
		if daysToExpiry <= 14 {
			if opp, ok := g.nakedPut(quote.Symbol, price, group, daysToExpiry, avgIV); ok {
				candidates = append(candidates, opp)
			}
			if avgIV < 0.4 {
				if opp, ok := g.longStraddle(quote.Symbol, price, group, daysToExpiry, avgIV); ok {
					candidates = append(candidates, opp)
				}
			}
		}
		if withinRange {
			if opp, ok := g.narrowCondor(quote.Symbol, price, group, daysToExpiry, avgIV); ok {
				candidates = append(candidates, opp)
			}
		}

		for _, opp := range candidates {
			if filters.allows(&opp) {
				opportunities = append(opportunities, opp)
			}
		}
	}

	log.Debug().
		Str("symbol", quote.Symbol).
		Int("contracts", len(chain)).
		Int("opportunities", len(opportunities)).
		Msg("generation complete")

	return opportunities
}

func (g *Generator) ironCondor(symbol string, price float64, group expirationGroup, dte int, avgIV float64) (Opportunity, bool) {
	shortPut := findStrike(group.puts, price*0.97)
	longPut := findStrike(group.puts, price*0.95)
	shortCall := findStrike(group.calls, price*1.03)
	longCall := findStrike(group.calls, price*1.05)

	credit := (shortCall.Bid + shortPut.Bid) - (longCall.Ask + longPut.Ask)
	width := math.Abs(shortCall.Strike - longCall.Strike)
	maxLoss := width*strategy.ContractMultiplier - credit

	legs := []strategy.Leg{
		shortLeg(shortPut), longLeg(longPut),
		shortLeg(shortCall), longLeg(longCall),
	}

	opp := Opportunity{
		Symbol:        symbol,
		StrategyName:  "Iron Condor",
		Archetype:     ArchetypeCreditSpread,
		Expiration:    group.expiration,
		DaysToExpiry:  dte,
		Cost:          Dollars(credit),
		MaxLoss:       Dollars(maxLoss),
		MaxProfit:     Dollars(credit),
		Probability:   g.prob.IronCondor(avgIV),
		AvgImpliedVol: avgIV,
		Setup: map[string]float64{
			"short_put":  shortPut.Strike,
			"long_put":   longPut.Strike,
			"short_call": shortCall.Strike,
			"long_call":  longCall.Strike,
		},
		Greeks: strategy.AggregateGreeks(legs),
		Reason: fmt.Sprintf("Elevated implied volatility (%.0f%%) favors premium selling; wings at %.1f/%.1f bracket the expected move", avgIV*100, shortPut.Strike, shortCall.Strike),
	}
	return g.finalize(opp), true
}

func (g *Generator) bullCallSpread(symbol string, price float64, group expirationGroup, dte int, avgIV float64) (Opportunity, bool) {
	long := findStrike(group.calls, price)
	short := findStrike(group.calls, price*1.02)

	debit := long.Ask - short.Bid
	width := math.Abs(short.Strike - long.Strike)
	maxProfit := width*strategy.ContractMultiplier - debit

	legs := []strategy.Leg{longLeg(long), shortLeg(short)}

	opp := Opportunity{
		Symbol:        symbol,
		StrategyName:  "Bull Call Spread",
		Archetype:     ArchetypeDebitSpread,
		Expiration:    group.expiration,
		DaysToExpiry:  dte,
		Cost:          Dollars(debit),
		MaxLoss:       Dollars(debit),
		MaxProfit:     Dollars(maxProfit),
		Probability:   g.prob.BullCall(avgIV),
		AvgImpliedVol: avgIV,
		Setup: map[string]float64{
			"long_call":  long.Strike,
			"short_call": short.Strike,
		},
		Greeks: strategy.AggregateGreeks(legs),
		Reason: fmt.Sprintf("Defined-risk upside play: buy the %.1f call, finance with the %.1f", long.Strike, short.Strike),
	}
	return g.finalize(opp), true
}

func (g *Generator) bearPutSpread(symbol string, price float64, group expirationGroup, dte int, avgIV float64) (Opportunity, bool) {
	long := findStrike(group.puts, price)
	short := findStrike(group.puts, price*0.98)

	debit := long.Ask - short.Bid
	width := math.Abs(long.Strike - short.Strike)
	maxProfit := width*strategy.ContractMultiplier - debit

	legs := []strategy.Leg{longLeg(long), shortLeg(short)}

	opp := Opportunity{
		Symbol:        symbol,
		StrategyName:  "Bear Put Spread",
		Archetype:     ArchetypeDebitSpread,
		Expiration:    group.expiration,
		DaysToExpiry:  dte,
		Cost:          Dollars(debit),
		MaxLoss:       Dollars(debit),
		MaxProfit:     Dollars(maxProfit),
		Probability:   g.prob.BearPut(),
		AvgImpliedVol: avgIV,
		Setup: map[string]float64{
			"long_put":  long.Strike,
			"short_put": short.Strike,
		},
		Greeks: strategy.AggregateGreeks(legs),
		Reason: fmt.Sprintf("Defined-risk downside play: buy the %.1f put, finance with the %.1f", long.Strike, short.Strike),
	}
	return g.finalize(opp), true
}

func (g *Generator) nakedPut(symbol string, price float64, group expirationGroup, dte int, avgIV float64) (Opportunity, bool) {
	put := findStrike(group.puts, price*0.95)

	legs := []strategy.Leg{shortLeg(put)}

	opp := Opportunity{
		Symbol:        symbol,
		StrategyName:  "Naked Put",
		Archetype:     ArchetypeThetaDecay,
		Expiration:    group.expiration,
		DaysToExpiry:  dte,
		Cost:          Dollars(put.Bid),
		MaxLoss:       UnlimitedMoney(),
		MaxProfit:     Dollars(put.Bid),
		Probability:   g.prob.NakedPut(),
		AvgImpliedVol: avgIV,
		Setup: map[string]float64{
			"short_put": put.Strike,
		},
		Greeks: strategy.AggregateGreeks(legs),
		Reason: fmt.Sprintf("Short %d-day theta at the %.1f put; assignment risk below the strike", dte, put.Strike),
	}
	return g.finalize(opp), true
}

func (g *Generator) longStraddle(symbol string, price float64, group expirationGroup, dte int, avgIV float64) (Opportunity, bool) {
	call := findStrike(group.calls, price)
	put := findStrike(group.puts, price)

	debit := call.Ask + put.Ask

	legs := []strategy.Leg{longLeg(call), longLeg(put)}

	opp := Opportunity{
		Symbol:        symbol,
		StrategyName:  "Long Straddle",
		Archetype:     ArchetypeVolatility,
		Expiration:    group.expiration,
		DaysToExpiry:  dte,
		Cost:          Dollars(debit),
		MaxLoss:       Dollars(debit),
		MaxProfit:     UnlimitedMoney(),
		Probability:   g.prob.LongStraddle(),
		AvgImpliedVol: avgIV,
		Setup: map[string]float64{
			"call": call.Strike,
			"put":  put.Strike,
		},
		Greeks: strategy.AggregateGreeks(legs),
		Reason: fmt.Sprintf("Implied volatility %.0f%% leaves the ATM straddle cheap ahead of expiration", avgIV*100),
	}
	return g.finalize(opp), true
}

func (g *Generator) narrowCondor(symbol string, price float64, group expirationGroup, dte int, avgIV float64) (Opportunity, bool) {
	shortPut := findStrike(group.puts, price*0.98)
	longPut := findStrike(group.puts, price*0.965)
	shortCall := findStrike(group.calls, price*1.02)
	longCall := findStrike(group.calls, price*1.035)

	credit := (shortCall.Bid + shortPut.Bid) - (longCall.Ask + longPut.Ask)
	width := math.Abs(shortCall.Strike - longCall.Strike)
	maxLoss := width*strategy.ContractMultiplier - credit

	legs := []strategy.Leg{
		shortLeg(shortPut), longLeg(longPut),
		shortLeg(shortCall), longLeg(longCall),
	}

	opp := Opportunity{
		Symbol:        symbol,
		StrategyName:  "Narrow Iron Condor",
		Archetype:     ArchetypeCreditSpread,
		Expiration:    group.expiration,
		DaysToExpiry:  dte,
		Cost:          Dollars(credit),
		MaxLoss:       Dollars(maxLoss),
		MaxProfit:     Dollars(credit),
		Probability:   g.prob.NarrowCondor(),
		AvgImpliedVol: avgIV,
		Setup: map[string]float64{
			"short_put":  shortPut.Strike,
			"long_put":   longPut.Strike,
			"short_call": shortCall.Strike,
			"long_call":  longCall.Strike,
		},
		Greeks: strategy.AggregateGreeks(legs),
		Reason: fmt.Sprintf("Tight wings at %.1f/%.1f collect more credit for less room to move", shortPut.Strike, shortCall.Strike),
	}
	return g.finalize(opp), true
}

// finalize fills the derived fields shared by every archetype: reward/risk
// ratio with its sentinel rules, the IV percentile proxy, score and identity.
func (g *Generator) finalize(opp Opportunity) Opportunity {
	switch {
	case opp.MaxLoss.Unlimited:
		opp.RewardRisk = NotApplicable()
	case opp.MaxProfit.Unlimited:
		// Unlimited upside against bounded risk: fixed stand-in ratio.
		opp.RewardRisk = RatioOf(3)
	case opp.MaxLoss.Amount > 0:
		opp.RewardRisk = RatioOf(opp.MaxProfit.Amount / opp.MaxLoss.Amount)
	default:
		opp.RewardRisk = RatioOf(3)
	}

	opp.IVPercentile = int(math.Min(95, math.Round(opp.AvgImpliedVol*100)))
	opp.Score = Score(opp.Probability, opp.RewardRisk, opp.DaysToExpiry, opp.AvgImpliedVol)
	opp.ID = opportunityID(opp.Symbol, opp.StrategyName, opp.Expiration, opp.Setup)
	return opp
}

// findStrike returns the contract whose strike is closest to the target among
// those within 2% of it, else the first contract in the list. The fallback can
// hand back an economically distant strike when the chain is sparse; kept as a
// known approximation rather than failing the rule.
func findStrike(options []market.OptionContract, target float64) market.OptionContract {
	best := -1
	for i, opt := range options {
		distance := math.Abs(opt.Strike - target)
		if distance/target >= 0.02 {
			continue
		}
		if best < 0 || distance < math.Abs(options[best].Strike-target) {
			best = i
		}
	}
	if best < 0 {
		return options[0]
	}
	return options[best]
}

func groupByExpiration(chain []market.OptionContract) []expirationGroup {
	var groups []expirationGroup
	index := make(map[string]int)

	for _, c := range chain {
		key := c.Expiration.Format("2006-01-02")
		i, exists := index[key]
		if !exists {
			i = len(groups)
			index[key] = i
			groups = append(groups, expirationGroup{expiration: c.Expiration})
		}
		groups[i].contracts = append(groups[i].contracts, c)
		switch c.Type {
		case market.TypeCall:
			groups[i].calls = append(groups[i].calls, c)
		case market.TypePut:
			groups[i].puts = append(groups[i].puts, c)
		}
	}
	return groups
}

func averageImpliedVol(contracts []market.OptionContract) float64 {
	if len(contracts) == 0 {
		return 0
	}
	var sum float64
	for _, c := range contracts {
		sum += c.ImpliedVol
	}
	return sum / float64(len(contracts))
}

func longLeg(c market.OptionContract) strategy.Leg {
	return contractLeg(c, strategy.SideLong)
}

func shortLeg(c market.OptionContract) strategy.Leg {
	return contractLeg(c, strategy.SideShort)
}

func contractLeg(c market.OptionContract, side strategy.Side) strategy.Leg {
	return strategy.Leg{
		Type:       c.Type,
		Side:       side,
		Strike:     c.Strike,
		Quantity:   1,
		Premium:    c.Mid(),
		Bid:        c.Bid,
		Ask:        c.Ask,
		Delta:      c.Delta,
		Gamma:      c.Gamma,
		Theta:      c.Theta,
		Vega:       c.Vega,
		Expiration: c.Expiration,
	}
}
