package strategy

import (
	"math"

	"github.com/options-edge-scanner/internal/market"
)

// Greeks is the aggregate exposure snapshot for a strategy.
type Greeks struct {
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Analysis is the full metrics output for a user-built strategy.
type Analysis struct {
	NetPremium  float64   `json:"net_premium"` // positive = net credit
	Greeks      Greeks    `json:"greeks"`
	MaxProfit   float64   `json:"max_profit"`
	MaxLoss     float64   `json:"max_loss"`
	Breakevens  []float64 `json:"breakevens"`
	Probability int       `json:"probability"`
	RiskReward  float64   `json:"risk_reward"`
	// MetricsNote is set when the archetype has no risk metric model;
	// max profit/loss and breakevens stay at their zero values then.
	MetricsNote string `json:"metrics_note,omitempty"`
}

// ProbabilityModel estimates the heuristic win probability of a strategy.
// The fixed-coefficient heuristic lives behind this interface so a proper
// pricing-based model can be swapped in without touching callers.
type ProbabilityModel interface {
	WinProbability(s *Strategy, metrics RiskMetrics) int
}

// HeuristicProbability is the fixed-coefficient approximation: base 50%, and
// for vertical call pairs 100 - cost/width*100 clamped to [5,95].
type HeuristicProbability struct{}

func (HeuristicProbability) WinProbability(s *Strategy, metrics RiskMetrics) int {
	prob := 50

	if long, short, ok := verticalPair(s.Legs); ok && long.Type == market.TypeCall {
		width := math.Abs(short.Strike-long.Strike) * ContractMultiplier
		if width > 0 {
			prob = int(math.Round(100 - metrics.MaxLoss/width*100))
		}
		if prob < 5 {
			prob = 5
		}
		if prob > 95 {
			prob = 95
		}
	}

	return prob
}

// Calculator computes strategy metrics from a resolved leg set. Every output
// is a pure function of the legs; the calculator holds no per-strategy state.
type Calculator struct {
	models map[Kind]PayoffModel
	prob   ProbabilityModel
}

func NewCalculator() *Calculator {
	return &Calculator{
		models: payoffModels(),
		prob:   HeuristicProbability{},
	}
}

func (c *Calculator) Analyze(s *Strategy) Analysis {
	analysis := Analysis{
		NetPremium: NetPremium(s.Legs),
		Greeks:     AggregateGreeks(s.Legs),
	}

	model, exists := c.models[s.Kind]
	if !exists {
		model = unsupportedModel{kind: s.Kind}
	}

	metrics, err := model.ComputeMetrics(s.Legs)
	if err != nil {
		analysis.MetricsNote = err.Error()
	} else {
		analysis.MaxProfit = metrics.MaxProfit
		analysis.MaxLoss = metrics.MaxLoss
		analysis.Breakevens = metrics.Breakevens
		if metrics.MaxLoss != 0 {
			analysis.RiskReward = metrics.MaxProfit / math.Abs(metrics.MaxLoss)
		}
	}

	analysis.Probability = c.prob.WinProbability(s, metrics)

	return analysis
}

// NetPremium sums leg cash flows: premium * quantity * 100, long legs
// negative, short legs positive. Positive total = net credit.
func NetPremium(legs []Leg) float64 {
	var total float64
	for i := range legs {
		cost := legs[i].Premium * float64(legs[i].Quantity) * ContractMultiplier
		total += cost * legs[i].signum()
	}
	return total
}

// AggregateGreeks sums per-leg Greeks scaled by quantity using the same
// long=-1 sign convention as the cash flow. This intentionally diverges from
// conventional portfolio-Greek aggregation and is kept for output parity.
func AggregateGreeks(legs []Leg) Greeks {
	var g Greeks
	for i := range legs {
		sign := legs[i].signum()
		qty := float64(legs[i].Quantity)
		g.Delta += legs[i].Delta * qty * sign
		g.Theta += legs[i].Theta * qty * sign
		g.Vega += legs[i].Vega * qty * sign
	}
	return g
}
