package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/options-edge-scanner/internal/market"
)

// ErrUnsupportedArchetype is reported by payoff models that have no risk
// metric derivation yet. Callers get an explicit answer instead of silently
// zeroed metrics.
var ErrUnsupportedArchetype = errors.New("archetype has no risk metric model")

// RiskMetrics are the archetype-level risk numbers derived from a leg set.
type RiskMetrics struct {
	MaxProfit  float64   `json:"max_profit"`
	MaxLoss    float64   `json:"max_loss"`
	Breakevens []float64 `json:"breakevens"`
}

// PayoffModel derives risk metrics for one strategy archetype. Every variant
// either computes metrics or reports ErrUnsupportedArchetype; there is no
// silent no-op path.
type PayoffModel interface {
	Kind() Kind
	ComputeMetrics(legs []Leg) (RiskMetrics, error)
}

// payoffModels maps every known archetype to its model. Only the vertical
// spread has a closed-form derivation; the rest are declared so that callers
// get an explicit "unsupported" answer.
func payoffModels() map[Kind]PayoffModel {
	models := map[Kind]PayoffModel{
		KindVerticalSpread: verticalModel{},
	}
	for _, kind := range []Kind{
		KindIronCondor, KindStrangle, KindStraddle, KindButterfly,
		KindCalendarSpread, KindDiagonalSpread, KindCustom,
	} {
		models[kind] = unsupportedModel{kind: kind}
	}
	return models
}

type verticalModel struct{}

func (verticalModel) Kind() Kind { return KindVerticalSpread }

// ComputeMetrics handles two-leg long/short pairs of the same option type:
// maxLoss = |netPremium|, maxProfit = spread width minus maxLoss, breakeven
// at the long strike shifted by the per-share loss.
func (verticalModel) ComputeMetrics(legs []Leg) (RiskMetrics, error) {
	long, short, ok := verticalPair(legs)
	if !ok {
		return RiskMetrics{}, fmt.Errorf("vertical spread needs one long and one short leg of the same type: %w", ErrUnsupportedArchetype)
	}

	maxLoss := math.Abs(NetPremium(legs))
	width := math.Abs(short.Strike - long.Strike)
	maxProfit := width*ContractMultiplier - maxLoss

	var breakeven float64
	if long.Type == market.TypeCall {
		breakeven = long.Strike + maxLoss/ContractMultiplier
	} else {
		breakeven = long.Strike - maxLoss/ContractMultiplier
	}

	return RiskMetrics{
		MaxProfit:  maxProfit,
		MaxLoss:    maxLoss,
		Breakevens: []float64{breakeven},
	}, nil
}

type unsupportedModel struct {
	kind Kind
}

func (m unsupportedModel) Kind() Kind { return m.kind }

func (m unsupportedModel) ComputeMetrics([]Leg) (RiskMetrics, error) {
	return RiskMetrics{}, fmt.Errorf("%s: %w", m.kind, ErrUnsupportedArchetype)
}

// verticalPair extracts the long and short leg of a two-leg same-type pair.
func verticalPair(legs []Leg) (long, short *Leg, ok bool) {
	if len(legs) != 2 || legs[0].Type != legs[1].Type {
		return nil, nil, false
	}
	for i := range legs {
		switch legs[i].Side {
		case SideLong:
			long = &legs[i]
		case SideShort:
			short = &legs[i]
		}
	}
	if long == nil || short == nil {
		return nil, nil, false
	}
	return long, short, true
}
