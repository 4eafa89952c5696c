package strategy

import "github.com/options-edge-scanner/internal/market"

// ContractMultiplier is the share count behind one option contract.
const ContractMultiplier = 100

// PricePoint is one sample of the aggregate profit/loss curve.
type PricePoint struct {
	Price   float64 `json:"price"`
	TotalPL float64 `json:"total_pl"`
}

// LegPayoff computes one leg's profit/loss at expiration for the given
// underlying price, scaled by quantity and the contract multiplier.
func LegPayoff(leg Leg, price float64) float64 {
	var pl float64
	switch leg.Type {
	case market.TypeCall:
		if price > leg.Strike {
			pl = (price - leg.Strike - leg.Premium) * ContractMultiplier
		} else {
			pl = -leg.Premium * ContractMultiplier
		}
	case market.TypePut:
		if price < leg.Strike {
			pl = (leg.Strike - price - leg.Premium) * ContractMultiplier
		} else {
			pl = -leg.Premium * ContractMultiplier
		}
	}
	if leg.Side == SideShort {
		pl = -pl
	}
	return pl * float64(leg.Quantity)
}

// PriceSweep samples the aggregate P/L curve over currentPrice ± 30%,
// 41 evenly spaced points inclusive of both ends. The sweep is a pure
// function of its inputs: identical legs and price always produce an
// identical sequence. A non-positive price yields an empty curve.
func PriceSweep(legs []Leg, currentPrice float64) []PricePoint {
	if currentPrice <= 0 {
		return nil
	}

	span := 0.30 * currentPrice
	step := span / 20
	start := currentPrice - span

	points := make([]PricePoint, 0, 41)
	for i := 0; i <= 40; i++ {
		price := start + float64(i)*step
		var total float64
		for _, leg := range legs {
			total += LegPayoff(leg, price)
		}
		points = append(points, PricePoint{Price: price, TotalPL: total})
	}
	return points
}
