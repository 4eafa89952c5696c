package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/options-edge-scanner/internal/market"
)

func longCall(strike, premium float64) Leg {
	return Leg{
		Type:       market.TypeCall,
		Side:       SideLong,
		Strike:     strike,
		Quantity:   1,
		Premium:    premium,
		Expiration: time.Now().AddDate(0, 1, 0),
	}
}

func TestLegPayoff_LongCall(t *testing.T) {
	leg := longCall(100, 5)

	// At the strike the full premium is lost.
	assert.InDelta(t, -500, LegPayoff(leg, 100), 1e-9)
	// Breakeven at strike + premium.
	assert.InDelta(t, 0, LegPayoff(leg, 105), 1e-9)
	// Above breakeven the payoff is positive.
	assert.InDelta(t, 500, LegPayoff(leg, 110), 1e-9)
}

func TestLegPayoff_ShortNegatesAndQuantityScales(t *testing.T) {
	long := longCall(100, 5)
	short := long
	short.Side = SideShort

	assert.InDelta(t, -LegPayoff(long, 112), LegPayoff(short, 112), 1e-9)

	double := long
	double.Quantity = 2
	assert.InDelta(t, 2*LegPayoff(long, 112), LegPayoff(double, 112), 1e-9)
}

func TestLegPayoff_Put(t *testing.T) {
	leg := Leg{Type: market.TypePut, Side: SideLong, Strike: 100, Quantity: 1, Premium: 3}

	assert.InDelta(t, -300, LegPayoff(leg, 100), 1e-9)
	assert.InDelta(t, 0, LegPayoff(leg, 97), 1e-9)
	assert.InDelta(t, 700, LegPayoff(leg, 90), 1e-9)
	// OTM side: premium lost, nothing more.
	assert.InDelta(t, -300, LegPayoff(leg, 120), 1e-9)
}

func TestPriceSweep_Shape(t *testing.T) {
	legs := []Leg{longCall(100, 5)}

	curve := PriceSweep(legs, 100)
	require.Len(t, curve, 41)

	assert.InDelta(t, 70, curve[0].Price, 1e-9)
	assert.InDelta(t, 130, curve[40].Price, 1e-9)

	// Step is 30% of spot over 20.
	assert.InDelta(t, 1.5, curve[1].Price-curve[0].Price, 1e-9)
}

func TestPriceSweep_SingleLongCallProperties(t *testing.T) {
	legs := []Leg{longCall(100, 5)}
	curve := PriceSweep(legs, 100)

	// The strike itself is a sample point at index 20 for spot 100.
	require.InDelta(t, 100, curve[20].Price, 1e-9)
	assert.InDelta(t, -500, curve[20].TotalPL, 1e-9)

	// Non-decreasing above the strike.
	for i := 21; i < len(curve); i++ {
		assert.GreaterOrEqual(t, curve[i].TotalPL, curve[i-1].TotalPL,
			"curve must not decrease above the strike (index %d)", i)
	}
}

func TestPriceSweep_NonPositivePrice(t *testing.T) {
	legs := []Leg{longCall(100, 5)}

	assert.Empty(t, PriceSweep(legs, 0))
	assert.Empty(t, PriceSweep(legs, -12))
}

func TestPriceSweep_Idempotent(t *testing.T) {
	legs := []Leg{
		longCall(100, 5),
		{Type: market.TypePut, Side: SideShort, Strike: 95, Quantity: 2, Premium: 2.5},
	}

	first := PriceSweep(legs, 100)
	second := PriceSweep(legs, 100)
	require.Equal(t, first, second)
}
