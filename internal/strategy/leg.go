package strategy

import (
	"time"

	"github.com/options-edge-scanner/internal/market"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

type Kind string

const (
	KindVerticalSpread Kind = "vertical-spread"
	KindIronCondor     Kind = "iron-condor"
	KindStrangle       Kind = "strangle"
	KindStraddle       Kind = "straddle"
	KindButterfly      Kind = "butterfly"
	KindCalendarSpread Kind = "calendar-spread"
	KindDiagonalSpread Kind = "diagonal-spread"
	KindCustom         Kind = "custom"
)

// Leg is one option position within a strategy. Premium and Greeks are
// resolved against the current chain; an unmatched leg keeps them at zero.
type Leg struct {
	Type       market.OptionType `json:"type"`
	Side       Side              `json:"side"`
	Strike     float64           `json:"strike"`
	Quantity   int               `json:"quantity"`
	Premium    float64           `json:"premium"`
	Bid        float64           `json:"bid"`
	Ask        float64           `json:"ask"`
	Delta      float64           `json:"delta"`
	Gamma      float64           `json:"gamma"`
	Theta      float64           `json:"theta"`
	Vega       float64           `json:"vega"`
	Expiration time.Time         `json:"expiration"`
}

// signum maps the leg's side onto the cash-flow sign convention used by the
// metrics calculator: long legs count -1, short legs +1.
func (l *Leg) signum() float64 {
	if l.Side == SideLong {
		return -1
	}
	return 1
}

// Strategy is an ordered collection of legs plus a kind tag. All legs share
// the same underlying symbol; mixed expirations only occur for the
// calendar/diagonal kinds.
type Strategy struct {
	Symbol string `json:"symbol"`
	Kind   Kind   `json:"kind"`
	Legs   []Leg  `json:"legs"`
}

// ResolveLegs fills premium, bid/ask and Greeks for each leg by matching
// {type, strike, expiration} against the chain. Unmatched legs are left with
// zero premium and Greeks rather than failing: degraded input, not an error.
func ResolveLegs(legs []Leg, chain []market.OptionContract) []Leg {
	resolved := make([]Leg, len(legs))
	for i, leg := range legs {
		resolved[i] = leg
		for j := range chain {
			c := &chain[j]
			if c.Type != leg.Type || c.Strike != leg.Strike {
				continue
			}
			if !sameDay(c.Expiration, leg.Expiration) {
				continue
			}
			resolved[i].Premium = c.Mid()
			resolved[i].Bid = c.Bid
			resolved[i].Ask = c.Ask
			resolved[i].Delta = c.Delta
			resolved[i].Gamma = c.Gamma
			resolved[i].Theta = c.Theta
			resolved[i].Vega = c.Vega
			break
		}
	}
	return resolved
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
