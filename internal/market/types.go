package market

import "time"

type OptionType string

const (
	TypeCall OptionType = "call"
	TypePut  OptionType = "put"
)

// Quote is a normalized underlying price quote from the data provider.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Last          float64   `json:"last"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasPrice reports whether the quote carries a usable last price.
// A missing or non-positive last means "skip this symbol".
func (q *Quote) HasPrice() bool {
	return q != nil && q.Last > 0
}

// OptionContract is one chain row, supplied read-only by the data provider.
type OptionContract struct {
	Symbol       string     `json:"symbol"`
	Strike       float64    `json:"strike"`
	Type         OptionType `json:"type"`
	Bid          float64    `json:"bid"`
	Ask          float64    `json:"ask"`
	Volume       int64      `json:"volume"`
	OpenInterest int64      `json:"open_interest"`
	ImpliedVol   float64    `json:"implied_vol"`
	Delta        float64    `json:"delta"`
	Gamma        float64    `json:"gamma"`
	Theta        float64    `json:"theta"`
	Vega         float64    `json:"vega"`
	Expiration   time.Time  `json:"expiration"`
}

// Mid returns the bid/ask midpoint, falling back to whichever side is quoted.
func (c *OptionContract) Mid() float64 {
	if c.Bid > 0 && c.Ask > 0 {
		return (c.Bid + c.Ask) / 2
	}
	if c.Ask > 0 {
		return c.Ask
	}
	return c.Bid
}

// Overview is optional market-wide context fetched best-effort during a scan.
type Overview struct {
	VIX       float64   `json:"vix"`
	Breadth   float64   `json:"breadth"`
	Session   string    `json:"session"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpirationDate is the wire format used for option expirations.
const ExpirationDate = "2006-01-02"
