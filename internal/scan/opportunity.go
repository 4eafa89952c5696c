package scan

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"time"

	"github.com/options-edge-scanner/internal/strategy"
)

// Archetype tags the construction rule that produced an opportunity.
type Archetype string

const (
	ArchetypeCreditSpread Archetype = "credit-spread"
	ArchetypeDebitSpread  Archetype = "debit-spread"
	ArchetypeThetaDecay   Archetype = "theta-decay"
	ArchetypeVolatility   Archetype = "volatility"
)

// Money is a dollar amount that may carry the "unlimited" sentinel for
// untyped risk. It marshals to a number or the string "unlimited", never NaN.
type Money struct {
	Amount    float64
	Unlimited bool
}

func Dollars(v float64) Money { return Money{Amount: v} }

func UnlimitedMoney() Money { return Money{Unlimited: true} }

func (m Money) MarshalJSON() ([]byte, error) {
	if m.Unlimited {
		return json.Marshal("unlimited")
	}
	return json.Marshal(math.Round(m.Amount*100) / 100)
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unlimited" {
			return fmt.Errorf("unknown money sentinel %q", s)
		}
		*m = UnlimitedMoney()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Dollars(v)
	return nil
}

func (m Money) String() string {
	if m.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("$%.2f", m.Amount)
}

// Ratio is a reward/risk ratio that may carry the "not applicable" sentinel
// when the downside is unlimited.
type Ratio struct {
	Value      float64
	Applicable bool
}

func RatioOf(v float64) Ratio { return Ratio{Value: v, Applicable: true} }

func NotApplicable() Ratio { return Ratio{} }

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Applicable {
		return json.Marshal("n/a")
	}
	return json.Marshal(math.Round(r.Value*100) / 100)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "n/a" {
			return fmt.Errorf("unknown ratio sentinel %q", s)
		}
		*r = NotApplicable()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = RatioOf(v)
	return nil
}

func (r Ratio) String() string {
	if !r.Applicable {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", r.Value)
}

// Opportunity is one generated, scored candidate strategy. Opportunities are
// created fresh on every scan and never mutated afterwards.
type Opportunity struct {
	ID             string             `json:"id"`
	Symbol         string             `json:"symbol"`
	StrategyName   string             `json:"strategy_name"`
	Archetype      Archetype          `json:"archetype"`
	Expiration     time.Time          `json:"expiration"`
	DaysToExpiry   int                `json:"days_to_expiry"`
	Cost           Money              `json:"cost"`
	MaxLoss        Money              `json:"max_loss"`
	MaxProfit      Money              `json:"max_profit"`
	RewardRisk     Ratio              `json:"reward_risk_ratio"`
	Probability    int                `json:"probability"`
	IVPercentile   int                `json:"iv_percentile"`
	AvgImpliedVol  float64            `json:"avg_implied_vol"`
	Setup          map[string]float64 `json:"setup"`
	Greeks         strategy.Greeks    `json:"greeks"`
	Reason         string             `json:"reason"`
	Score          int                `json:"score"`
	NearMissReason string             `json:"near_miss_reason,omitempty"`
}

// opportunityID builds a reproducible identity from the fields that define
// the structure: symbol, strategy, expiration and the strike set. Collisions
// are acceptable for a display-only key, but identical candidates always get
// identical IDs across scans.
func opportunityID(symbol, strategyName string, expiration time.Time, setup map[string]float64) string {
	names := make([]string, 0, len(setup))
	for name := range setup {
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", symbol, strategyName, expiration.Format("2006-01-02"))
	for _, name := range names {
		fmt.Fprintf(h, "|%s=%.2f", name, setup[name])
	}
	return fmt.Sprintf("%s-%s-%x", symbol, expiration.Format("20060102"), h.Sum64())
}

// Filters are the user-configurable scan thresholds. Zero values are
// permissive: only explicitly set thresholds constrain generation.
type Filters struct {
	MinProbability int         `json:"min_probability"`
	MaxRisk        float64     `json:"max_risk"`
	MinRewardRatio float64     `json:"min_reward_ratio"`
	ExpiryDays     [2]int      `json:"expiry_days"`
	StrategyTypes  []Archetype `json:"strategy_types"`
}

// withinExpiryRange reports whether a days-to-expiry value falls inside the
// configured window.
func (f Filters) withinExpiryRange(days int) bool {
	return days >= f.ExpiryDays[0] && days <= f.ExpiryDays[1]
}

// allows applies the optional post-generation thresholds.
func (f Filters) allows(o *Opportunity) bool {
	if f.MinProbability > 0 && o.Probability < f.MinProbability {
		return false
	}
	if f.MaxRisk > 0 && !o.MaxLoss.Unlimited && o.MaxLoss.Amount > f.MaxRisk {
		return false
	}
	if f.MinRewardRatio > 0 && o.RewardRisk.Applicable && o.RewardRisk.Value < f.MinRewardRatio {
		return false
	}
	if len(f.StrategyTypes) > 0 {
		found := false
		for _, t := range f.StrategyTypes {
			if t == o.Archetype {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
