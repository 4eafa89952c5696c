// Package provider implements the market-data REST client. The provider owns
// request throttling and failure isolation; the analysis engine above it only
// consumes the normalized quote and chain shapes.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/options-edge-scanner/internal/config"
	"github.com/options-edge-scanner/internal/market"
)

type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
}

func NewClient(cfg config.ProviderConfig) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "market-data",
		Timeout: time.Duration(cfg.BreakerCooldownSecs) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitPerSecond),
		breaker:     breaker,
	}
}

type quotesResponse struct {
	Quotes struct {
		Quote []struct {
			Symbol           string  `json:"symbol"`
			Last             float64 `json:"last"`
			Change           float64 `json:"change"`
			ChangePercentage float64 `json:"change_percentage"`
			Volume           int64   `json:"volume"`
		} `json:"quote"`
	} `json:"quotes"`
}

type chainResponse struct {
	Options struct {
		Option []struct {
			Symbol         string  `json:"symbol"`
			Strike         float64 `json:"strike"`
			OptionType     string  `json:"option_type"`
			Bid            float64 `json:"bid"`
			Ask            float64 `json:"ask"`
			Volume         int64   `json:"volume"`
			OpenInterest   int64   `json:"open_interest"`
			ExpirationDate string  `json:"expiration_date"`
			Greeks         *struct {
				Delta float64 `json:"delta"`
				Gamma float64 `json:"gamma"`
				Theta float64 `json:"theta"`
				Vega  float64 `json:"vega"`
				MidIV float64 `json:"mid_iv"`
			} `json:"greeks"`
		} `json:"option"`
	} `json:"options"`
}

type expirationsResponse struct {
	Expirations struct {
		Date []string `json:"date"`
	} `json:"expirations"`
}

// GetQuote fetches the underlying quote. An absent quote comes back as an
// empty Quote; callers treat a missing last price as "skip this symbol".
func (c *Client) GetQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	params := url.Values{}
	params.Set("symbols", symbol)

	var resp quotesResponse
	if err := c.getJSON(ctx, "/markets/quotes", params, &resp); err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}

	if len(resp.Quotes.Quote) == 0 {
		return &market.Quote{Symbol: symbol}, nil
	}

	q := resp.Quotes.Quote[0]
	return &market.Quote{
		Symbol:        q.Symbol,
		Last:          q.Last,
		Change:        q.Change,
		ChangePercent: q.ChangePercentage,
		Volume:        q.Volume,
		UpdatedAt:     time.Now(),
	}, nil
}

// GetOptionsChain fetches the chain for a symbol, optionally narrowed to one
// expiration. An empty chain is a valid "skip this symbol" answer, not an
// error.
func (c *Client) GetOptionsChain(ctx context.Context, symbol, expiration string) ([]market.OptionContract, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("greeks", "true")
	if expiration != "" {
		params.Set("expiration", expiration)
	}

	var resp chainResponse
	if err := c.getJSON(ctx, "/markets/options/chains", params, &resp); err != nil {
		return nil, fmt.Errorf("chain %s: %w", symbol, err)
	}

	contracts := make([]market.OptionContract, 0, len(resp.Options.Option))
	for _, o := range resp.Options.Option {
		exp, err := time.Parse(market.ExpirationDate, o.ExpirationDate)
		if err != nil {
			log.Debug().Str("symbol", symbol).Str("expiration", o.ExpirationDate).Msg("unparseable expiration, dropping contract")
			continue
		}
		contract := market.OptionContract{
			Symbol:       symbol,
			Strike:       o.Strike,
			Type:         market.OptionType(o.OptionType),
			Bid:          o.Bid,
			Ask:          o.Ask,
			Volume:       o.Volume,
			OpenInterest: o.OpenInterest,
			Expiration:   exp,
		}
		if o.Greeks != nil {
			contract.ImpliedVol = o.Greeks.MidIV
			contract.Delta = o.Greeks.Delta
			contract.Gamma = o.Greeks.Gamma
			contract.Theta = o.Greeks.Theta
			contract.Vega = o.Greeks.Vega
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

// GetOptionExpirations lists future expiration dates. Used by the interactive
// builder only; the scanner derives expirations from chain grouping.
func (c *Client) GetOptionExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp expirationsResponse
	if err := c.getJSON(ctx, "/markets/options/expirations", params, &resp); err != nil {
		return nil, fmt.Errorf("expirations %s: %w", symbol, err)
	}

	dates := make([]time.Time, 0, len(resp.Expirations.Date))
	for _, d := range resp.Expirations.Date {
		t, err := time.Parse(market.ExpirationDate, d)
		if err != nil {
			continue
		}
		dates = append(dates, t)
	}
	return dates, nil
}

// GetMarketOverview fetches optional market-wide context. Callers treat any
// error as "no context available".
func (c *Client) GetMarketOverview(ctx context.Context) (*market.Overview, error) {
	var resp struct {
		VIX     float64 `json:"vix"`
		Breadth float64 `json:"breadth"`
		Session string  `json:"session"`
	}
	if err := c.getJSON(ctx, "/markets/overview", nil, &resp); err != nil {
		return nil, err
	}
	return &market.Overview{
		VIX:       resp.VIX,
		Breadth:   resp.Breadth,
		Session:   resp.Session,
		UpdatedAt: time.Now(),
	}, nil
}

// getJSON performs one rate-limited, circuit-broken GET and decodes the body.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		endpoint := c.baseURL + path
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%s: status %d, body: %s", path, resp.StatusCode, string(body))
		}

		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	return err
}
