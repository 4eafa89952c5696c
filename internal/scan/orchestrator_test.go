package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/options-edge-scanner/internal/market"
)

// fakeProvider is a scripted MarketData double: per-symbol quotes, chains and
// errors, plus optional blocking and panicking hooks for lifecycle tests.
type fakeProvider struct {
	mu        sync.Mutex
	quotes    map[string]*market.Quote
	chains    map[string][]market.OptionContract
	quoteErrs map[string]error
	overview  *market.Overview
	blockOn   chan struct{}
	panicOn   string
	requested []string
}

func (p *fakeProvider) GetQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	p.mu.Lock()
	p.requested = append(p.requested, symbol)
	block := p.blockOn
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if symbol == p.panicOn {
		panic("provider exploded")
	}
	if err, ok := p.quoteErrs[symbol]; ok {
		return nil, err
	}
	if q, ok := p.quotes[symbol]; ok {
		return q, nil
	}
	return &market.Quote{Symbol: symbol}, nil
}

func (p *fakeProvider) GetOptionsChain(ctx context.Context, symbol, expiration string) ([]market.OptionContract, error) {
	return p.chains[symbol], nil
}

func (p *fakeProvider) GetMarketOverview(ctx context.Context) (*market.Overview, error) {
	if p.overview == nil {
		return nil, errors.New("overview unavailable")
	}
	return p.overview, nil
}

func (p *fakeProvider) symbolsRequested() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.requested))
	copy(out, p.requested)
	return out
}

func TestScan_HappyPathSkipsFailingSymbols(t *testing.T) {
	expiration := time.Now().Add(10 * 24 * time.Hour)
	provider := &fakeProvider{
		quotes: map[string]*market.Quote{
			"SPY": {Symbol: "SPY", Last: 450},
			"QQQ": {Symbol: "QQQ", Last: 380},
		},
		chains: map[string][]market.OptionContract{
			"SPY": spyChain(expiration, 0.5, spyStrikes()...),
			"QQQ": spyChain(expiration, 0.5, 361, 368.6, 372.4, 383.8, 387.6, 391.4, 399),
		},
		quoteErrs: map[string]error{"BAD": errors.New("upstream 502")},
		overview:  &market.Overview{VIX: 17.2, Session: "open"},
	}

	progressCh := make(chan Progress, 16)
	resultCh := make(chan Result, 1)
	orch := NewOrchestrator(provider, NewGenerator(nil), []string{"SPY", "BAD", "QQQ"}, 0, nil, progressCh, resultCh)

	result, err := orch.Scan(context.Background(), defaultFilters())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, ResultSuccess, result.Status)
	assert.False(t, result.Synthetic)
	assert.NotEmpty(t, result.RunID)
	assert.Greater(t, result.Tiers.Total(), 0)
	assert.Contains(t, result.Message, "3 symbols")
	require.NotNil(t, result.Overview)
	assert.InDelta(t, 17.2, result.Overview.VIX, 1e-9)

	// The failing symbol is skipped, not fatal; all three were attempted.
	assert.Equal(t, []string{"SPY", "BAD", "QQQ"}, provider.symbolsRequested())

	assert.Equal(t, StateComplete, orch.State())
	assert.InDelta(t, 1.0, orch.Progress(), 1e-9)
	require.NotNil(t, orch.LastResult())
	assert.Equal(t, result.RunID, orch.LastResult().RunID)

	// One progress event per symbol, and the published result on the bus.
	assert.Len(t, progressCh, 3)
	published := <-resultCh
	assert.Equal(t, result.RunID, published.RunID)
}

func TestScan_RejectsConcurrentRuns(t *testing.T) {
	block := make(chan struct{})
	expiration := time.Now().Add(10 * 24 * time.Hour)
	provider := &fakeProvider{
		quotes:  map[string]*market.Quote{"SPY": {Symbol: "SPY", Last: 450}},
		chains:  map[string][]market.OptionContract{"SPY": spyChain(expiration, 0.5, spyStrikes()...)},
		blockOn: block,
	}

	orch := NewOrchestrator(provider, NewGenerator(nil), []string{"SPY"}, 0, nil, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = orch.Scan(context.Background(), defaultFilters())
	}()

	require.Eventually(t, func() bool {
		return orch.State() == StateRunning
	}, time.Second, 5*time.Millisecond)

	_, err := orch.Scan(context.Background(), defaultFilters())
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(block)
	<-done
	assert.Equal(t, StateComplete, orch.State())

	// Once the first run reaches a terminal state, a new scan is accepted.
	_, err = orch.Scan(context.Background(), defaultFilters())
	assert.NoError(t, err)
}

func TestScan_PanicFallsBackToSyntheticDataset(t *testing.T) {
	provider := &fakeProvider{panicOn: "SPY"}
	orch := NewOrchestrator(provider, NewGenerator(nil), []string{"SPY"}, 0, nil, nil, nil)

	result, err := orch.Scan(context.Background(), defaultFilters())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, ResultDegraded, result.Status)
	assert.True(t, result.Synthetic)
	assert.Contains(t, result.Cause, "scan panic")
	assert.Contains(t, result.Message, "SYNTHETIC DATA")
	assert.Greater(t, result.Tiers.Total(), 0)
	assert.Equal(t, StateFailed, orch.State())
}

func TestScan_ContextCancelled(t *testing.T) {
	expiration := time.Now().Add(10 * 24 * time.Hour)
	provider := &fakeProvider{
		quotes: map[string]*market.Quote{
			"SPY": {Symbol: "SPY", Last: 450},
			"QQQ": {Symbol: "QQQ", Last: 380},
		},
		chains: map[string][]market.OptionContract{
			"SPY": spyChain(expiration, 0.5, spyStrikes()...),
		},
	}

	// A long cooldown guarantees the cancellation lands between symbols.
	orch := NewOrchestrator(provider, NewGenerator(nil), []string{"SPY", "QQQ"}, time.Minute, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := orch.Scan(ctx, defaultFilters())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, orch.State())

	// Only the first symbol got as far as a quote request.
	assert.Equal(t, []string{"SPY"}, provider.symbolsRequested())
}

func TestScan_SymbolWithoutPriceSkipped(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]*market.Quote{"HALT": {Symbol: "HALT"}},
	}
	orch := NewOrchestrator(provider, NewGenerator(nil), []string{"HALT"}, 0, nil, nil, nil)

	result, err := orch.Scan(context.Background(), defaultFilters())
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, result.Status)
	assert.Zero(t, result.Tiers.Total())
}

func TestScan_UniverseIsCopied(t *testing.T) {
	orch := NewOrchestrator(&fakeProvider{}, NewGenerator(nil), []string{"SPY", "QQQ"}, 0, nil, nil, nil)

	universe := orch.Universe()
	universe[0] = "MUTATED"
	assert.Equal(t, []string{"SPY", "QQQ"}, orch.Universe())
}
