package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/options-edge-scanner/internal/market"
	"github.com/options-edge-scanner/internal/metrics"
)

// ErrScanInProgress is returned when a scan is triggered while another one
// has not reached a terminal state yet.
var ErrScanInProgress = errors.New("a scan is already running")

// MarketData is the provider contract consumed by the orchestrator. The
// provider owns caching, throttling and retries; the engine only sees the
// normalized shapes.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*market.Quote, error)
	GetOptionsChain(ctx context.Context, symbol, expiration string) ([]market.OptionContract, error)
	GetMarketOverview(ctx context.Context) (*market.Overview, error)
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

type ResultStatus string

const (
	ResultSuccess  ResultStatus = "success"
	ResultDegraded ResultStatus = "degraded"
	ResultFailed   ResultStatus = "failed"
)

// Progress is one per-symbol progress event published during a scan.
type Progress struct {
	RunID       string    `json:"run_id"`
	State       State     `json:"state"`
	Symbol      string    `json:"symbol"`
	SymbolIndex int       `json:"symbol_index"`
	Total       int       `json:"total"`
	Fraction    float64   `json:"fraction"`
	Timestamp   time.Time `json:"timestamp"`
}

// Result is the published outcome of one scan. Degraded results carry the
// fixed illustrative dataset and are explicitly flagged synthetic so they can
// never be mistaken for live output.
type Result struct {
	RunID       string           `json:"run_id"`
	Status      ResultStatus     `json:"status"`
	Synthetic   bool             `json:"synthetic"`
	Cause       string           `json:"cause,omitempty"`
	Tiers       Classified       `json:"tiers"`
	Message     string           `json:"message"`
	Overview    *market.Overview `json:"overview,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Orchestrator runs sequential fixed-universe scans. Symbols are processed
// one at a time to respect the upstream rate budget; the only shared state is
// the last published result and the progress counters, both overwritten
// wholesale at scan completion.
type Orchestrator struct {
	provider   MarketData
	generator  *Generator
	universe   []string
	cooldown   time.Duration
	collector  *metrics.Collector
	progressCh chan<- Progress
	resultCh   chan<- Result

	mu         sync.RWMutex
	state      State
	progress   float64
	lastResult *Result
}

// NewOrchestrator wires the scan pipeline. The universe and cooldown are
// injected configuration; progressCh and resultCh may be nil when nothing
// consumes them.
func NewOrchestrator(provider MarketData, generator *Generator, universe []string, cooldown time.Duration,
	collector *metrics.Collector, progressCh chan<- Progress, resultCh chan<- Result) *Orchestrator {
	return &Orchestrator{
		provider:   provider,
		generator:  generator,
		universe:   universe,
		cooldown:   cooldown,
		collector:  collector,
		progressCh: progressCh,
		resultCh:   resultCh,
		state:      StateIdle,
	}
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) Progress() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.progress
}

func (o *Orchestrator) LastResult() *Result {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastResult
}

func (o *Orchestrator) Universe() []string {
	out := make([]string, len(o.universe))
	copy(out, o.universe)
	return out
}

// Scan walks the universe in order, accumulates generated opportunities,
// classifies them and publishes the result. A second scan triggered while one
// is active is rejected with ErrScanInProgress. An unexpected panic anywhere
// in the pipeline is caught at this boundary and substituted with the
// synthetic demo dataset, flagged as degraded.
func (o *Orchestrator) Scan(ctx context.Context, filters Filters) (result *Result, err error) {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return nil, ErrScanInProgress
	}
	o.state = StateRunning
	o.progress = 0
	o.mu.Unlock()

	runID := uuid.NewString()
	startedAt := time.Now()
	o.collector.ScanStarted()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("run_id", runID).Msg("scan failed, falling back to synthetic dataset")
			result = o.demoFallback(runID, startedAt, fmt.Sprintf("scan panic: %v", r))
			err = nil
		}
	}()

	log.Info().Str("run_id", runID).Int("symbols", len(o.universe)).Msg("scan started")

	var (
		all      []Opportunity
		overview *market.Overview
	)

	for i, symbol := range o.universe {
		// Cooldown before every symbol but the first keeps the provider
		// inside its rate budget even across back-to-back scans.
		if i > 0 {
			if cancelled := o.wait(ctx); cancelled {
				return o.cancelResult(runID, startedAt, ctx.Err())
			}
		}
		if ctx.Err() != nil {
			return o.cancelResult(runID, startedAt, ctx.Err())
		}

		quote, qerr := o.provider.GetQuote(ctx, symbol)
		if qerr != nil {
			o.collector.ProviderError("quote")
			log.Warn().Err(qerr).Str("symbol", symbol).Msg("quote fetch failed, skipping symbol")
			o.advance(runID, symbol, i)
			continue
		}
		if !quote.HasPrice() {
			log.Debug().Str("symbol", symbol).Msg("no usable quote, skipping symbol")
			o.advance(runID, symbol, i)
			continue
		}

		chain, cerr := o.provider.GetOptionsChain(ctx, symbol, "")
		if cerr != nil {
			o.collector.ProviderError("chain")
			log.Warn().Err(cerr).Str("symbol", symbol).Msg("chain fetch failed, skipping symbol")
			o.advance(runID, symbol, i)
			continue
		}
		if len(chain) == 0 {
			log.Debug().Str("symbol", symbol).Msg("empty chain, skipping symbol")
			o.advance(runID, symbol, i)
			continue
		}

		// Market overview is context only; errors are ignored.
		if ov, overr := o.provider.GetMarketOverview(ctx); overr == nil && ov != nil {
			overview = ov
		}

		generated := o.generator.Generate(quote, chain, filters, time.Now())
		all = append(all, generated...)

		log.Info().
			Str("symbol", symbol).
			Int("generated", len(generated)).
			Int("accumulated", len(all)).
			Msg("symbol scanned")

		o.advance(runID, symbol, i)
	}

	tiers := Classify(all)
	completedAt := time.Now()

	result = &Result{
		RunID:       runID,
		Status:      ResultSuccess,
		Tiers:       tiers,
		Message:     fmt.Sprintf("Scan complete: %d opportunities across %d symbols", tiers.Total(), len(o.universe)),
		Overview:    overview,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}

	o.publish(result, StateComplete)
	o.collector.ScanCompleted(string(ResultSuccess), completedAt.Sub(startedAt).Seconds())

	log.Info().
		Str("run_id", runID).
		Int("high", len(tiers.High)).
		Int("medium", len(tiers.Medium)).
		Int("low", len(tiers.Low)).
		Int("near_miss", len(tiers.NearMiss)).
		Msg("scan complete")

	return result, nil
}

// wait sleeps the inter-symbol cooldown, returning true if the context was
// cancelled while waiting.
func (o *Orchestrator) wait(ctx context.Context) bool {
	if o.cooldown <= 0 {
		return ctx.Err() != nil
	}
	timer := time.NewTimer(o.cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

func (o *Orchestrator) advance(runID, symbol string, index int) {
	fraction := float64(index+1) / float64(len(o.universe))

	o.mu.Lock()
	o.progress = fraction
	o.mu.Unlock()

	if o.progressCh == nil {
		return
	}
	select {
	case o.progressCh <- Progress{
		RunID:       runID,
		State:       StateRunning,
		Symbol:      symbol,
		SymbolIndex: index,
		Total:       len(o.universe),
		Fraction:    fraction,
		Timestamp:   time.Now(),
	}:
	default:
		// Consumer is behind; progress is advisory.
	}
}

func (o *Orchestrator) cancelResult(runID string, startedAt time.Time, cause error) (*Result, error) {
	o.mu.Lock()
	o.state = StateFailed
	o.mu.Unlock()
	o.collector.ScanCompleted(string(ResultFailed), time.Since(startedAt).Seconds())
	log.Info().Str("run_id", runID).Msg("scan cancelled")
	return nil, cause
}

// demoFallback publishes the fixed illustrative dataset after a total scan
// failure. The result is unmistakably marked synthetic.
func (o *Orchestrator) demoFallback(runID string, startedAt time.Time, cause string) *Result {
	tiers := Classify(DemoOpportunities())
	result := &Result{
		RunID:       runID,
		Status:      ResultDegraded,
		Synthetic:   true,
		Cause:       cause,
		Tiers:       tiers,
		Message:     fmt.Sprintf("SYNTHETIC DATA: scan failed (%s); showing %d illustrative opportunities", cause, tiers.Total()),
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}
	o.publish(result, StateFailed)
	o.collector.ScanCompleted(string(ResultDegraded), time.Since(startedAt).Seconds())
	return result
}

func (o *Orchestrator) publish(result *Result, terminal State) {
	o.mu.Lock()
	o.state = terminal
	o.progress = 1
	o.lastResult = result
	o.mu.Unlock()

	o.collector.SetTierSize(string(TierHigh), len(result.Tiers.High))
	o.collector.SetTierSize(string(TierMedium), len(result.Tiers.Medium))
	o.collector.SetTierSize(string(TierLow), len(result.Tiers.Low))
	o.collector.SetTierSize(string(TierNearMiss), len(result.Tiers.NearMiss))

	if o.resultCh == nil {
		return
	}
	select {
	case o.resultCh <- *result:
	default:
	}
}
