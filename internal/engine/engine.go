// Package engine runs the evaluation cycle end to end: portfolio
// snapshot, signal evaluation, decision combining, target sizing, trade
// planning, and execution. One engine instance serializes its cycles,
// so two ticks can never trade against each other.
package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/domain"
	"github.com/peakmont/driftbot/internal/journal"
	"github.com/peakmont/driftbot/internal/market"
	"github.com/peakmont/driftbot/internal/metrics"
	"github.com/peakmont/driftbot/internal/portfolio"
	"github.com/peakmont/driftbot/internal/strategy"
)

// Cycle outcomes as recorded on the cycle counter.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeSkipped   = "skipped"
)

// Executor sends one trade intent to the venue and returns the venue
// transaction id.
type Executor interface {
	Execute(ctx context.Context, cycleID string, intent domain.TradeIntent) (string, error)
}

// PortfolioSource provides the current holdings snapshot.
type PortfolioSource interface {
	Portfolio(ctx context.Context) (domain.Portfolio, error)
}

// Params collects the engine's collaborators. Assets must hold enabled
// assets only; Baseline maps each of their symbols to its target weight.
type Params struct {
	Assets     map[string]domain.Asset
	Baseline   map[string]float64
	History    *market.History
	Source     PortfolioSource
	Strategies []strategy.Strategy
	Combiner   *strategy.Combiner
	Sizer      *portfolio.Sizer
	Planner    *portfolio.Planner
	Journal    *journal.Journal
	Executor   Executor
	Metrics    *metrics.Registry
	DryRun     bool
}

// Summary is the outcome of one cycle, kept for the status endpoint and
// the reports.
type Summary struct {
	CycleID    string        `json:"cycle_id"`
	StartedAt  time.Time     `json:"started_at"`
	Took       time.Duration `json:"took_ns"`
	Outcome    string        `json:"outcome"`
	DryRun     bool          `json:"dry_run"`
	TotalValue float64       `json:"total_value"`
	Assets     int           `json:"assets_evaluated"`
	Buys       int           `json:"buy_decisions"`
	Sells      int           `json:"sell_decisions"`
	Holds      int           `json:"hold_decisions"`
	Intents    int           `json:"intents"`
	Executed   int           `json:"executed"`
	Failed     int           `json:"failed"`
	Error      string        `json:"error,omitempty"`
}

// Engine owns the allocation pipeline.
type Engine struct {
	assets     map[string]domain.Asset
	baseline   map[string]float64
	history    *market.History
	source     PortfolioSource
	strategies []strategy.Strategy
	combiner   *strategy.Combiner
	sizer      *portfolio.Sizer
	planner    *portfolio.Planner
	journal    *journal.Journal
	executor   Executor
	metrics    *metrics.Registry
	dryRun     bool

	// cycleMu serializes RunCycle and EvaluateSignals.
	cycleMu sync.Mutex

	stateMu   sync.RWMutex
	hasRun    bool
	last      Summary
	decisions map[string]domain.Decision
	intents   []domain.TradeIntent
}

// New builds an engine from its parts.
func New(p Params) *Engine {
	return &Engine{
		assets:     p.Assets,
		baseline:   p.Baseline,
		history:    p.History,
		source:     p.Source,
		strategies: p.Strategies,
		combiner:   p.Combiner,
		sizer:      p.Sizer,
		planner:    p.Planner,
		journal:    p.Journal,
		executor:   p.Executor,
		metrics:    p.Metrics,
		dryRun:     p.DryRun,
	}
}

// DryRun reports whether the engine plans without trading.
func (e *Engine) DryRun() bool {
	return e.dryRun
}

// RunCycle executes one full evaluation cycle. A failed portfolio
// snapshot skips the cycle; a canceled context aborts it between trades
// but never mid-trade. Individual trade failures are absorbed so the
// rest of the plan still executes.
func (e *Engine) RunCycle(ctx context.Context) (Summary, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	start := time.Now()
	sum := Summary{
		CycleID:   uuid.NewString(),
		StartedAt: start,
		DryRun:    e.dryRun,
	}
	logger := log.With().Str("cycle_id", sum.CycleID).Logger()
	logger.Info().Bool("dry_run", e.dryRun).Msg("evaluation cycle started")

	current, err := e.source.Portfolio(ctx)
	if err != nil {
		sum.Outcome = OutcomeSkipped
		sum.Error = err.Error()
		sum.Took = time.Since(start)
		e.metrics.RecordCycle(OutcomeSkipped, sum.Took)
		e.store(sum, nil, nil)
		logger.Error().Err(err).Msg("portfolio snapshot failed, cycle skipped")
		return sum, fmt.Errorf("portfolio snapshot: %w", err)
	}
	sum.TotalValue = current.TotalValue
	e.metrics.SetPortfolio(current.TotalValue)

	decisions := e.evaluate(logger, &sum)

	if err := ctx.Err(); err != nil {
		return e.abort(logger, sum, start, decisions, err)
	}

	targets := e.sizer.Targets(e.assets, e.baseline, decisions, current.TotalValue)
	e.publishGauges(current, targets)

	intents := e.planner.Plan(current, targets)
	sum.Intents = len(intents)

	for _, intent := range intents {
		if err := ctx.Err(); err != nil {
			return e.abort(logger, sum, start, decisions, err)
		}
		e.executeIntent(ctx, logger, sum.CycleID, intent, &sum)
	}

	sum.Outcome = OutcomeCompleted
	sum.Took = time.Since(start)
	e.metrics.RecordCycle(OutcomeCompleted, sum.Took)
	e.store(sum, decisions, intents)

	logger.Info().
		Float64("total_value", sum.TotalValue).
		Int("assets", sum.Assets).
		Int("intents", sum.Intents).
		Int("executed", sum.Executed).
		Int("failed", sum.Failed).
		Dur("took", sum.Took).
		Msg("evaluation cycle completed")
	return sum, nil
}

// EvaluateSignals refreshes decisions from the current price history
// without touching the portfolio. RunCycle stays the only path that
// trades.
func (e *Engine) EvaluateSignals(ctx context.Context) error {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	logger := log.With().Str("job", "signals").Logger()
	var sum Summary
	decisions := e.evaluate(logger, &sum)

	e.stateMu.Lock()
	e.decisions = decisions
	e.stateMu.Unlock()

	logger.Info().
		Int("assets", sum.Assets).
		Int("buy", sum.Buys).
		Int("sell", sum.Sells).
		Int("hold", sum.Holds).
		Msg("signal refresh completed")
	return nil
}

// LastSummary returns the most recent cycle summary; ok is false until
// the first cycle finishes.
func (e *Engine) LastSummary() (Summary, bool) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.last, e.hasRun
}

// LastDecisions returns a copy of the most recent per-asset decisions.
func (e *Engine) LastDecisions() map[string]domain.Decision {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	out := make(map[string]domain.Decision, len(e.decisions))
	for k, v := range e.decisions {
		out[k] = v
	}
	return out
}

// LastIntents returns a copy of the most recent trade plan.
func (e *Engine) LastIntents() []domain.TradeIntent {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	out := make([]domain.TradeIntent, len(e.intents))
	copy(out, e.intents)
	return out
}

func (e *Engine) evaluate(logger zerolog.Logger, sum *Summary) map[string]domain.Decision {
	symbols := make([]string, 0, len(e.assets))
	for sym := range e.assets {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	decisions := make(map[string]domain.Decision, len(symbols))
	for _, sym := range symbols {
		asset := e.assets[sym]
		series := e.history.Snapshot(sym)

		signals := make([]domain.Signal, 0, len(e.strategies))
		for _, s := range e.strategies {
			sig := s.Evaluate(asset, series)
			e.metrics.RecordSignal(sig.Strategy, string(sig.Direction))
			signals = append(signals, sig)
		}

		d := e.combiner.Combine(sym, signals)
		decisions[sym] = d

		sum.Assets++
		switch d.Direction {
		case domain.Buy:
			sum.Buys++
		case domain.Sell:
			sum.Sells++
		default:
			sum.Holds++
		}

		logger.Debug().
			Str("symbol", sym).
			Str("direction", string(d.Direction)).
			Float64("strength", d.Strength).
			Str("reason", d.Reason).
			Int("samples", len(series)).
			Msg("decision")
	}
	return decisions
}

func (e *Engine) executeIntent(ctx context.Context, logger zerolog.Logger, cycleID string, intent domain.TradeIntent, sum *Summary) {
	e.metrics.RecordIntent(string(intent.Side))

	status := journal.StatusPlanned
	if e.dryRun {
		status = journal.StatusDryRun
	}
	if err := e.journal.Record(ctx, cycleID, intent, status); err != nil {
		logger.Warn().Err(err).Str("symbol", intent.Symbol).Msg("journal write failed")
	}

	if e.dryRun {
		logger.Info().
			Str("symbol", intent.Symbol).
			Str("side", string(intent.Side)).
			Float64("amount", intent.Amount).
			Float64("drift", intent.Drift).
			Str("reason", intent.Reason).
			Msg("dry run, trade not sent")
		return
	}

	tx, err := e.executor.Execute(ctx, cycleID, intent)
	if err != nil {
		sum.Failed++
		logger.Error().Err(err).
			Str("symbol", intent.Symbol).
			Str("side", string(intent.Side)).
			Float64("amount", intent.Amount).
			Msg("trade execution failed")
		if jerr := e.journal.MarkResult(ctx, cycleID, intent.Symbol, journal.StatusFailed, ""); jerr != nil {
			logger.Warn().Err(jerr).Str("symbol", intent.Symbol).Msg("journal update failed")
		}
		return
	}

	sum.Executed++
	logger.Info().
		Str("symbol", intent.Symbol).
		Str("side", string(intent.Side)).
		Float64("amount", intent.Amount).
		Float64("drift", intent.Drift).
		Str("venue_tx", tx).
		Msg("trade executed")
	if jerr := e.journal.MarkResult(ctx, cycleID, intent.Symbol, journal.StatusExecuted, tx); jerr != nil {
		logger.Warn().Err(jerr).Str("symbol", intent.Symbol).Msg("journal update failed")
	}
}

func (e *Engine) abort(logger zerolog.Logger, sum Summary, start time.Time, decisions map[string]domain.Decision, err error) (Summary, error) {
	sum.Outcome = OutcomeAborted
	sum.Error = err.Error()
	sum.Took = time.Since(start)
	e.metrics.RecordCycle(OutcomeAborted, sum.Took)
	e.store(sum, decisions, nil)
	logger.Warn().Err(err).Int("executed", sum.Executed).Msg("cycle aborted")
	return sum, fmt.Errorf("cycle aborted: %w", err)
}

func (e *Engine) publishGauges(current domain.Portfolio, targets map[string]float64) {
	for sym, target := range targets {
		w := current.Weight(sym)
		e.metrics.SetAssetWeight(sym, w)
		e.metrics.SetAssetDrift(sym, math.Abs(w-target))
	}
}

func (e *Engine) store(sum Summary, decisions map[string]domain.Decision, intents []domain.TradeIntent) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.hasRun = true
	e.last = sum
	if decisions != nil {
		e.decisions = decisions
	}
	e.intents = intents
}
