package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/peakmont/driftbot/internal/cache"
	"github.com/peakmont/driftbot/internal/config"
	"github.com/peakmont/driftbot/internal/engine"
	"github.com/peakmont/driftbot/internal/journal"
	"github.com/peakmont/driftbot/internal/market"
	"github.com/peakmont/driftbot/internal/metrics"
	"github.com/peakmont/driftbot/internal/ops"
	"github.com/peakmont/driftbot/internal/portfolio"
	"github.com/peakmont/driftbot/internal/report"
	"github.com/peakmont/driftbot/internal/sched"
	"github.com/peakmont/driftbot/internal/strategy"
	"github.com/peakmont/driftbot/internal/venue"
)

const shutdownGrace = 10 * time.Second

func newRunCmd() *cobra.Command {
	var (
		dryRun bool
		once   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot on its schedule",
		Long: `Run starts the scheduler and works the portfolio until interrupted:
prices are polled, signals evaluated, and rebalance cycles executed on
their configured cadences. An ops HTTP server exposes /health, /status,
and /metrics while the bot runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runBot(cmd.Context(), cfg, dryRun, once)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan and journal trades without sending them to the venue")
	cmd.Flags().BoolVar(&once, "once", false, "run a single evaluation cycle and exit")
	return cmd
}

// app bundles the wired components behind the run command.
type app struct {
	cfg       *config.Config
	gatherer  *prometheus.Registry
	metrics   *metrics.Registry
	cache     *cache.Tiered
	client    *venue.Client
	history   *market.History
	provider  *market.Provider
	journal   *journal.Journal
	engine    *engine.Engine
	writer    *report.Writer
	startedAt time.Time
}

func buildApp(cfg *config.Config, dryRun bool) (*app, error) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	var shared cache.Store
	if cfg.Cache.Redis.Enabled {
		shared = cache.NewRedis(cfg.Cache.Redis)
	}
	tiers := cache.NewTiered(cache.NewMemory(cfg.Cache.TTL()), shared, cfg.Cache.TTL(), m)

	client := venue.NewClient(cfg.Venue, m)
	history := market.NewHistory(cfg.Market.Retention(), m)
	provider := market.NewProvider(client, tiers, history, market.NewMonitor(cfg.Monitor, m))

	jnl, err := journal.New(cfg.Journal)
	if err != nil {
		return nil, err
	}

	assets := cfg.AssetMap()
	reserve, ok := cfg.ReserveAsset()
	if !ok {
		return nil, fmt.Errorf("reserve symbol %s not configured", cfg.Rebalance.ReserveSymbol)
	}

	strategies := strategy.Active(cfg.Strategies.Momentum, cfg.Strategies.MeanReversion)

	eng := engine.New(engine.Params{
		Assets:     assets,
		Baseline:   cfg.BaselineWeights(),
		History:    history,
		Source:     client,
		Strategies: strategies,
		Combiner:   strategy.NewCombiner(strategies),
		Sizer:      portfolio.NewSizer(cfg.Sizing, m),
		Planner:    portfolio.NewPlanner(cfg.Rebalance.PlannerConfig, m),
		Journal:    jnl,
		Executor:   venue.NewTrader(client, provider, assets, reserve),
		Metrics:    m,
		DryRun:     dryRun,
	})

	return &app{
		cfg:       cfg,
		gatherer:  reg,
		metrics:   m,
		cache:     tiers,
		client:    client,
		history:   history,
		provider:  provider,
		journal:   jnl,
		engine:    eng,
		writer:    report.NewWriter(cfg.Report),
		startedAt: time.Now(),
	}, nil
}

func (a *app) close() {
	if err := a.journal.Close(); err != nil {
		log.Warn().Err(err).Msg("journal close failed")
	}
	if err := a.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("cache close failed")
	}
}

func runBot(ctx context.Context, cfg *config.Config, dryRun, once bool) error {
	a, err := buildApp(cfg, dryRun)
	if err != nil {
		return err
	}
	defer a.close()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fail fast when the venue is unreachable rather than letting every
	// scheduled job discover it independently.
	if err := a.client.Health(runCtx); err != nil {
		return fmt.Errorf("venue health check: %w", err)
	}
	if err := a.journal.Migrate(runCtx); err != nil {
		return err
	}

	log.Info().
		Str("version", version).
		Bool("dry_run", dryRun).
		Int("assets", len(a.cfg.EnabledAssets())).
		Str("venue", cfg.Venue.BaseURL).
		Msg("driftbot starting")

	if once {
		return runOnce(runCtx, a)
	}
	return runForever(runCtx, a)
}

// runOnce primes the price history and executes a single cycle. With an
// empty history both strategies hold, so the cycle reduces to pure
// drift-versus-baseline rebalancing.
func runOnce(ctx context.Context, a *app) error {
	if err := a.provider.PollOnce(ctx, a.cfg.EnabledAssets()); err != nil {
		log.Warn().Err(err).Msg("price poll failed, proceeding on held signals")
	}

	sum, err := a.engine.RunCycle(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("cycle_id", sum.CycleID).
		Str("outcome", sum.Outcome).
		Int("intents", sum.Intents).
		Int("executed", sum.Executed).
		Msg("single cycle finished")
	return nil
}

func runForever(ctx context.Context, a *app) error {
	scheduler := sched.New()

	jobs := []sched.Job{
		{
			Name:       "price_poll",
			Every:      a.cfg.Scheduler.PricePollEvery(),
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				return a.provider.PollOnce(ctx, a.cfg.EnabledAssets())
			},
		},
		{
			Name:  "rebalance",
			Every: a.cfg.Scheduler.RebalanceEvery(),
			Run: func(ctx context.Context) error {
				_, err := a.engine.RunCycle(ctx)
				return err
			},
		},
		{
			Name:  "signals",
			Every: a.cfg.Scheduler.SignalsEvery(),
			Run:   a.engine.EvaluateSignals,
		},
		{
			Name:       "competition_status",
			Every:      a.cfg.Scheduler.StatusEvery(),
			RunAtStart: true,
			Run:        a.pollCompetition,
		},
		{
			Name:  "daily_report",
			Every: a.cfg.Scheduler.ReportEvery(),
			Run:   a.writeDailyReport,
		},
	}
	for _, job := range jobs {
		if err := scheduler.Add(job); err != nil {
			return err
		}
	}

	srv, err := ops.NewServer(a.cfg.Ops, a.gatherer, a.healthChecks(), a.statusSnapshot(scheduler))
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start() }()

	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()

	var streamWG sync.WaitGroup
	if a.cfg.Venue.StreamURL != "" {
		enabled := a.cfg.EnabledAssets()
		symbols := make([]string, 0, len(enabled))
		for _, asset := range enabled {
			symbols = append(symbols, asset.Symbol)
		}
		stream := venue.NewStream(a.cfg.Venue, symbols, a.history, a.metrics)
		streamWG.Add(1)
		go func() {
			defer streamWG.Done()
			if err := stream.Run(schedCtx); err != nil && schedCtx.Err() == nil {
				log.Error().Err(err).Msg("price stream stopped")
			}
		}()
	}

	scheduler.Start(schedCtx)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("ops server failed")
			cancelSched()
			scheduler.Wait()
			streamWG.Wait()
			return err
		}
	}

	cancelSched()
	scheduler.Wait()
	streamWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops server shutdown failed")
	}

	log.Info().Msg("driftbot stopped")
	return nil
}

func (a *app) healthChecks() []ops.Check {
	return []ops.Check{
		{Name: "venue", Probe: a.client.Health},
		{Name: "cache", Probe: a.cache.Ping},
		{Name: "journal", Probe: a.journal.Ping},
	}
}

func (a *app) statusSnapshot(scheduler *sched.Scheduler) ops.StatusFunc {
	return func() interface{} {
		status := map[string]interface{}{
			"service": appName,
			"version": version,
			"dry_run": a.engine.DryRun(),
			"uptime":  time.Since(a.startedAt).Round(time.Second).String(),
			"jobs":    scheduler.Status(),
		}
		if last, ok := a.engine.LastSummary(); ok {
			status["last_cycle"] = last
		}
		if symbols := a.history.Symbols(); len(symbols) > 0 {
			prices := make(map[string]interface{}, len(symbols))
			for _, sym := range symbols {
				p, ok := a.history.Latest(sym)
				if !ok {
					continue
				}
				prices[sym] = map[string]interface{}{
					"price":   p.Price,
					"at":      p.At.UTC(),
					"samples": a.history.Len(sym),
				}
			}
			status["prices"] = prices
		}
		return status
	}
}

func (a *app) pollCompetition(ctx context.Context) error {
	st, err := a.client.CompetitionStatus(ctx)
	if err != nil {
		return err
	}
	pf, err := a.client.Portfolio(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Bool("active", st.Active).
		Str("competition", st.Competition.Name).
		Str("competition_status", st.Competition.Status).
		Float64("total_value", pf.TotalValue).
		Msg("competition status")
	return nil
}

func (a *app) writeDailyReport(ctx context.Context) error {
	pf, err := a.client.Portfolio(ctx)
	if err != nil {
		return fmt.Errorf("portfolio snapshot: %w", err)
	}

	data := report.Data{
		GeneratedAt: time.Now(),
		Portfolio:   pf,
		Targets:     a.cfg.BaselineWeights(),
		Decisions:   a.engine.LastDecisions(),
		Intents:     a.engine.LastIntents(),
		Moves:       a.priceMoves(24 * time.Hour),
	}
	if last, ok := a.engine.LastSummary(); ok {
		data.Cycle = &report.CycleStats{
			CycleID:  last.CycleID,
			Outcome:  last.Outcome,
			Took:     last.Took,
			Intents:  last.Intents,
			Executed: last.Executed,
			Failed:   last.Failed,
			DryRun:   last.DryRun,
		}
	}
	if trades, err := a.client.Trades(ctx, 10); err == nil {
		data.Trades = tradeHistory(trades, a.cfg.AssetMap())
	} else {
		log.Warn().Err(err).Msg("trade history unavailable for report")
	}
	if st, err := a.client.CompetitionStatus(ctx); err == nil {
		data.Competition = fmt.Sprintf("%s (status: %s)", st.Competition.Name, st.Competition.Status)
	} else {
		log.Warn().Err(err).Msg("competition status unavailable for report")
	}

	_, err = a.writer.WriteDaily(data)
	return err
}

// priceMoves summarizes trailing price changes from the stored history,
// sorted by symbol. Symbols with fewer than two samples in span are
// skipped.
func (a *app) priceMoves(span time.Duration) []report.PriceMove {
	var moves []report.PriceMove
	for _, sym := range a.history.Symbols() {
		window := a.history.Window(sym, span)
		if len(window) < 2 {
			continue
		}
		first, last := window[0].Price, window[len(window)-1].Price
		if first <= 0 {
			continue
		}
		moves = append(moves, report.PriceMove{
			Symbol:  sym,
			Price:   last,
			Change:  (last - first) / first,
			Samples: len(window),
		})
	}
	return moves
}
