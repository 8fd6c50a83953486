package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/peakmont/driftbot/internal/config"
	"github.com/peakmont/driftbot/internal/portfolio"
	"github.com/peakmont/driftbot/internal/report"
	"github.com/peakmont/driftbot/internal/venue"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current portfolio report and exit",
		Long: `Status fetches the live portfolio from the venue, compares it against
the configured baseline targets, and prints the plain-text report to
stdout. Signals need a running bot's price history, so the plan shown
here is pure drift-versus-baseline.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printStatus(cmd.Context(), cfg)
		},
	}
}

func printStatus(ctx context.Context, cfg *config.Config) error {
	client := venue.NewClient(cfg.Venue, nil)

	data, err := oneShotData(ctx, cfg, client)
	if err != nil {
		return err
	}

	fmt.Print(report.NewWriter(cfg.Report).Render(data))
	return nil
}

// oneShotData assembles report data for the status and report commands:
// the live portfolio, a baseline rebalance plan, and whatever venue
// context (competition, trade history) is reachable.
func oneShotData(ctx context.Context, cfg *config.Config, client *venue.Client) (report.Data, error) {
	pf, err := client.Portfolio(ctx)
	if err != nil {
		return report.Data{}, fmt.Errorf("portfolio snapshot: %w", err)
	}

	baseline := cfg.BaselineWeights()
	planner := portfolio.NewPlanner(cfg.Rebalance.PlannerConfig, nil)

	data := report.Data{
		GeneratedAt: time.Now(),
		Portfolio:   pf,
		Targets:     baseline,
		Intents:     planner.Plan(pf, baseline),
	}
	if st, err := client.CompetitionStatus(ctx); err == nil {
		data.Competition = fmt.Sprintf("%s (status: %s)", st.Competition.Name, st.Competition.Status)
	} else {
		log.Warn().Err(err).Msg("competition status unavailable")
	}
	if trades, err := client.Trades(ctx, 5); err == nil {
		data.Trades = tradeHistory(trades, cfg.AssetMap())
	} else {
		log.Warn().Err(err).Msg("trade history unavailable")
	}
	return data, nil
}
