package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/peakmont/driftbot/internal/config"
	"github.com/peakmont/driftbot/internal/domain"
	"github.com/peakmont/driftbot/internal/report"
	"github.com/peakmont/driftbot/internal/venue"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Write today's portfolio report file and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return writeReportFile(cmd.Context(), cfg)
		},
	}
}

func writeReportFile(ctx context.Context, cfg *config.Config) error {
	client := venue.NewClient(cfg.Venue, nil)

	data, err := oneShotData(ctx, cfg, client)
	if err != nil {
		return err
	}

	path, err := report.NewWriter(cfg.Report).WriteDaily(data)
	if err != nil {
		return err
	}

	fmt.Println(path)
	return nil
}

// tradeHistory converts venue trade records to report rows, resolving
// token addresses back to configured symbols where possible.
func tradeHistory(records []venue.TradeRecord, assets map[string]domain.Asset) []report.Trade {
	byAddr := make(map[string]string, len(assets))
	for symbol, asset := range assets {
		byAddr[strings.ToLower(asset.Address)] = symbol
	}

	name := func(token string) string {
		if symbol, ok := byAddr[strings.ToLower(token)]; ok {
			return symbol
		}
		if len(token) > 10 {
			return token[:10] + "..."
		}
		return token
	}

	trades := make([]report.Trade, 0, len(records))
	for _, r := range records {
		trades = append(trades, report.Trade{
			At:         r.Timestamp,
			FromSymbol: name(r.FromToken),
			ToSymbol:   name(r.ToToken),
			FromAmount: r.FromAmount,
		})
	}
	return trades
}
