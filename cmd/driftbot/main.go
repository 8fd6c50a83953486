// Command driftbot runs a drift-driven portfolio allocation bot against
// a simulated trading venue.
package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/peakmont/driftbot/internal/config"
	"github.com/peakmont/driftbot/internal/logging"
)

const (
	appName = "driftbot"
	version = "v0.5.0"
)

var (
	flagConfig   string
	flagLogLevel string
	flagLogJSON  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Drift-driven multi-asset portfolio bot",
		Version: version,
		Long: `driftbot keeps a multi-asset portfolio near its target allocation.

Momentum and mean-reversion signals tilt the per-asset targets, a sizer
caps single-asset and meme exposure, and trades fire only when the drift
from target beats the rebalance threshold.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: trace|debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit JSON logs even on a terminal")

	// Accept underscore spellings (--log_level) from operators used to
	// the config file's key style.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.AddCommand(newRunCmd(), newStatusCmd(), newReportCmd())
	return rootCmd
}

// loadConfig reads the config file and applies the logging settings,
// with flags taking precedence over the file.
func loadConfig() (*config.Config, error) {
	bootLevel := flagLogLevel
	if bootLevel == "" {
		bootLevel = "info"
	}
	logging.Setup(bootLevel, flagLogJSON)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logging.Setup(level, flagLogJSON || cfg.Logging.JSON)
	return cfg, nil
}
