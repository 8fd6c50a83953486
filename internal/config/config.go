// Package config loads and validates the bot configuration: the asset
// universe, strategy tuning, sizing caps, rebalance gates, and the
// settings of every infrastructure component. Components own their
// config structs; this package composes them into one file format and
// enforces the cross-field rules no single component can check.
package config

import (
	"sort"
	"time"

	"github.com/peakmont/driftbot/internal/cache"
	"github.com/peakmont/driftbot/internal/domain"
	"github.com/peakmont/driftbot/internal/journal"
	"github.com/peakmont/driftbot/internal/market"
	"github.com/peakmont/driftbot/internal/ops"
	"github.com/peakmont/driftbot/internal/portfolio"
	"github.com/peakmont/driftbot/internal/report"
	"github.com/peakmont/driftbot/internal/sched"
	"github.com/peakmont/driftbot/internal/strategy"
	"github.com/peakmont/driftbot/internal/venue"
)

// DefaultPath is tried when no --config flag is given.
const DefaultPath = "config/config.yaml"

// Config is the full bot configuration, one section per component.
type Config struct {
	Venue      venue.Config          `yaml:"venue"`
	Assets     []AssetConfig         `yaml:"assets" validate:"min=1,dive"`
	Strategies StrategiesConfig      `yaml:"strategies"`
	Sizing     portfolio.SizerConfig `yaml:"sizing"`
	Rebalance  RebalanceConfig       `yaml:"rebalance"`
	Market     MarketConfig          `yaml:"market"`
	Scheduler  sched.Config          `yaml:"scheduler"`
	Cache      cache.Config          `yaml:"cache"`
	Journal    journal.Config        `yaml:"journal"`
	Ops        ops.Config            `yaml:"ops"`
	Monitor    market.MonitorConfig  `yaml:"monitor"`
	Report     report.Config         `yaml:"report"`
	Logging    LoggingConfig         `yaml:"logging"`
}

// AssetConfig declares one tradable token. Enabled is a pointer so an
// omitted flag means enabled while an explicit false survives loading.
type AssetConfig struct {
	Symbol       string                `yaml:"symbol" validate:"required"`
	Chain        string                `yaml:"chain" validate:"required"`
	Address      string                `yaml:"address" validate:"required"`
	Decimals     int                   `yaml:"decimals" validate:"gte=0,lte=36"`
	Category     domain.Category       `yaml:"category" validate:"required"`
	Volatility   domain.VolatilityTier `yaml:"volatility" validate:"required"`
	Enabled      *bool                 `yaml:"enabled"`
	TargetWeight float64               `yaml:"target_weight" validate:"gte=0,lte=1"`
}

// IsEnabled reports whether the asset participates in the pipeline.
func (a AssetConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Asset converts the config entry to the immutable domain form.
func (a AssetConfig) Asset() domain.Asset {
	return domain.Asset{
		Symbol:     a.Symbol,
		Chain:      a.Chain,
		Address:    a.Address,
		Decimals:   a.Decimals,
		Category:   a.Category,
		Volatility: a.Volatility,
		Enabled:    a.IsEnabled(),
	}
}

// StrategiesConfig groups the signal generator settings.
type StrategiesConfig struct {
	Momentum      strategy.MomentumConfig      `yaml:"momentum"`
	MeanReversion strategy.MeanReversionConfig `yaml:"mean_reversion"`
}

// RebalanceConfig is the planner tuning plus the reserve asset trades
// settle against.
type RebalanceConfig struct {
	portfolio.PlannerConfig `yaml:",inline"`
	ReserveSymbol           string `yaml:"reserve_symbol" default:"USDC" validate:"required"`
}

// MarketConfig tunes price history retention.
type MarketConfig struct {
	HistoryRetentionHours int `yaml:"history_retention_hours" default:"168" validate:"gt=0"`
}

// Retention returns how long price samples are kept.
func (m MarketConfig) Retention() time.Duration {
	return time.Duration(m.HistoryRetentionHours) * time.Hour
}

// LoggingConfig sets the log level and output format. Flags override it.
type LoggingConfig struct {
	Level string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// EnabledAssets returns the enabled assets sorted by symbol.
func (c *Config) EnabledAssets() []domain.Asset {
	out := make([]domain.Asset, 0, len(c.Assets))
	for _, a := range c.Assets {
		if a.IsEnabled() {
			out = append(out, a.Asset())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// AssetMap returns the enabled assets keyed by symbol.
func (c *Config) AssetMap() map[string]domain.Asset {
	out := make(map[string]domain.Asset, len(c.Assets))
	for _, a := range c.Assets {
		if a.IsEnabled() {
			out[a.Symbol] = a.Asset()
		}
	}
	return out
}

// BaselineWeights returns the configured target weight per enabled symbol.
func (c *Config) BaselineWeights() map[string]float64 {
	out := make(map[string]float64, len(c.Assets))
	for _, a := range c.Assets {
		if a.IsEnabled() {
			out[a.Symbol] = a.TargetWeight
		}
	}
	return out
}

// ReserveAsset returns the asset trades settle against.
func (c *Config) ReserveAsset() (domain.Asset, bool) {
	a, ok := c.AssetMap()[c.Rebalance.ReserveSymbol]
	return a, ok
}

// DefaultAssets is the built-in universe used when no config file exists.
// Every weight stays at or under the default single-token cap so the
// baseline itself never triggers a clamp.
func DefaultAssets() []AssetConfig {
	return []AssetConfig{
		{
			Symbol:       "USDC",
			Chain:        "eth",
			Address:      "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Decimals:     6,
			Category:     domain.CategoryStablecoin,
			Volatility:   domain.VolatilityLow,
			TargetWeight: 0.30,
		},
		{
			Symbol:       "WETH",
			Chain:        "eth",
			Address:      "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			Decimals:     18,
			Category:     domain.CategoryMajor,
			Volatility:   domain.VolatilityMedium,
			TargetWeight: 0.30,
		},
		{
			Symbol:       "SOL",
			Chain:        "svm",
			Address:      "So11111111111111111111111111111111111111112",
			Decimals:     9,
			Category:     domain.CategoryMajor,
			Volatility:   domain.VolatilityHigh,
			TargetWeight: 0.25,
		},
		{
			Symbol:       "LINK",
			Chain:        "eth",
			Address:      "0x514910771AF9Ca656af840dff83E8264EcF986CA",
			Decimals:     18,
			Category:     domain.CategoryOracle,
			Volatility:   domain.VolatilityHigh,
			TargetWeight: 0.15,
		},
	}
}
