package strategy

import (
	"fmt"
	"time"

	"github.com/peakmont/driftbot/internal/domain"
)

// NameMeanReversion identifies mean-reversion signals.
const NameMeanReversion = "mean_reversion"

// MeanReversionConfig holds the mean-reversion strategy settings.
// ZThresholds are per-category z-score magnitudes; MinPoints is the
// smallest window that yields a usable standard deviation.
type MeanReversionConfig struct {
	Enabled       bool                        `yaml:"enabled" default:"true"`
	Weight        float64                     `yaml:"weight" default:"1.0" validate:"gte=0"`
	LookbackHours int                         `yaml:"lookback_hours" default:"48" validate:"gt=0"`
	MinPoints     int                         `yaml:"min_points" default:"10" validate:"gte=2"`
	ZThresholds   map[domain.Category]float64 `yaml:"z_thresholds" validate:"dive,gt=0"`
}

// DefaultZThresholds returns the per-category z-score thresholds used
// when the config file leaves them out.
func DefaultZThresholds() map[domain.Category]float64 {
	return map[domain.Category]float64{
		domain.CategoryStablecoin: 3.0,
		domain.CategoryMajor:      2.0,
		domain.CategoryDefi:       1.8,
		domain.CategoryOracle:     1.8,
		domain.CategoryMeme:       1.5,
	}
}

// MeanReversion trades against stretched prices: when the latest price
// sits further than the category z-score threshold from the window mean,
// it signals the contrarian direction. A flat window (zero stddev) is a
// hold, never a division by zero.
type MeanReversion struct {
	cfg MeanReversionConfig
}

// NewMeanReversion creates the strategy, filling a nil thresholds table
// with defaults.
func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	if cfg.ZThresholds == nil {
		cfg.ZThresholds = DefaultZThresholds()
	}
	if cfg.MinPoints < 2 {
		cfg.MinPoints = 2
	}
	return &MeanReversion{cfg: cfg}
}

// Name implements Strategy.
func (m *MeanReversion) Name() string { return NameMeanReversion }

// Weight implements Strategy.
func (m *MeanReversion) Weight() float64 { return m.cfg.Weight }

// Lookback returns the configured window span.
func (m *MeanReversion) Lookback() time.Duration {
	return time.Duration(m.cfg.LookbackHours) * time.Hour
}

// Evaluate implements Strategy.
func (m *MeanReversion) Evaluate(asset domain.Asset, series []domain.PricePoint) domain.Signal {
	if len(series) == 0 {
		return domain.HoldSignal(asset.Symbol, NameMeanReversion, "insufficient data: no samples", time.Time{})
	}
	last := series[len(series)-1]

	window := clipWindow(series, m.Lookback())
	if len(window) < m.cfg.MinPoints {
		return domain.HoldSignal(asset.Symbol, NameMeanReversion,
			fmt.Sprintf("insufficient data: %d of %d points", len(window), m.cfg.MinPoints), last.At)
	}

	threshold, ok := m.cfg.ZThresholds[asset.Category]
	if !ok || threshold <= 0 {
		return domain.HoldSignal(asset.Symbol, NameMeanReversion,
			fmt.Sprintf("no z-score threshold for category %s", asset.Category), last.At)
	}

	mean, stddev := meanStddev(window)
	if stddev == 0 {
		return domain.HoldSignal(asset.Symbol, NameMeanReversion, "flat price window", last.At)
	}

	z := (last.Price - mean) / stddev
	switch {
	case z > threshold:
		return domain.Signal{
			Symbol:    asset.Symbol,
			Direction: domain.Sell,
			Strength:  excessStrength(z, threshold),
			Strategy:  NameMeanReversion,
			Reason:    fmt.Sprintf("price stretched high (z=%.2f, threshold %.2f)", z, threshold),
			At:        last.At,
		}
	case z < -threshold:
		return domain.Signal{
			Symbol:    asset.Symbol,
			Direction: domain.Buy,
			Strength:  excessStrength(z, threshold),
			Strategy:  NameMeanReversion,
			Reason:    fmt.Sprintf("price stretched low (z=%.2f, threshold %.2f)", z, threshold),
			At:        last.At,
		}
	default:
		return domain.HoldSignal(asset.Symbol, NameMeanReversion,
			fmt.Sprintf("price within band (z=%.2f)", z), last.At)
	}
}
