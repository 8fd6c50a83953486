package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/peakmont/driftbot/internal/domain"
)

// NameMomentum identifies momentum signals.
const NameMomentum = "momentum"

// MomentumConfig holds the momentum strategy settings. Thresholds are
// percentage-change magnitudes per category; validation requires an entry
// for every category.
type MomentumConfig struct {
	Enabled       bool                         `yaml:"enabled" default:"true"`
	Weight        float64                      `yaml:"weight" default:"1.0" validate:"gte=0"`
	LookbackHours int                          `yaml:"lookback_hours" default:"24" validate:"gt=0"`
	Thresholds    map[domain.Category]float64  `yaml:"thresholds" validate:"dive,gt=0"`
}

// DefaultMomentumThresholds returns the per-category change thresholds
// used when the config file leaves them out. Stablecoins barely move, so
// they trigger early; meme tokens swing hard, so they need a wide band.
func DefaultMomentumThresholds() map[domain.Category]float64 {
	return map[domain.Category]float64{
		domain.CategoryStablecoin: 0.02,
		domain.CategoryMajor:      0.05,
		domain.CategoryDefi:       0.08,
		domain.CategoryOracle:     0.08,
		domain.CategoryMeme:       0.15,
	}
}

// Momentum trades with the trend: a percentage move from the start to the
// end of the lookback window beyond the category threshold signals in the
// direction of the move.
type Momentum struct {
	cfg MomentumConfig
}

// NewMomentum creates the strategy. A nil thresholds table falls back to
// the defaults so hand-built instances stay usable.
func NewMomentum(cfg MomentumConfig) *Momentum {
	if cfg.Thresholds == nil {
		cfg.Thresholds = DefaultMomentumThresholds()
	}
	return &Momentum{cfg: cfg}
}

// Name implements Strategy.
func (m *Momentum) Name() string { return NameMomentum }

// Weight implements Strategy.
func (m *Momentum) Weight() float64 { return m.cfg.Weight }

// Lookback returns the configured window span.
func (m *Momentum) Lookback() time.Duration {
	return time.Duration(m.cfg.LookbackHours) * time.Hour
}

// Evaluate implements Strategy.
func (m *Momentum) Evaluate(asset domain.Asset, series []domain.PricePoint) domain.Signal {
	if len(series) == 0 {
		return domain.HoldSignal(asset.Symbol, NameMomentum, "insufficient data: no samples", time.Time{})
	}
	last := series[len(series)-1]

	window := clipWindow(series, m.Lookback())
	if len(window) < 2 {
		return domain.HoldSignal(asset.Symbol, NameMomentum, "insufficient data in lookback window", last.At)
	}

	first := window[0]
	if first.Price <= 0 {
		return domain.HoldSignal(asset.Symbol, NameMomentum, "non-positive reference price", last.At)
	}

	threshold, ok := m.cfg.Thresholds[asset.Category]
	if !ok || threshold <= 0 {
		return domain.HoldSignal(asset.Symbol, NameMomentum,
			fmt.Sprintf("no momentum threshold for category %s", asset.Category), last.At)
	}

	change := (last.Price - first.Price) / first.Price
	if math.Abs(change) <= threshold {
		return domain.HoldSignal(asset.Symbol, NameMomentum,
			fmt.Sprintf("change %.2f%% within ±%.2f%% threshold", change*100, threshold*100), last.At)
	}

	direction := domain.Buy
	if change < 0 {
		direction = domain.Sell
	}

	return domain.Signal{
		Symbol:    asset.Symbol,
		Direction: direction,
		Strength:  excessStrength(change, threshold),
		Strategy:  NameMomentum,
		Reason:    fmt.Sprintf("change %.2f%% beyond ±%.2f%% threshold", change*100, threshold*100),
		At:        last.At,
	}
}
