// Package portfolio turns combined decisions into capped target weights
// and target weights into an ordered trade plan.
package portfolio

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/domain"
	"github.com/peakmont/driftbot/internal/metrics"
)

// SizerConfig holds position sizing tables and the global risk caps.
// Validation requires a base size for every category and a multiplier
// for every volatility tier.
type SizerConfig struct {
	BaseSizes   map[domain.Category]float64       `yaml:"base_sizes" validate:"dive,gte=0,lte=1"`
	Multipliers map[domain.VolatilityTier]float64 `yaml:"volatility_multipliers" validate:"dive,gte=0"`
	MaxSingle   float64                           `yaml:"max_single_token_allocation" default:"0.30" validate:"gt=0,lte=1"`
	MaxMeme     float64                           `yaml:"max_meme_allocation" default:"0.20" validate:"gt=0,lte=1"`
}

// DefaultBaseSizes returns the per-category weight deltas applied at full
// signal strength.
func DefaultBaseSizes() map[domain.Category]float64 {
	return map[domain.Category]float64{
		domain.CategoryStablecoin: 0.05,
		domain.CategoryMajor:      0.10,
		domain.CategoryDefi:       0.08,
		domain.CategoryOracle:     0.08,
		domain.CategoryMeme:       0.05,
	}
}

// DefaultMultipliers returns the per-tier sizing multipliers. Higher
// expected volatility shrinks the position.
func DefaultMultipliers() map[domain.VolatilityTier]float64 {
	return map[domain.VolatilityTier]float64{
		domain.VolatilityLow:      1.25,
		domain.VolatilityMedium:   1.0,
		domain.VolatilityHigh:     0.75,
		domain.VolatilityVeryHigh: 0.5,
	}
}

// Sizer perturbs the baseline allocation by each decision and enforces
// the risk caps. Caps are hard invariants: outputs are clamped, never
// just flagged.
type Sizer struct {
	cfg     SizerConfig
	metrics *metrics.Registry
}

// NewSizer creates a sizer, filling missing tables with defaults so
// hand-built configs stay usable.
func NewSizer(cfg SizerConfig, m *metrics.Registry) *Sizer {
	if cfg.BaseSizes == nil {
		cfg.BaseSizes = DefaultBaseSizes()
	}
	if cfg.Multipliers == nil {
		cfg.Multipliers = DefaultMultipliers()
	}
	return &Sizer{cfg: cfg, metrics: m}
}

// Targets computes this cycle's target weight per asset: baseline plus
// the signed decision delta, clamped to [0, max_single], with the meme
// category sum scaled down proportionally to max_meme when it overflows.
// Every returned weight is in [0, 1].
func (s *Sizer) Targets(assets map[string]domain.Asset, baseline map[string]float64, decisions map[string]domain.Decision, totalValue float64) map[string]float64 {
	symbols := make([]string, 0, len(baseline))
	for sym := range baseline {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	targets := make(map[string]float64, len(baseline))
	for _, sym := range symbols {
		target := baseline[sym]
		asset := assets[sym]

		if d, ok := decisions[sym]; ok && d.Direction != domain.Hold && d.Strength > 0 {
			delta := s.cfg.BaseSizes[asset.Category] * s.cfg.Multipliers[asset.Volatility] * d.Strength
			if d.Direction == domain.Sell {
				delta = -delta
			}
			target += delta
		}

		if target < 0 {
			target = 0
		}
		if target > s.cfg.MaxSingle {
			s.metrics.RecordCapClamp("single")
			log.Info().
				Str("symbol", sym).
				Float64("unclamped", target).
				Float64("cap", s.cfg.MaxSingle).
				Msg("clamping target weight to single-token cap")
			target = s.cfg.MaxSingle
		}
		targets[sym] = target
	}

	var memeSum float64
	for _, sym := range symbols {
		if assets[sym].IsMeme() {
			memeSum += targets[sym]
		}
	}
	if memeSum > s.cfg.MaxMeme {
		scale := s.cfg.MaxMeme / memeSum
		s.metrics.RecordCapClamp("meme")
		log.Info().
			Float64("unclamped_sum", memeSum).
			Float64("cap", s.cfg.MaxMeme).
			Float64("scale", scale).
			Float64("total_value", totalValue).
			Msg("scaling meme category down to allocation cap")
		for _, sym := range symbols {
			if assets[sym].IsMeme() {
				targets[sym] *= scale
			}
		}
	}

	return targets
}
