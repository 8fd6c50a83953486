package strategy

import (
	"fmt"
	"math"

	"github.com/peakmont/driftbot/internal/domain"
)

// Combiner merges the per-asset signals from every active strategy into a
// single decision. Buy signals push the net score up by weight×strength,
// sell signals push it down, holds contribute nothing; the sign of the
// net picks the direction and its magnitude, normalized by the weight of
// the directional contributors, sets the strength. An exact standoff is a
// hold: conflicts cancel, they are never resolved by strategy priority.
type Combiner struct {
	weights map[string]float64
}

// NewCombiner builds a combiner using each strategy's configured weight.
func NewCombiner(strategies []Strategy) *Combiner {
	weights := make(map[string]float64, len(strategies))
	for _, s := range strategies {
		weights[s.Name()] = s.Weight()
	}
	return &Combiner{weights: weights}
}

// weightOf returns the configured weight for a strategy name; signals
// from unknown strategies count with weight 1 so the combiner stays a
// total function.
func (c *Combiner) weightOf(name string) float64 {
	if w, ok := c.weights[name]; ok {
		return w
	}
	return 1
}

// Combine folds the signals for one asset into a decision. It is a pure
// function of the signal set: permuting the input changes nothing.
func (c *Combiner) Combine(symbol string, signals []domain.Signal) domain.Decision {
	var net, active float64
	var buys, sells, holds int

	for _, s := range signals {
		w := c.weightOf(s.Strategy)
		switch s.Direction {
		case domain.Buy:
			net += w * s.Strength
			active += w
			buys++
		case domain.Sell:
			net -= w * s.Strength
			active += w
			sells++
		default:
			holds++
		}
	}

	if active == 0 {
		return domain.Decision{
			Symbol:    symbol,
			Direction: domain.Hold,
			Reason:    "no directional signals",
			Signals:   signals,
		}
	}

	if net == 0 {
		return domain.Decision{
			Symbol:    symbol,
			Direction: domain.Hold,
			Reason:    "conflicting signals",
			Signals:   signals,
		}
	}

	direction := domain.Buy
	if net < 0 {
		direction = domain.Sell
	}

	return domain.Decision{
		Symbol:    symbol,
		Direction: direction,
		Strength:  math.Min(math.Abs(net)/active, 1.0),
		Reason:    fmt.Sprintf("combined %d buy, %d sell, %d hold", buys, sells, holds),
		Signals:   signals,
	}
}

// Active filters the configured strategies down to the enabled ones, in
// a stable order: momentum first, then mean reversion.
func Active(momentum MomentumConfig, meanrev MeanReversionConfig) []Strategy {
	var out []Strategy
	if momentum.Enabled {
		out = append(out, NewMomentum(momentum))
	}
	if meanrev.Enabled {
		out = append(out, NewMeanReversion(meanrev))
	}
	return out
}
