// Package strategy holds the signal generators and the combiner that
// merges their output into one decision per asset. Strategies are pure:
// same series in, same signal out, with data problems absorbed as hold
// signals rather than errors.
package strategy

import (
	"math"
	"time"

	"github.com/peakmont/driftbot/internal/domain"
)

// Strategy is one signal generator. Evaluate never fails: when the series
// cannot support a directional call it returns a hold signal carrying the
// reason.
type Strategy interface {
	Name() string
	Weight() float64
	Evaluate(asset domain.Asset, series []domain.PricePoint) domain.Signal
}

// clipWindow returns the suffix of series within span of the last sample,
// last sample included. The window anchors on stored timestamps so the
// result does not depend on the wall clock.
func clipWindow(series []domain.PricePoint, span time.Duration) []domain.PricePoint {
	if len(series) == 0 {
		return nil
	}
	cutoff := series[len(series)-1].At.Add(-span)
	for i, p := range series {
		if !p.At.Before(cutoff) {
			return series[i:]
		}
	}
	return nil
}

// meanStddev computes the mean and population standard deviation of the
// window prices.
func meanStddev(window []domain.PricePoint) (mean, stddev float64) {
	n := float64(len(window))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, p := range window {
		sum += p.Price
	}
	mean = sum / n

	var sq float64
	for _, p := range window {
		d := p.Price - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}

// excessStrength maps how far a statistic landed beyond its threshold to
// a strength in (0, 1]: zero at the threshold, saturating at twice it.
func excessStrength(value, threshold float64) float64 {
	return math.Min((math.Abs(value)-threshold)/threshold, 1.0)
}
