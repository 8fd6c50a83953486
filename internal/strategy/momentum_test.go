package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakmont/driftbot/internal/domain"
)

// points builds a series with one sample per hour ending at the last price.
func points(prices ...float64) []domain.PricePoint {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = domain.PricePoint{At: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return out
}

func majorAsset(symbol string) domain.Asset {
	return domain.Asset{Symbol: symbol, Chain: "ethereum", Category: domain.CategoryMajor, Volatility: domain.VolatilityMedium, Enabled: true}
}

func testMomentum(threshold float64) *Momentum {
	return NewMomentum(MomentumConfig{
		Enabled:       true,
		Weight:        1.0,
		LookbackHours: 24,
		Thresholds: map[domain.Category]float64{
			domain.CategoryMajor: threshold,
			domain.CategoryMeme:  0.15,
		},
	})
}

func TestMomentumBuyOnUptrend(t *testing.T) {
	// 100 -> 106 is a 6% move against a 3% threshold.
	m := testMomentum(0.03)
	sig := m.Evaluate(majorAsset("WETH"), points(100, 102, 104, 106))

	assert.Equal(t, domain.Buy, sig.Direction)
	assert.Greater(t, sig.Strength, 0.0, "a triggered signal must carry strength")
	assert.LessOrEqual(t, sig.Strength, 1.0, "strength is capped at 1")
	assert.Equal(t, NameMomentum, sig.Strategy)
}

func TestMomentumSellOnDowntrend(t *testing.T) {
	m := testMomentum(0.03)
	sig := m.Evaluate(majorAsset("WETH"), points(100, 97, 94))

	assert.Equal(t, domain.Sell, sig.Direction)
	assert.Greater(t, sig.Strength, 0.0)
}

func TestMomentumHoldWithinThreshold(t *testing.T) {
	m := testMomentum(0.05)

	tests := []struct {
		name   string
		series []domain.PricePoint
	}{
		{"small move up", points(100, 101, 102)},
		{"small move down", points(100, 99, 98.5)},
		{"exactly at threshold", points(100, 105)},
		{"flat", points(100, 100, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := m.Evaluate(majorAsset("WETH"), tt.series)
			assert.Equal(t, domain.Hold, sig.Direction, "moves within the threshold must hold")
			assert.Zero(t, sig.Strength)
		})
	}
}

func TestMomentumInsufficientData(t *testing.T) {
	m := testMomentum(0.05)

	sig := m.Evaluate(majorAsset("WETH"), nil)
	assert.Equal(t, domain.Hold, sig.Direction)
	assert.Contains(t, sig.Reason, "insufficient data")

	sig = m.Evaluate(majorAsset("WETH"), points(100))
	assert.Equal(t, domain.Hold, sig.Direction)
	assert.Contains(t, sig.Reason, "insufficient data")
}

func TestMomentumWindowExcludesStaleSamples(t *testing.T) {
	m := testMomentum(0.03)

	// One old sample far outside the 24h lookback, then a lone fresh one:
	// the move from 50 to 106 must not count.
	old := domain.PricePoint{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Price: 50}
	fresh := domain.PricePoint{At: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Price: 106}

	sig := m.Evaluate(majorAsset("WETH"), []domain.PricePoint{old, fresh})
	assert.Equal(t, domain.Hold, sig.Direction, "a single in-window sample cannot span the window")
	assert.Contains(t, sig.Reason, "insufficient data")
}

func TestMomentumStrengthScalesWithExcess(t *testing.T) {
	m := testMomentum(0.03)

	mild := m.Evaluate(majorAsset("WETH"), points(100, 104))    // 4% vs 3%
	strong := m.Evaluate(majorAsset("WETH"), points(100, 105))  // 5% vs 3%
	extreme := m.Evaluate(majorAsset("WETH"), points(100, 130)) // 30% vs 3%

	require.Equal(t, domain.Buy, mild.Direction)
	require.Equal(t, domain.Buy, strong.Direction)
	assert.Less(t, mild.Strength, strong.Strength, "a larger excess means a stronger signal")
	assert.Equal(t, 1.0, extreme.Strength, "strength saturates at 1")
}

func TestMomentumCategoryThresholds(t *testing.T) {
	m := testMomentum(0.05)

	memeAsset := domain.Asset{Symbol: "PEPE", Category: domain.CategoryMeme, Volatility: domain.VolatilityVeryHigh, Enabled: true}

	// A 10% move triggers the 5% major threshold but not the 15% meme one.
	sig := m.Evaluate(majorAsset("WETH"), points(100, 110))
	assert.Equal(t, domain.Buy, sig.Direction)

	sig = m.Evaluate(memeAsset, points(100, 110))
	assert.Equal(t, domain.Hold, sig.Direction, "meme tokens need a wider move to signal")
}

func TestMomentumUnknownCategoryHolds(t *testing.T) {
	m := NewMomentum(MomentumConfig{Weight: 1, LookbackHours: 24,
		Thresholds: map[domain.Category]float64{domain.CategoryMajor: 0.05}})

	asset := domain.Asset{Symbol: "LINK", Category: domain.CategoryOracle, Enabled: true}
	sig := m.Evaluate(asset, points(100, 150))
	assert.Equal(t, domain.Hold, sig.Direction, "a missing threshold entry must never signal")
}
