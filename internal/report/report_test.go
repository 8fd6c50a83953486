package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakmont/driftbot/internal/domain"
)

func sampleData() Data {
	return Data{
		GeneratedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Portfolio: domain.Portfolio{
			Holdings:   map[string]float64{"USDC": 5000, "WETH": 3000, "SOL": 2000},
			TotalValue: 10000,
		},
		Targets: map[string]float64{"USDC": 0.3, "WETH": 0.4, "SOL": 0.3},
	}
}

func TestRenderAllocations(t *testing.T) {
	out := NewWriter(Config{OutDir: t.TempDir()}).Render(sampleData())

	assert.Contains(t, out, "PORTFOLIO REPORT  2026-03-14 09:30 UTC")
	assert.Contains(t, out, "Total Value: $10,000.00")
	assert.Contains(t, out, "CURRENT ALLOCATIONS")

	// Overweight reserve shows a positive drift, underweight majors negative.
	assert.Contains(t, out, "USDC   target  30.0% | current  50.0% | drift  +20.0% | $5,000.00")
	assert.Contains(t, out, "WETH   target  40.0% | current  30.0% | drift  -10.0% | $3,000.00")

	assert.Contains(t, out, "No directional signals.")
	assert.Contains(t, out, "No rebalancing needed.")
}

func TestRenderSignalsAndPlan(t *testing.T) {
	d := sampleData()
	d.Decisions = map[string]domain.Decision{
		"WETH": {Symbol: "WETH", Direction: domain.Buy, Strength: 0.8, Reason: "momentum +6.2% over 24h"},
		"USDC": {Symbol: "USDC", Direction: domain.Hold, Reason: "no directional signals"},
	}
	d.Intents = []domain.TradeIntent{
		{Symbol: "USDC", Side: domain.Sell, Amount: 2000, Drift: 0.2},
		{Symbol: "WETH", Side: domain.Buy, Amount: 1000, Drift: 0.1},
	}

	out := NewWriter(Config{OutDir: t.TempDir()}).Render(d)

	assert.Contains(t, out, "ACTIVE SIGNALS")
	assert.Contains(t, out, "WETH   BUY  strength 0.80  momentum +6.2% over 24h")
	assert.NotContains(t, out, "USDC   HOLD", "holds stay out of the signals section")

	assert.Contains(t, out, "REBALANCE RECOMMENDATIONS")
	assert.Contains(t, out, "SELL USDC   $2,000.00 (drift 20.0%)")
	assert.Contains(t, out, "BUY  WETH   $1,000.00 (drift 10.0%)")
	assert.NotContains(t, out, "No rebalancing needed.")
}

func TestRenderOptionalSections(t *testing.T) {
	d := sampleData()
	d.Cycle = &CycleStats{
		CycleID:  "0d1f3c",
		Outcome:  "completed",
		Took:     1200 * time.Millisecond,
		Intents:  3,
		Executed: 3,
		DryRun:   true,
	}
	d.Trades = []Trade{
		{At: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), FromSymbol: "USDC", ToSymbol: "WETH", FromAmount: 1000},
	}
	d.Moves = []PriceMove{
		{Symbol: "SOL", Price: 98.4, Change: -0.023, Samples: 24},
		{Symbol: "WETH", Price: 2640.25, Change: 0.051, Samples: 24},
	}
	d.Competition = "Spring Sim (status: active)"

	out := NewWriter(Config{OutDir: t.TempDir()}).Render(d)

	assert.Contains(t, out, "LAST CYCLE")
	assert.Contains(t, out, "cycle 0d1f3c completed in 1.2s: 3 intents, 3 executed, 0 failed (dry run)")
	assert.Contains(t, out, "RECENT TRADES")
	assert.Contains(t, out, "2026-03-14 08:00 UTC  1,000.00 USDC -> WETH")
	assert.Contains(t, out, "24H PRICE MOVES")
	assert.Contains(t, out, "SOL    $98.40   -2.3% (24 samples)")
	assert.Contains(t, out, "WETH   $2,640.25   +5.1% (24 samples)")
	assert.Contains(t, out, "COMPETITION STATUS")
	assert.Contains(t, out, "Spring Sim (status: active)")
}

func TestRenderOmitsEmptyOptionalSections(t *testing.T) {
	out := NewWriter(Config{OutDir: t.TempDir()}).Render(sampleData())

	assert.NotContains(t, out, "LAST CYCLE")
	assert.NotContains(t, out, "RECENT TRADES")
	assert.NotContains(t, out, "24H PRICE MOVES")
	assert.NotContains(t, out, "COMPETITION STATUS")
}

func TestWriteDaily(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(Config{OutDir: filepath.Join(dir, "logs")})

	path, err := w.WriteDaily(sampleData())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs", "report_2026-03-14.txt"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "PORTFOLIO REPORT")

	// Same day rewrites the same file.
	again, err := w.WriteDaily(sampleData())
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestUSDFormatting(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{9.5, "$9.50"},
		{999.99, "$999.99"},
		{1000, "$1,000.00"},
		{1234567.891, "$1,234,567.89"},
		{-2500.5, "-$2,500.50"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, usd(tc.in), "usd(%v)", tc.in)
	}
}
