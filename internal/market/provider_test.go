package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakmont/driftbot/internal/cache"
	"github.com/peakmont/driftbot/internal/domain"
)

// fakeSource serves canned prices and counts venue calls.
type fakeSource struct {
	prices map[string]float64
	errs   map[string]error
	calls  int
}

func (f *fakeSource) TokenPrice(_ context.Context, asset domain.Asset) (float64, error) {
	f.calls++
	if err, ok := f.errs[asset.Symbol]; ok {
		return 0, err
	}
	return f.prices[asset.Symbol], nil
}

func newTestProvider(src *fakeSource) (*Provider, *History) {
	mem := cache.NewMemory(time.Minute)
	tiered := cache.NewTiered(mem, nil, time.Minute, nil)
	h := NewHistory(0, nil)
	return NewProvider(src, tiered, h, nil), h
}

func weth() domain.Asset {
	return domain.Asset{Symbol: "WETH", Chain: "ethereum", Category: domain.CategoryMajor, Volatility: domain.VolatilityMedium, Enabled: true}
}

func TestProviderCachesFetches(t *testing.T) {
	src := &fakeSource{prices: map[string]float64{"WETH": 3500}}
	p, h := newTestProvider(src)
	ctx := context.Background()

	price, err := p.Price(ctx, weth())
	require.NoError(t, err)
	assert.Equal(t, 3500.0, price)

	price, err = p.Price(ctx, weth())
	require.NoError(t, err)
	assert.Equal(t, 3500.0, price)

	assert.Equal(t, 1, src.calls, "second lookup within TTL must come from cache")
	assert.Equal(t, 1, h.Len("WETH"), "only the venue fetch is appended to history")
}

func TestProviderVenueErrorPropagates(t *testing.T) {
	src := &fakeSource{errs: map[string]error{"WETH": errors.New("503 from venue")}}
	p, h := newTestProvider(src)

	_, err := p.Price(context.Background(), weth())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WETH")
	assert.Equal(t, 0, h.Len("WETH"), "failed fetches must not pollute history")
}

func TestProviderRejectsNonPositivePrice(t *testing.T) {
	src := &fakeSource{prices: map[string]float64{"WETH": 0}}
	p, _ := newTestProvider(src)

	_, err := p.Price(context.Background(), weth())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive")
}

func TestProviderPollOnceSkipsDisabled(t *testing.T) {
	src := &fakeSource{prices: map[string]float64{"WETH": 3500, "SOL": 150}}
	p, h := newTestProvider(src)

	assets := []domain.Asset{
		weth(),
		{Symbol: "SOL", Chain: "solana", Category: domain.CategoryMajor, Enabled: false},
	}

	require.NoError(t, p.PollOnce(context.Background(), assets))
	assert.Equal(t, 1, src.calls, "disabled assets are not polled")
	assert.Equal(t, 0, h.Len("SOL"))
}

func TestProviderPollOnceAllFailed(t *testing.T) {
	src := &fakeSource{errs: map[string]error{"WETH": errors.New("down")}}
	p, _ := newTestProvider(src)

	err := p.PollOnce(context.Background(), []domain.Asset{weth()})
	require.Error(t, err, "a poll where every fetch failed should be reported")
	assert.Contains(t, err.Error(), "all 1 fetches failed")
}
