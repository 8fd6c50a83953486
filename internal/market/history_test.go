package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(minute int) time.Time {
	return time.Date(2026, 3, 1, 12, minute, 0, 0, time.UTC)
}

func TestHistoryAppendKeepsOrder(t *testing.T) {
	h := NewHistory(0, nil)

	require.NoError(t, h.Append("WETH", ts(0), 3500))
	require.NoError(t, h.Append("WETH", ts(1), 3510))
	require.NoError(t, h.Append("WETH", ts(2), 3520))

	assert.Equal(t, 3, h.Len("WETH"))

	latest, ok := h.Latest("WETH")
	require.True(t, ok)
	assert.Equal(t, 3520.0, latest.Price)
}

func TestHistoryRejectsOutOfOrder(t *testing.T) {
	h := NewHistory(0, nil)

	require.NoError(t, h.Append("WETH", ts(5), 3500))

	err := h.Append("WETH", ts(3), 3480)
	assert.ErrorIs(t, err, ErrOutOfOrder, "older sample must be dropped")
	assert.Equal(t, 1, h.Len("WETH"), "dropped sample must not be stored")
}

func TestHistoryRejectsDuplicateTimestamp(t *testing.T) {
	h := NewHistory(0, nil)

	require.NoError(t, h.Append("SOL", ts(5), 150))

	err := h.Append("SOL", ts(5), 151)
	assert.ErrorIs(t, err, ErrOutOfOrder, "duplicate timestamp must be dropped")

	latest, ok := h.Latest("SOL")
	require.True(t, ok)
	assert.Equal(t, 150.0, latest.Price, "the first sample wins")
}

func TestHistoryWindowAnchorsOnLatestSample(t *testing.T) {
	h := NewHistory(0, nil)
	for i := 0; i <= 30; i += 10 {
		require.NoError(t, h.Append("WETH", ts(i), 3500+float64(i)))
	}

	window := h.Window("WETH", 20*time.Minute)
	require.Len(t, window, 3, "window spans [latest-20m, latest]")
	assert.Equal(t, ts(10), window[0].At)
	assert.Equal(t, ts(30), window[2].At)

	assert.Nil(t, h.Window("UNKNOWN", time.Hour))
}

func TestHistoryWindowReturnsCopy(t *testing.T) {
	h := NewHistory(0, nil)
	require.NoError(t, h.Append("WETH", ts(0), 3500))

	window := h.Window("WETH", time.Hour)
	require.Len(t, window, 1)
	window[0].Price = -1

	latest, ok := h.Latest("WETH")
	require.True(t, ok)
	assert.Equal(t, 3500.0, latest.Price, "callers must not be able to mutate the store")
}

func TestHistorySnapshotReturnsFullCopy(t *testing.T) {
	h := NewHistory(0, nil)
	for i := 0; i <= 30; i += 10 {
		require.NoError(t, h.Append("WETH", ts(i), 3500+float64(i)))
	}

	snap := h.Snapshot("WETH")
	require.Len(t, snap, 4)
	assert.Equal(t, ts(0), snap[0].At)
	assert.Equal(t, ts(30), snap[3].At)

	snap[0].Price = -1
	again := h.Snapshot("WETH")
	assert.Equal(t, 3500.0, again[0].Price, "callers must not be able to mutate the store")

	assert.Nil(t, h.Snapshot("UNKNOWN"))
}

func TestHistoryRetentionPrunes(t *testing.T) {
	h := NewHistory(25*time.Minute, nil)

	require.NoError(t, h.Append("WETH", ts(0), 3500))
	require.NoError(t, h.Append("WETH", ts(10), 3510))
	require.NoError(t, h.Append("WETH", ts(30), 3520))

	assert.Equal(t, 2, h.Len("WETH"), "samples older than retention are pruned")

	window := h.Window("WETH", time.Hour)
	assert.Equal(t, ts(10), window[0].At)
}

func TestHistorySymbolsSorted(t *testing.T) {
	h := NewHistory(0, nil)
	require.NoError(t, h.Append("SOL", ts(0), 150))
	require.NoError(t, h.Append("AAVE", ts(0), 90))
	require.NoError(t, h.Append("WETH", ts(0), 3500))

	assert.Equal(t, []string{"AAVE", "SOL", "WETH"}, h.Symbols())
}
