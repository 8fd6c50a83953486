package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore simulates a broken shared tier.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("shared tier down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("shared tier down")
}
func (failingStore) Delete(context.Context, string) error { return nil }
func (failingStore) Close() error                         { return nil }

func TestTieredMemoryOnly(t *testing.T) {
	mem := NewMemory(time.Minute)
	defer mem.Close()
	tc := NewTiered(mem, nil, time.Minute, nil)
	ctx := context.Background()

	_, ok, err := tc.Get(ctx, "price:WETH")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tc.Set(ctx, "price:WETH", []byte("3500")))

	val, ok, err := tc.Get(ctx, "price:WETH")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3500", string(val))
}

func TestTieredPromotesSharedHit(t *testing.T) {
	mem := NewMemory(time.Minute)
	defer mem.Close()
	shared := NewMemory(time.Minute)
	defer shared.Close()
	tc := NewTiered(mem, shared, time.Minute, nil)
	ctx := context.Background()

	// Seed only the shared tier, as another instance would.
	require.NoError(t, shared.Set(ctx, "price:SOL", []byte("150"), time.Minute))

	val, ok, err := tc.Get(ctx, "price:SOL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "150", string(val))

	// The hit must now be answerable from memory alone.
	val, ok, err = mem.Get(ctx, "price:SOL")
	require.NoError(t, err)
	require.True(t, ok, "shared hit should be promoted into the memory tier")
	assert.Equal(t, "150", string(val))
}

func TestTieredSharedFailureSurfacesButDoesNotHit(t *testing.T) {
	mem := NewMemory(time.Minute)
	defer mem.Close()
	tc := NewTiered(mem, failingStore{}, time.Minute, nil)
	ctx := context.Background()

	_, ok, err := tc.Get(ctx, "price:PEPE")
	assert.False(t, ok)
	assert.Error(t, err, "shared failure is reported so the caller can log it")

	// Writes still land in memory before the shared tier fails.
	err = tc.Set(ctx, "price:PEPE", []byte("0.00001"))
	assert.Error(t, err)

	val, ok, gerr := mem.Get(ctx, "price:PEPE")
	require.NoError(t, gerr)
	require.True(t, ok, "memory tier write precedes the shared failure")
	assert.Equal(t, "0.00001", string(val))
}
