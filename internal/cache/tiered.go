package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/peakmont/driftbot/internal/metrics"
)

const (
	tierMemory = "memory"
	tierRedis  = "redis"
)

// Tiered is a read-through composite: the memory tier answers first, the
// shared tier backs it, and shared hits are copied forward into memory.
// A nil shared tier degrades to memory-only.
type Tiered struct {
	memory  Store
	shared  Store
	ttl     time.Duration
	metrics *metrics.Registry
}

// NewTiered builds the composite cache. shared may be nil.
func NewTiered(memory, shared Store, ttl time.Duration, m *metrics.Registry) *Tiered {
	return &Tiered{memory: memory, shared: shared, ttl: ttl, metrics: m}
}

// Get answers from the first tier holding a live value. A shared-tier
// failure is returned alongside the miss so callers can log it without
// failing the lookup.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, _ := t.memory.Get(ctx, key)
	if ok {
		t.metrics.RecordCacheHit(tierMemory)
		return val, true, nil
	}
	t.metrics.RecordCacheMiss(tierMemory)

	if t.shared == nil {
		return nil, false, nil
	}

	val, ok, err := t.shared.Get(ctx, key)
	if err != nil {
		t.metrics.RecordCacheMiss(tierRedis)
		return nil, false, err
	}
	if !ok {
		t.metrics.RecordCacheMiss(tierRedis)
		return nil, false, nil
	}

	t.metrics.RecordCacheHit(tierRedis)
	// Promote so the next lookup stays local.
	_ = t.memory.Set(ctx, key, val, t.ttl)
	return val, true, nil
}

// Set writes through every tier.
func (t *Tiered) Set(ctx context.Context, key string, value []byte) error {
	if err := t.memory.Set(ctx, key, value, t.ttl); err != nil {
		return fmt.Errorf("memory tier set %s: %w", key, err)
	}
	if t.shared == nil {
		return nil
	}
	if err := t.shared.Set(ctx, key, value, t.ttl); err != nil {
		return fmt.Errorf("shared tier set %s: %w", key, err)
	}
	return nil
}

// Ping probes the shared tier when present. The memory tier cannot
// fail, so a memory-only cache always reports healthy.
func (t *Tiered) Ping(ctx context.Context) error {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := t.shared.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes both tiers.
func (t *Tiered) Close() error {
	err := t.memory.Close()
	if t.shared != nil {
		if serr := t.shared.Close(); err == nil {
			err = serr
		}
	}
	return err
}
