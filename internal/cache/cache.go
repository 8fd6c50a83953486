// Package cache provides the price cache tiers: a process-local TTL map
// and an optional shared Redis tier, composed read-through by Tiered.
package cache

import (
	"context"
	"time"
)

// Store is one cache tier. Get reports (value, found, error); a miss is
// not an error, and tier failures must never fail a price lookup.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config holds cache settings.
type Config struct {
	TTLSeconds int         `yaml:"ttl_seconds" default:"60" validate:"gt=0"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds the optional shared tier settings.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr" default:"localhost:6379"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0"`
	KeyPrefix string `yaml:"key_prefix" default:"driftbot:"`
}

// TTL returns the configured entry lifetime.
func (c Config) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
