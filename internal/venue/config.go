// Package venue implements the trading venue REST client and the live
// websocket price stream.
package venue

import "time"

// Config holds venue connectivity settings. The API key is resolved
// from the environment variable named by APIKeyEnv at load time, never
// stored in the config file.
type Config struct {
	BaseURL        string        `yaml:"base_url" default:"https://api.sandbox.competitions.recall.network/api" validate:"required,url"`
	StreamURL      string        `yaml:"stream_url" validate:"omitempty,url"`
	APIKeyEnv      string        `yaml:"api_key_env" default:"DRIFTBOT_VENUE_API_KEY"`
	APIKey         string        `yaml:"-"`
	TimeoutSeconds int           `yaml:"timeout_seconds" default:"10" validate:"gt=0"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" default:"5" validate:"gt=0"`
	RateBurst      int           `yaml:"rate_burst" default:"10" validate:"gt=0"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the REST client.
type BreakerConfig struct {
	MaxRequests         uint32 `yaml:"max_requests" default:"2" validate:"gt=0"`
	IntervalSeconds     int    `yaml:"interval_seconds" default:"60" validate:"gt=0"`
	CooldownSeconds     int    `yaml:"cooldown_seconds" default:"30" validate:"gt=0"`
	ConsecutiveFailures uint32 `yaml:"consecutive_failures" default:"5" validate:"gt=0"`
}

// Timeout returns the per-request HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (b BreakerConfig) interval() time.Duration {
	return time.Duration(b.IntervalSeconds) * time.Second
}

func (b BreakerConfig) cooldown() time.Duration {
	return time.Duration(b.CooldownSeconds) * time.Second
}
