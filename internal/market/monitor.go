package market

import (
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/metrics"
)

// MonitorConfig holds alerting settings.
type MonitorConfig struct {
	AlertThreshold float64 `yaml:"alert_threshold" default:"0.05" validate:"gt=0,lt=1"`
}

// Monitor watches sample-to-sample price moves and raises a structured
// alert when a move exceeds the threshold. Observation only; it never
// influences trading decisions.
type Monitor struct {
	mu        sync.Mutex
	threshold float64
	last      map[string]float64
	metrics   *metrics.Registry
}

// NewMonitor creates a monitor with the configured threshold.
func NewMonitor(cfg MonitorConfig, m *metrics.Registry) *Monitor {
	return &Monitor{
		threshold: cfg.AlertThreshold,
		last:      make(map[string]float64),
		metrics:   m,
	}
}

// Observe records a fresh price and alerts on a move beyond the threshold
// relative to the previous observation.
func (m *Monitor) Observe(symbol string, price float64) {
	m.mu.Lock()
	prev, seen := m.last[symbol]
	m.last[symbol] = price
	m.mu.Unlock()

	if !seen || prev <= 0 {
		return
	}

	change := (price - prev) / prev
	if math.Abs(change) < m.threshold {
		return
	}

	m.metrics.RecordPriceAlert()
	log.Warn().
		Str("symbol", symbol).
		Float64("from", prev).
		Float64("to", price).
		Float64("change_pct", change*100).
		Msg("price moved beyond alert threshold")
}
