// Package market owns price history and market data plumbing: the
// append-only History store the strategies read, the venue-backed
// Provider with its cache tiers, and the price move Monitor.
package market

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/domain"
	"github.com/peakmont/driftbot/internal/metrics"
)

// ErrOutOfOrder marks a price sample whose timestamp is not strictly
// after the latest stored sample. The sample is dropped, never stored.
var ErrOutOfOrder = errors.New("price sample timestamp not after latest")

// History is the append-only per-asset price series store. It is the only
// state that survives across evaluation cycles. Safe for concurrent
// append (ingest goroutines) and read (engine snapshots).
type History struct {
	mu        sync.RWMutex
	series    map[string][]domain.PricePoint
	retention time.Duration
	metrics   *metrics.Registry
}

// NewHistory creates a store that keeps samples for retention past the
// latest timestamp; retention 0 keeps everything.
func NewHistory(retention time.Duration, m *metrics.Registry) *History {
	return &History{
		series:    make(map[string][]domain.PricePoint),
		retention: retention,
		metrics:   m,
	}
}

// Append stores one sample. Timestamps must be strictly increasing per
// asset; out-of-order and duplicate timestamps are dropped with a warning
// and ErrOutOfOrder.
func (h *History) Append(symbol string, at time.Time, price float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.series[symbol]
	if len(s) > 0 {
		latest := s[len(s)-1].At
		if !at.After(latest) {
			h.metrics.RecordIngestReject()
			log.Warn().
				Str("symbol", symbol).
				Time("sample_at", at).
				Time("latest_at", latest).
				Msg("dropping out-of-order price sample")
			return ErrOutOfOrder
		}
	}

	s = append(s, domain.PricePoint{At: at, Price: price})

	if h.retention > 0 {
		cutoff := at.Add(-h.retention)
		i := sort.Search(len(s), func(i int) bool { return !s[i].At.Before(cutoff) })
		if i > 0 {
			s = append(s[:0:0], s[i:]...)
		}
	}

	h.series[symbol] = s
	return nil
}

// Window returns a copy of the samples within span of the latest sample,
// latest included. The window is anchored on stored timestamps, not the
// wall clock, so repeated reads are deterministic.
func (h *History) Window(symbol string, span time.Duration) []domain.PricePoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.series[symbol]
	if len(s) == 0 {
		return nil
	}
	cutoff := s[len(s)-1].At.Add(-span)
	i := sort.Search(len(s), func(i int) bool { return !s[i].At.Before(cutoff) })

	out := make([]domain.PricePoint, len(s)-i)
	copy(out, s[i:])
	return out
}

// Snapshot returns a copy of the full stored series for symbol, oldest
// first. Strategies pick their own lookback slice from it.
func (h *History) Snapshot(symbol string) []domain.PricePoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.series[symbol]
	if len(s) == 0 {
		return nil
	}
	out := make([]domain.PricePoint, len(s))
	copy(out, s)
	return out
}

// Latest returns the newest sample for symbol.
func (h *History) Latest(symbol string) (domain.PricePoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.series[symbol]
	if len(s) == 0 {
		return domain.PricePoint{}, false
	}
	return s[len(s)-1], true
}

// Len reports the number of stored samples for symbol.
func (h *History) Len(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.series[symbol])
}

// Symbols returns the tracked symbols in sorted order.
func (h *History) Symbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.series))
	for sym := range h.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
