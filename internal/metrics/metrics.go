// Package metrics holds the Prometheus instrumentation for the allocation
// pipeline. A single Registry is created at startup and threaded into the
// components that record; a nil *Registry is safe and records nothing,
// which keeps leaf packages testable without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus collectors for driftbot.
type Registry struct {
	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram

	// Signal pipeline metrics
	SignalsTotal    *prometheus.CounterVec
	IntentsTotal    *prometheus.CounterVec
	SuppressedTotal prometheus.Counter
	CapClampsTotal  *prometheus.CounterVec

	// Market data metrics
	IngestRejectsTotal prometheus.Counter
	PriceAlertsTotal   prometheus.Counter
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec

	// Venue transport metrics
	VenueRequests    *prometheus.CounterVec
	VenueLatency     *prometheus.HistogramVec
	StreamReconnects prometheus.Counter

	// Portfolio state gauges
	PortfolioValue prometheus.Gauge
	AssetWeight    *prometheus.GaugeVec
	AssetDrift     *prometheus.GaugeVec
}

// NewRegistry creates all collectors and registers them with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftbot_cycles_total",
				Help: "Total evaluation cycles by outcome",
			},
			[]string{"outcome"},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "driftbot_cycle_duration_seconds",
				Help:    "Duration of one evaluation cycle in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),

		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftbot_signals_total",
				Help: "Signals generated by strategy and direction",
			},
			[]string{"strategy", "direction"},
		),

		IntentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftbot_trade_intents_total",
				Help: "Trade intents planned by side",
			},
			[]string{"side"},
		),

		SuppressedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "driftbot_trades_suppressed_total",
				Help: "Trades below the minimum amount, deferred to a later cycle",
			},
		),

		CapClampsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftbot_cap_clamps_total",
				Help: "Risk cap clamps applied by cap type",
			},
			[]string{"cap"},
		),

		IngestRejectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "driftbot_price_ingest_rejects_total",
				Help: "Price samples dropped for out-of-order or duplicate timestamps",
			},
		),

		PriceAlertsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "driftbot_price_alerts_total",
				Help: "Price moves beyond the alert threshold",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftbot_cache_hits_total",
				Help: "Price cache hits by tier",
			},
			[]string{"tier"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftbot_cache_misses_total",
				Help: "Price cache misses by tier",
			},
			[]string{"tier"},
		),

		VenueRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftbot_venue_requests_total",
				Help: "Venue API requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		VenueLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "driftbot_venue_request_seconds",
				Help:    "Venue API request latency in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"endpoint"},
		),

		StreamReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "driftbot_stream_reconnects_total",
				Help: "Websocket price stream reconnect attempts",
			},
		),

		PortfolioValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "driftbot_portfolio_value_usd",
				Help: "Total portfolio value at the last snapshot",
			},
		),

		AssetWeight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "driftbot_asset_weight",
				Help: "Current allocation weight by asset",
			},
			[]string{"symbol"},
		),

		AssetDrift: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "driftbot_asset_drift",
				Help: "Absolute allocation drift by asset at the last cycle",
			},
			[]string{"symbol"},
		),
	}

	reg.MustRegister(
		r.CyclesTotal,
		r.CycleDuration,
		r.SignalsTotal,
		r.IntentsTotal,
		r.SuppressedTotal,
		r.CapClampsTotal,
		r.IngestRejectsTotal,
		r.PriceAlertsTotal,
		r.CacheHits,
		r.CacheMisses,
		r.VenueRequests,
		r.VenueLatency,
		r.StreamReconnects,
		r.PortfolioValue,
		r.AssetWeight,
		r.AssetDrift,
	)

	return r
}

// RecordCycle records one finished cycle with its outcome and duration.
func (r *Registry) RecordCycle(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.CyclesTotal.WithLabelValues(outcome).Inc()
	r.CycleDuration.Observe(d.Seconds())
}

// RecordSignal counts one generated signal.
func (r *Registry) RecordSignal(strategy, direction string) {
	if r == nil {
		return
	}
	r.SignalsTotal.WithLabelValues(strategy, direction).Inc()
}

// RecordIntent counts one planned trade intent.
func (r *Registry) RecordIntent(side string) {
	if r == nil {
		return
	}
	r.IntentsTotal.WithLabelValues(side).Inc()
}

// RecordSuppressed counts a below-minimum trade left for a later cycle.
func (r *Registry) RecordSuppressed() {
	if r == nil {
		return
	}
	r.SuppressedTotal.Inc()
}

// RecordCapClamp counts a risk cap clamp ("single" or "meme").
func (r *Registry) RecordCapClamp(cap string) {
	if r == nil {
		return
	}
	r.CapClampsTotal.WithLabelValues(cap).Inc()
}

// RecordIngestReject counts a dropped price sample.
func (r *Registry) RecordIngestReject() {
	if r == nil {
		return
	}
	r.IngestRejectsTotal.Inc()
}

// RecordPriceAlert counts a price move beyond the alert threshold.
func (r *Registry) RecordPriceAlert() {
	if r == nil {
		return
	}
	r.PriceAlertsTotal.Inc()
}

// RecordCacheHit counts a hit on the named cache tier.
func (r *Registry) RecordCacheHit(tier string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss counts a miss on the named cache tier.
func (r *Registry) RecordCacheMiss(tier string) {
	if r == nil {
		return
	}
	r.CacheMisses.WithLabelValues(tier).Inc()
}

// RecordVenueRequest records one venue API call.
func (r *Registry) RecordVenueRequest(endpoint, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.VenueRequests.WithLabelValues(endpoint, outcome).Inc()
	r.VenueLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordStreamReconnect counts a websocket reconnect attempt.
func (r *Registry) RecordStreamReconnect() {
	if r == nil {
		return
	}
	r.StreamReconnects.Inc()
}

// SetPortfolio updates the portfolio value gauge.
func (r *Registry) SetPortfolio(totalValue float64) {
	if r == nil {
		return
	}
	r.PortfolioValue.Set(totalValue)
}

// SetAssetWeight updates the weight gauge for one asset.
func (r *Registry) SetAssetWeight(symbol string, weight float64) {
	if r == nil {
		return
	}
	r.AssetWeight.WithLabelValues(symbol).Set(weight)
}

// SetAssetDrift updates the drift gauge for one asset.
func (r *Registry) SetAssetDrift(symbol string, drift float64) {
	if r == nil {
		return
	}
	r.AssetDrift.WithLabelValues(symbol).Set(drift)
}
