package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/cache"
	"github.com/peakmont/driftbot/internal/domain"
)

// PriceSource fetches a spot price from the venue.
type PriceSource interface {
	TokenPrice(ctx context.Context, asset domain.Asset) (float64, error)
}

// cachedQuote is the JSON shape stored in the cache tiers.
type cachedQuote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
}

// Provider serves read-through cached prices. Fresh venue fetches are
// appended to History and shown to the Monitor; cache hits are not, so
// the stored series only carries venue observations.
type Provider struct {
	source  PriceSource
	cache   *cache.Tiered
	history *History
	monitor *Monitor
}

// NewProvider wires the price path. monitor may be nil.
func NewProvider(source PriceSource, c *cache.Tiered, h *History, mon *Monitor) *Provider {
	return &Provider{source: source, cache: c, history: h, monitor: mon}
}

// Price returns the current price for asset, from cache when fresh.
func (p *Provider) Price(ctx context.Context, asset domain.Asset) (float64, error) {
	key := "price:" + asset.Symbol

	buf, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("symbol", asset.Symbol).Msg("shared cache read failed")
	}
	if ok {
		var q cachedQuote
		if jerr := json.Unmarshal(buf, &q); jerr == nil && q.Price > 0 {
			return q.Price, nil
		}
		log.Warn().Str("symbol", asset.Symbol).Msg("discarding malformed cache entry")
	}

	price, err := p.source.TokenPrice(ctx, asset)
	if err != nil {
		return 0, fmt.Errorf("fetch price for %s: %w", asset.Symbol, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("venue returned non-positive price %v for %s", price, asset.Symbol)
	}

	now := time.Now().UTC()
	if buf, jerr := json.Marshal(cachedQuote{Symbol: asset.Symbol, Price: price, At: now}); jerr == nil {
		if cerr := p.cache.Set(ctx, key, buf); cerr != nil {
			log.Warn().Err(cerr).Str("symbol", asset.Symbol).Msg("price cache write failed")
		}
	}

	// History enforces ordering itself and logs any reject.
	_ = p.history.Append(asset.Symbol, now, price)

	if p.monitor != nil {
		p.monitor.Observe(asset.Symbol, price)
	}
	return price, nil
}

// PollOnce fetches prices for every enabled asset, feeding History. It
// returns an error only when every fetch failed, so one bad token does
// not starve the rest of the series.
func (p *Provider) PollOnce(ctx context.Context, assets []domain.Asset) error {
	var polled, failed int
	for _, asset := range assets {
		if !asset.Enabled {
			continue
		}
		polled++
		if _, err := p.Price(ctx, asset); err != nil {
			failed++
			log.Error().Err(err).Str("symbol", asset.Symbol).Msg("price poll failed")
		}
	}
	if polled > 0 && failed == polled {
		return fmt.Errorf("price poll: all %d fetches failed", polled)
	}
	return nil
}
