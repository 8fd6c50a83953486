package venue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/domain"
)

// PriceLookup resolves the current quote price for an asset. The market
// provider satisfies it, so executions reuse its cache tiers instead of
// re-fetching spot prices per trade.
type PriceLookup interface {
	Price(ctx context.Context, asset domain.Asset) (float64, error)
}

// Trader turns quote-denominated trade intents into venue swaps against
// the reserve asset: a buy spends reserve into the asset, a sell unwinds
// the asset back into reserve.
type Trader struct {
	client  *Client
	prices  PriceLookup
	assets  map[string]domain.Asset
	reserve domain.Asset
}

func NewTrader(client *Client, prices PriceLookup, assets map[string]domain.Asset, reserve domain.Asset) *Trader {
	return &Trader{
		client:  client,
		prices:  prices,
		assets:  assets,
		reserve: reserve,
	}
}

// Execute places one intent on the venue and returns the venue
// transaction id. Intents on the reserve symbol itself settle through
// the counterpart legs, so they are acknowledged without a venue call
// and return an empty transaction id.
//
// Before executing, the intent is quoted and dropped with an error when
// the venue's quoted proceeds slip below the intent's MaxSlippage cap.
func (t *Trader) Execute(ctx context.Context, cycleID string, intent domain.TradeIntent) (string, error) {
	if intent.Symbol == t.reserve.Symbol {
		log.Debug().
			Str("cycle_id", cycleID).
			Str("symbol", intent.Symbol).
			Msg("reserve intent settles via counterpart trades, not placed")
		return "", nil
	}

	asset, ok := t.assets[intent.Symbol]
	if !ok {
		return "", fmt.Errorf("no asset configured for %s", intent.Symbol)
	}

	from, to := t.reserve, asset
	if intent.Side == domain.Sell {
		from, to = asset, t.reserve
	}

	fromPrice, err := t.prices.Price(ctx, from)
	if err != nil {
		return "", fmt.Errorf("price %s for execution: %w", from.Symbol, err)
	}
	toPrice, err := t.prices.Price(ctx, to)
	if err != nil {
		return "", fmt.Errorf("price %s for execution: %w", to.Symbol, err)
	}

	amountTokens := intent.Amount / fromPrice
	expectedTo := intent.Amount / toPrice

	if err := t.checkSlippage(ctx, from, to, amountTokens, expectedTo, intent.MaxSlippage); err != nil {
		return "", err
	}

	receipt, err := t.client.ExecuteTrade(ctx, from, to, amountTokens, intent.Reason)
	if err != nil {
		return "", err
	}

	log.Info().
		Str("cycle_id", cycleID).
		Str("symbol", intent.Symbol).
		Str("side", string(intent.Side)).
		Float64("amount_quote", intent.Amount).
		Float64("amount_tokens", amountTokens).
		Str("venue_tx", receipt.Transaction.ID).
		Msg("trade executed")

	return receipt.Transaction.ID, nil
}

// checkSlippage compares the venue quote against spot-implied proceeds.
// A maxSlippage of zero disables the check, as does a quote without a
// toAmount.
func (t *Trader) checkSlippage(ctx context.Context, from, to domain.Asset, amountTokens, expectedTo, maxSlippage float64) error {
	if maxSlippage <= 0 || expectedTo <= 0 {
		return nil
	}

	quote, err := t.client.TradeQuote(ctx, from, to, amountTokens)
	if err != nil {
		return fmt.Errorf("quote before execution: %w", err)
	}
	if quote.ToAmount <= 0 {
		return nil
	}

	slip := 1 - quote.ToAmount/expectedTo
	if slip > maxSlippage {
		return fmt.Errorf("venue quote for %s->%s slips %.4f, above cap %.4f",
			from.Symbol, to.Symbol, slip, maxSlippage)
	}
	return nil
}
