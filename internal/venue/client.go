package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/peakmont/driftbot/internal/domain"
	"github.com/peakmont/driftbot/internal/metrics"
)

// ErrBreakerOpen is returned while the circuit is open and calls fail
// fast without touching the venue. The engine skips the cycle and the
// next scheduled one retries.
var ErrBreakerOpen = errors.New("venue circuit open")

// Endpoint labels for metrics. Kept to a fixed set so the venue request
// counter stays low-cardinality.
const (
	epPortfolio    = "portfolio"
	epBalances     = "balances"
	epPrice        = "price"
	epTradeExecute = "trade_execute"
	epTradeQuote   = "trade_quote"
	epCompetition  = "competition_status"
	epTrades       = "trades"
	epHealth       = "health"
)

// APIError is a non-2xx venue response with a body snippet for logs.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue api status %d: %s", e.Status, e.Body)
}

// Client talks to the venue REST API. Every call waits on a shared
// token-bucket limiter and runs through a circuit breaker that opens
// after consecutive failures.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Registry
}

func NewClient(cfg Config, m *metrics.Registry) *Client {
	settings := gobreaker.Settings{
		Name:        "venue",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.interval(),
		Timeout:     cfg.Breaker.cooldown(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("venue circuit state changed")
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout()},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateBurst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		metrics: m,
	}
}

// TokenBalance is one holding as the venue reports it.
type TokenBalance struct {
	Token  string  `json:"token"`
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
	Chain  string  `json:"chain"`
}

type portfolioResponse struct {
	Tokens     []TokenBalance `json:"tokens"`
	TotalValue float64        `json:"totalValue"`
}

// Portfolio fetches the current holdings snapshot, keyed by upper-case
// symbol with USD values. Entries for the same symbol are merged.
func (c *Client) Portfolio(ctx context.Context) (domain.Portfolio, error) {
	var resp portfolioResponse
	if err := c.do(ctx, epPortfolio, http.MethodGet, "/agent/portfolio", nil, nil, &resp); err != nil {
		return domain.Portfolio{}, fmt.Errorf("fetch portfolio: %w", err)
	}

	p := domain.Portfolio{
		Holdings:   make(map[string]float64, len(resp.Tokens)),
		TotalValue: resp.TotalValue,
	}
	for _, tb := range resp.Tokens {
		sym := tb.Symbol
		if sym == "" {
			sym = tb.Token
		}
		p.Holdings[strings.ToUpper(sym)] += tb.Value
	}
	return p, nil
}

// Balance is one raw token balance row.
type Balance struct {
	TokenAddress string  `json:"tokenAddress"`
	Symbol       string  `json:"symbol"`
	Amount       float64 `json:"amount"`
	Chain        string  `json:"chain"`
}

func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	var resp struct {
		Balances []Balance `json:"balances"`
	}
	if err := c.do(ctx, epBalances, http.MethodGet, "/agent/balances", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}
	return resp.Balances, nil
}

// ChainKind maps a specific chain name onto the venue's chain family
// parameter: Solana is svm, everything else is served as evm.
func ChainKind(chain string) string {
	if chain == "svm" {
		return "svm"
	}
	return "evm"
}

// TokenPrice fetches the venue spot price for one asset. This is the
// price source the market provider polls.
func (c *Client) TokenPrice(ctx context.Context, asset domain.Asset) (float64, error) {
	q := url.Values{}
	q.Set("token", asset.Address)
	q.Set("chain", ChainKind(asset.Chain))
	q.Set("specificChain", asset.Chain)

	var resp struct {
		Price float64 `json:"price"`
	}
	if err := c.do(ctx, epPrice, http.MethodGet, "/price", q, nil, &resp); err != nil {
		return 0, fmt.Errorf("fetch price for %s: %w", asset.Symbol, err)
	}
	if resp.Price <= 0 {
		return 0, fmt.Errorf("venue returned non-positive price %g for %s", resp.Price, asset.Symbol)
	}
	return resp.Price, nil
}

type tradeRequest struct {
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

// TradeReceipt is the venue's answer to an executed trade.
type TradeReceipt struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Transaction struct {
		ID         string  `json:"id"`
		FromToken  string  `json:"fromToken"`
		ToToken    string  `json:"toToken"`
		FromAmount float64 `json:"fromAmount"`
		ToAmount   float64 `json:"toAmount"`
		Price      float64 `json:"price"`
	} `json:"transaction"`
}

// ExecuteTrade swaps amountTokens of from (denominated in from-token
// units) into to. The venue expects the amount as a decimal string.
func (c *Client) ExecuteTrade(ctx context.Context, from, to domain.Asset, amountTokens float64, reason string) (*TradeReceipt, error) {
	req := tradeRequest{
		FromToken: from.Address,
		ToToken:   to.Address,
		Amount:    strconv.FormatFloat(amountTokens, 'f', -1, 64),
		Reason:    reason,
	}

	var receipt TradeReceipt
	if err := c.do(ctx, epTradeExecute, http.MethodPost, "/trade/execute", nil, req, &receipt); err != nil {
		return nil, fmt.Errorf("execute trade %s->%s: %w", from.Symbol, to.Symbol, err)
	}
	if !receipt.Success {
		return &receipt, fmt.Errorf("venue rejected trade %s->%s: %s", from.Symbol, to.Symbol, receipt.Error)
	}
	return &receipt, nil
}

// Quote is an indicative price for a prospective swap.
type Quote struct {
	FromToken  string  `json:"fromToken"`
	ToToken    string  `json:"toToken"`
	FromAmount float64 `json:"fromAmount"`
	ToAmount   float64 `json:"toAmount"`
	Price      float64 `json:"price"`
}

func (c *Client) TradeQuote(ctx context.Context, from, to domain.Asset, amountTokens float64) (*Quote, error) {
	q := url.Values{}
	q.Set("fromToken", from.Address)
	q.Set("toToken", to.Address)
	q.Set("amount", strconv.FormatFloat(amountTokens, 'f', -1, 64))

	var quote Quote
	if err := c.do(ctx, epTradeQuote, http.MethodGet, "/trade/quote", q, nil, &quote); err != nil {
		return nil, fmt.Errorf("quote trade %s->%s: %w", from.Symbol, to.Symbol, err)
	}
	return &quote, nil
}

// CompetitionStatus reports whether the venue competition is live.
type CompetitionStatus struct {
	Active      bool `json:"active"`
	Competition struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"competition"`
}

func (c *Client) CompetitionStatus(ctx context.Context) (*CompetitionStatus, error) {
	var status CompetitionStatus
	if err := c.do(ctx, epCompetition, http.MethodGet, "/competition/status", nil, nil, &status); err != nil {
		return nil, fmt.Errorf("fetch competition status: %w", err)
	}
	return &status, nil
}

// TradeRecord is one past trade from the venue's history endpoint.
type TradeRecord struct {
	ID         string    `json:"id"`
	FromToken  string    `json:"fromToken"`
	ToToken    string    `json:"toToken"`
	FromAmount float64   `json:"fromAmount"`
	ToAmount   float64   `json:"toAmount"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

func (c *Client) Trades(ctx context.Context, limit int) ([]TradeRecord, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Trades []TradeRecord `json:"trades"`
	}
	if err := c.do(ctx, epTrades, http.MethodGet, "/agent/trades", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch trade history: %w", err)
	}
	return resp.Trades, nil
}

// Health checks venue reachability.
func (c *Client) Health(ctx context.Context) error {
	if err := c.do(ctx, epHealth, http.MethodGet, "/health", nil, nil, nil); err != nil {
		return fmt.Errorf("venue health: %w", err)
	}
	return nil
}

// do runs one API call through the limiter and breaker and records the
// request metric.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("venue rate limit wait: %w", err)
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, query, body, out)
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.RecordVenueRequest(endpoint, outcome, time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w (%s %s)", ErrBreakerOpen, method, path)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("venue request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
