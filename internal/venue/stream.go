package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/metrics"
)

const (
	streamHandshakeTimeout = 30 * time.Second
	streamPingInterval     = 30 * time.Second
	streamReadDeadline     = 90 * time.Second
	streamWriteDeadline    = 5 * time.Second
	streamBackoffInitial   = time.Second
	streamBackoffMax       = time.Minute
)

// PriceSink receives live samples from the stream. The market history
// store satisfies it; out-of-order samples are its problem to drop.
type PriceSink interface {
	Append(symbol string, at time.Time, price float64) error
}

type subscribeRequest struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

type tickEvent struct {
	Type   string    `json:"type"`
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	At     time.Time `json:"ts"`
}

// Stream ingests live venue prices over websocket and forwards them to
// a sink. It owns reconnection; callers just run it until shutdown.
type Stream struct {
	url     string
	apiKey  string
	symbols []string
	sink    PriceSink
	metrics *metrics.Registry
}

func NewStream(cfg Config, symbols []string, sink PriceSink, m *metrics.Registry) *Stream {
	return &Stream{
		url:     cfg.StreamURL,
		apiKey:  cfg.APIKey,
		symbols: append([]string(nil), symbols...),
		sink:    sink,
		metrics: m,
	}
}

// Run dials the stream and ingests ticks until ctx is cancelled,
// reconnecting with capped backoff after any failure. A connection that
// survived past the backoff cap resets the backoff.
func (s *Stream) Run(ctx context.Context) error {
	if s.url == "" {
		return errors.New("stream url not configured")
	}

	backoff := streamBackoffInitial
	for {
		started := time.Now()
		err := s.runConn(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > streamBackoffMax {
			backoff = streamBackoffInitial
		}

		s.metrics.RecordStreamReconnect()
		log.Warn().
			Err(err).
			Dur("backoff", backoff).
			Msg("price stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > streamBackoffMax {
			backoff = streamBackoffMax
		}
	}
}

// runConn runs a single connection to failure. The ping goroutine also
// closes the connection when ctx is cancelled, which unblocks the
// reader.
func (s *Stream) runConn(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: streamHandshakeTimeout}
	header := http.Header{}
	if s.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.apiKey)
	}

	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial price stream: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeRequest{Type: "subscribe", Symbols: s.symbols}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Info().
		Str("url", s.url).
		Int("symbols", len(s.symbols)).
		Msg("price stream connected")

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(ctx, conn, done)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(streamReadDeadline)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}

		var tick tickEvent
		if err := json.Unmarshal(data, &tick); err != nil {
			log.Debug().Err(err).Msg("skipping malformed stream message")
			continue
		}
		if tick.Type != "price" || tick.Symbol == "" || tick.Price <= 0 {
			continue
		}

		at := tick.At
		if at.IsZero() {
			at = time.Now().UTC()
		}
		// History drops stale samples itself and logs the reject.
		_ = s.sink.Append(strings.ToUpper(tick.Symbol), at, tick.Price)
	}
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
