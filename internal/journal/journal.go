// Package journal persists planned trade intents to Postgres. The
// journal is optional and disabled by default; a disabled journal is a
// no-op writer so callers never branch on enablement.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/peakmont/driftbot/internal/domain"
)

// Row statuses. An intent is journaled as planned (or dry_run) when the
// cycle emits it and marked executed or failed after the venue answers.
const (
	StatusPlanned  = "planned"
	StatusExecuted = "executed"
	StatusFailed   = "failed"
	StatusDryRun   = "dry_run"
)

// uniqueViolation is the Postgres error code for a duplicate key.
const uniqueViolation = pq.ErrorCode("23505")

// Config holds journal connection settings.
type Config struct {
	Enabled                bool   `yaml:"enabled"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns" default:"10" validate:"gt=0"`
	MaxIdleConns           int    `yaml:"max_idle_conns" default:"5" validate:"gt=0"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" default:"30" validate:"gt=0"`
	QueryTimeoutSeconds    int    `yaml:"query_timeout_seconds" default:"10" validate:"gt=0"`
}

func (c Config) queryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

func (c Config) connLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// Entry is one journaled intent row.
type Entry struct {
	CycleID     string    `db:"cycle_id"`
	Symbol      string    `db:"symbol"`
	Side        string    `db:"side"`
	Amount      float64   `db:"amount_usd"`
	Drift       float64   `db:"drift"`
	MaxSlippage float64   `db:"max_slippage"`
	Status      string    `db:"status"`
	Reason      string    `db:"reason"`
	VenueTx     string    `db:"venue_tx"`
	CreatedAt   time.Time `db:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS trade_intents (
	id           BIGSERIAL PRIMARY KEY,
	cycle_id     TEXT             NOT NULL,
	symbol       TEXT             NOT NULL,
	side         TEXT             NOT NULL,
	amount_usd   DOUBLE PRECISION NOT NULL,
	drift        DOUBLE PRECISION NOT NULL,
	max_slippage DOUBLE PRECISION NOT NULL,
	status       TEXT             NOT NULL,
	reason       TEXT             NOT NULL,
	venue_tx     TEXT             NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ      NOT NULL,
	UNIQUE (cycle_id, symbol)
)`

const insertIntent = `
INSERT INTO trade_intents (cycle_id, symbol, side, amount_usd, drift, max_slippage, status, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const updateIntentStatus = `
UPDATE trade_intents SET status = $1, venue_tx = $2 WHERE cycle_id = $3 AND symbol = $4`

const selectRecent = `
SELECT cycle_id, symbol, side, amount_usd, drift, max_slippage, status, reason, venue_tx, created_at
FROM trade_intents ORDER BY created_at DESC LIMIT $1`

// Journal writes intent rows. The zero value is a disabled journal.
type Journal struct {
	db      *sqlx.DB
	enabled bool
	timeout time.Duration
}

// New opens the journal connection when enabled; a disabled config
// returns a no-op journal.
func New(cfg Config) (*Journal, error) {
	if !cfg.Enabled {
		return &Journal{}, nil
	}
	if cfg.DSN == "" {
		return nil, errors.New("journal dsn is required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.connLifetime())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}

	return &Journal{db: db, enabled: true, timeout: cfg.queryTimeout()}, nil
}

// Enabled reports whether rows are actually written. A nil journal is
// disabled.
func (j *Journal) Enabled() bool {
	return j != nil && j.enabled
}

// Migrate creates the journal table if it does not exist.
func (j *Journal) Migrate(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	qctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if _, err := j.db.ExecContext(qctx, schema); err != nil {
		return fmt.Errorf("migrate journal schema: %w", err)
	}
	return nil
}

// Record journals one intent. Re-recording the same (cycle_id, symbol)
// is treated as already journaled, not an error, so a retried cycle
// step stays idempotent.
func (j *Journal) Record(ctx context.Context, cycleID string, intent domain.TradeIntent, status string) error {
	if !j.Enabled() {
		return nil
	}
	qctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	_, err := j.db.ExecContext(qctx, insertIntent,
		cycleID, intent.Symbol, string(intent.Side), intent.Amount,
		intent.Drift, intent.MaxSlippage, status, intent.Reason, time.Now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			log.Debug().
				Str("cycle_id", cycleID).
				Str("symbol", intent.Symbol).
				Msg("intent already journaled")
			return nil
		}
		return fmt.Errorf("journal intent %s/%s: %w", cycleID, intent.Symbol, err)
	}
	return nil
}

// MarkResult updates a journaled intent after execution settles.
func (j *Journal) MarkResult(ctx context.Context, cycleID, symbol, status, venueTx string) error {
	if !j.Enabled() {
		return nil
	}
	qctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if _, err := j.db.ExecContext(qctx, updateIntentStatus, status, venueTx, cycleID, symbol); err != nil {
		return fmt.Errorf("mark intent %s/%s %s: %w", cycleID, symbol, status, err)
	}
	return nil
}

// Recent returns the newest journal rows, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if !j.Enabled() {
		return nil, nil
	}
	qctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var entries []Entry
	if err := j.db.SelectContext(qctx, &entries, selectRecent, limit); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

// Ping checks journal connectivity. A disabled journal is healthy.
func (j *Journal) Ping(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	qctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return j.db.PingContext(qctx)
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
