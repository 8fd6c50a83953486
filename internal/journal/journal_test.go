package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakmont/driftbot/internal/domain"
)

func newMockJournal(t *testing.T) (*Journal, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Journal{db: sqlx.NewDb(db, "postgres"), enabled: true, timeout: time.Second}, mock
}

func testIntent() domain.TradeIntent {
	return domain.TradeIntent{
		Symbol:      "WETH",
		Side:        domain.Buy,
		Amount:      1000,
		Drift:       0.1,
		MaxSlippage: 0.01,
		Reason:      "weight drift",
	}
}

func TestJournalRecordInsertsIntent(t *testing.T) {
	j, mock := newMockJournal(t)
	mock.ExpectExec("INSERT INTO trade_intents").
		WithArgs("cycle-1", "WETH", "buy", 1000.0, 0.1, 0.01, StatusPlanned, "weight drift", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := j.Record(context.Background(), "cycle-1", testIntent(), StatusPlanned)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalDuplicateInsertIsIdempotent(t *testing.T) {
	j, mock := newMockJournal(t)
	mock.ExpectExec("INSERT INTO trade_intents").
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := j.Record(context.Background(), "cycle-1", testIntent(), StatusPlanned)

	assert.NoError(t, err, "a duplicate row means the intent is already journaled")
}

func TestJournalRecordErrorPropagates(t *testing.T) {
	j, mock := newMockJournal(t)
	mock.ExpectExec("INSERT INTO trade_intents").
		WillReturnError(errors.New("connection reset"))

	err := j.Record(context.Background(), "cycle-1", testIntent(), StatusPlanned)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestJournalMarkResult(t *testing.T) {
	j, mock := newMockJournal(t)
	mock.ExpectExec("UPDATE trade_intents SET status").
		WithArgs(StatusExecuted, "tx-9", "cycle-1", "WETH").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := j.MarkResult(context.Background(), "cycle-1", "WETH", StatusExecuted, "tx-9")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRecent(t *testing.T) {
	j, mock := newMockJournal(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"cycle_id", "symbol", "side", "amount_usd", "drift",
		"max_slippage", "status", "reason", "venue_tx", "created_at",
	}).
		AddRow("cycle-2", "SOL", "sell", 500.0, 0.08, 0.01, StatusExecuted, "drift", "tx-3", now).
		AddRow("cycle-1", "WETH", "buy", 1000.0, 0.1, 0.01, StatusPlanned, "drift", "", now.Add(-time.Hour))
	mock.ExpectQuery("FROM trade_intents ORDER BY created_at DESC").
		WithArgs(5).
		WillReturnRows(rows)

	entries, err := j.Recent(context.Background(), 5)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "SOL", entries[0].Symbol)
	assert.Equal(t, "tx-3", entries[0].VenueTx)
	assert.Equal(t, StatusPlanned, entries[1].Status)
}

func TestJournalMigrate(t *testing.T) {
	j, mock := newMockJournal(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS trade_intents").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, j.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectPing()

	j := &Journal{db: sqlx.NewDb(db, "postgres"), enabled: true, timeout: time.Second}

	assert.NoError(t, j.Ping(context.Background()))
}

func TestJournalDisabledIsNoop(t *testing.T) {
	j, err := New(Config{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, j.Enabled())
	assert.NoError(t, j.Record(ctx, "cycle-1", testIntent(), StatusPlanned))
	assert.NoError(t, j.MarkResult(ctx, "cycle-1", "WETH", StatusExecuted, "tx"))
	assert.NoError(t, j.Migrate(ctx))
	assert.NoError(t, j.Ping(ctx))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, entries)

	assert.NoError(t, j.Close())
}

func TestJournalNilIsDisabled(t *testing.T) {
	var j *Journal

	ctx := context.Background()
	assert.False(t, j.Enabled())
	assert.NoError(t, j.Record(ctx, "cycle-1", testIntent(), StatusPlanned))
	assert.NoError(t, j.Ping(ctx))
	assert.NoError(t, j.Close())
}

func TestJournalNewRequiresDSNWhenEnabled(t *testing.T) {
	_, err := New(Config{Enabled: true})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}
