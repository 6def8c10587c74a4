package postgres

import (
	"context"
	"testing"
	"time"

	"crypto-card-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(cardID uuid.UUID) *domain.LedgerEntry {
	key := domain.BuildSettlementKey(uuid.New(), "debit")
	return &domain.LedgerEntry{
		ID:             uuid.New(),
		CardID:         cardID,
		Delta:          decimal.RequireFromString("-30.00"),
		Reason:         domain.ReasonRegulatorAdjust,
		OrderID:        nil,
		ActorID:        7,
		IdempotencyKey: &key,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func entryColumns() []string {
	return []string{"id", "card_id", "delta", "reason", "order_id", "actor_id", "idempotency_key", "created_at"}
}

func entryRow(e *domain.LedgerEntry) *pgxmock.Rows {
	return pgxmock.NewRows(entryColumns()).AddRow(
		e.ID, e.CardID, e.Delta, e.Reason, e.OrderID,
		e.ActorID, e.IdempotencyKey, e.CreatedAt,
	)
}

func TestLedgerRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.CardID, e.Delta, e.Reason, e.OrderID,
			e.ActorID, e.IdempotencyKey, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE idempotency_key").
		WithArgs(*e.IdempotencyKey).
		WillReturnRows(entryRow(e))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIdempotencyKey(context.Background(), tx, *e.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, e.ID, result.ID)
	assert.True(t, e.Delta.Equal(result.Delta))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByIdempotencyKey_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE idempotency_key").
		WithArgs("missing-key").
		WillReturnRows(pgxmock.NewRows(entryColumns()))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIdempotencyKey(context.Background(), tx, "missing-key")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByCard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	cardID := uuid.New()
	e1 := newTestEntry(cardID)
	e2 := newTestEntry(cardID)
	e2.Delta = decimal.RequireFromString("100.00")
	e2.IdempotencyKey = nil

	rows := pgxmock.NewRows(entryColumns()).
		AddRow(e1.ID, e1.CardID, e1.Delta, e1.Reason, e1.OrderID, e1.ActorID, e1.IdempotencyKey, e1.CreatedAt).
		AddRow(e2.ID, e2.CardID, e2.Delta, e2.Reason, e2.OrderID, e2.ActorID, e2.IdempotencyKey, e2.CreatedAt)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE card_id").
		WithArgs(cardID, 50).
		WillReturnRows(rows)

	result, err := repo.ListByCard(context.Background(), cardID, 50)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, e1.ID, result[0].ID)
	assert.Nil(t, result[1].IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumByCard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	cardID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(delta\\), 0\\) FROM ledger_entries").
		WithArgs(cardID).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(decimal.RequireFromString("70.00")))

	sum, err := repo.SumByCard(context.Background(), cardID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("70.00")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
