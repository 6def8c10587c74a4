package postgres

import (
	"context"
	"errors"
	"fmt"

	"crypto-card-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LedgerRepo implements ports.LedgerRepository. Entries are append-only:
// there is no update or delete path here.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create inserts a ledger entry within a database transaction.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, card_id, delta, reason, order_id, actor_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.CardID, e.Delta, e.Reason, e.OrderID,
		e.ActorID, e.IdempotencyKey, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByIdempotencyKey fetches an existing entry by its idempotency key,
// inside the caller's transaction so the check serializes with the write.
func (r *LedgerRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (*domain.LedgerEntry, error) {
	query := `SELECT id, card_id, delta, reason, order_id, actor_id, idempotency_key, created_at
		FROM ledger_entries WHERE idempotency_key = $1`

	e := &domain.LedgerEntry{}
	err := tx.QueryRow(ctx, query, key).Scan(
		&e.ID, &e.CardID, &e.Delta, &e.Reason, &e.OrderID,
		&e.ActorID, &e.IdempotencyKey, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry by key: %w", err)
	}
	return e, nil
}

// ListByCard fetches a card's entries, newest first.
func (r *LedgerRepo) ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT id, card_id, delta, reason, order_id, actor_id, idempotency_key, created_at
		FROM ledger_entries WHERE card_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, cardID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.CardID, &e.Delta, &e.Reason, &e.OrderID,
			&e.ActorID, &e.IdempotencyKey, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

// SumByCard returns the sum of all deltas for a card. Used by integrity
// checks to verify the cached balance projection.
func (r *LedgerRepo) SumByCard(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(delta), 0) FROM ledger_entries WHERE card_id = $1`

	var sum decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, cardID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}
