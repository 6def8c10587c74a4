package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-card-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, owner_id, from_currency, to_currency, from_amount, quoted_rate,
		expected_to_amount, observed_amount, settled_amount, status, source_card_id,
		destination_card_id, payin_address, payout_address, slippage_flagged,
		confirmations, quote_expires_at, created_at, updated_at`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func scanOrder(row pgx.Row) (*domain.ExchangeOrder, error) {
	o := &domain.ExchangeOrder{}
	err := row.Scan(
		&o.ID, &o.OwnerID, &o.FromCurrency, &o.ToCurrency, &o.FromAmount, &o.QuotedRate,
		&o.ExpectedToAmount, &o.ObservedAmount, &o.SettledAmount, &o.Status, &o.SourceCardID,
		&o.DestinationCardID, &o.PayinAddress, &o.PayoutAddress, &o.SlippageFlagged,
		&o.Confirmations, &o.QuoteExpiresAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Create inserts a new exchange order.
func (r *OrderRepo) Create(ctx context.Context, o *domain.ExchangeOrder) error {
	query := `INSERT INTO exchange_orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.pool.Exec(ctx, query,
		o.ID, o.OwnerID, o.FromCurrency, o.ToCurrency, o.FromAmount, o.QuotedRate,
		o.ExpectedToAmount, o.ObservedAmount, o.SettledAmount, o.Status, o.SourceCardID,
		o.DestinationCardID, o.PayinAddress, o.PayoutAddress, o.SlippageFlagged,
		o.Confirmations, o.QuoteExpiresAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exchange order: %w", err)
	}
	return nil
}

// GetByID fetches an order by UUID (without locking).
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM exchange_orders WHERE id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// GetByIDForUpdate fetches an order by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ExchangeOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM exchange_orders WHERE id = $1 FOR UPDATE`

	o, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order for update: %w", err)
	}
	return o, nil
}

// Update persists the mutable fields of an order within a transaction.
func (r *OrderRepo) Update(ctx context.Context, tx pgx.Tx, o *domain.ExchangeOrder) error {
	query := `UPDATE exchange_orders SET
		status = $1, observed_amount = $2, settled_amount = $3, slippage_flagged = $4,
		confirmations = $5, updated_at = NOW()
		WHERE id = $6`

	tag, err := tx.Exec(ctx, query,
		o.Status, o.ObservedAmount, o.SettledAmount, o.SlippageFlagged,
		o.Confirmations, o.ID,
	)
	if err != nil {
		return fmt.Errorf("update exchange order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", o.ID)
	}
	return nil
}

// ListExpiredQuoted returns ids of QUOTED orders whose quote expired before
// the cutoff. Used by the expiry sweep.
func (r *OrderRepo) ListExpiredQuoted(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM exchange_orders
		WHERE status = $1 AND quote_expires_at < $2 ORDER BY quote_expires_at LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.OrderStatusQuoted, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired quoted orders: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order ids: %w", err)
	}
	return ids, nil
}
