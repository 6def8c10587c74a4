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

// CardRepo implements ports.CardRepository.
type CardRepo struct {
	pool Pool
}

// NewCardRepo creates a new CardRepo.
func NewCardRepo(pool Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

// Create inserts a new card into the database.
func (r *CardRepo) Create(ctx context.Context, c *domain.Card) error {
	query := `INSERT INTO cards (id, owner_id, currency_kind, balance, receive_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.OwnerID, c.Kind, c.Balance, c.ReceiveAddress,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// GetByID fetches a card by its UUID (without locking).
func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	query := `SELECT id, owner_id, currency_kind, balance, receive_address, created_at, updated_at
		FROM cards WHERE id = $1`

	c := &domain.Card{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.OwnerID, &c.Kind, &c.Balance, &c.ReceiveAddress,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get card by id: %w", err)
	}
	return c, nil
}

// GetByOwner fetches all cards belonging to a user.
func (r *CardRepo) GetByOwner(ctx context.Context, ownerID int64) ([]domain.Card, error) {
	query := `SELECT id, owner_id, currency_kind, balance, receive_address, created_at, updated_at
		FROM cards WHERE owner_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get cards by owner: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(
			&c.ID, &c.OwnerID, &c.Kind, &c.Balance, &c.ReceiveAddress,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return cards, nil
}

// GetByIDForUpdate fetches a card by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *CardRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Card, error) {
	query := `SELECT id, owner_id, currency_kind, balance, receive_address, created_at, updated_at
		FROM cards WHERE id = $1 FOR UPDATE`

	c := &domain.Card{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.OwnerID, &c.Kind, &c.Balance, &c.ReceiveAddress,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get card for update: %w", err)
	}
	return c, nil
}

// UpdateBalance updates a card's cached balance within a transaction.
func (r *CardRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE cards SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, cardID)
	if err != nil {
		return fmt.Errorf("update card balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card not found: %s", cardID)
	}
	return nil
}

// SetReceiveAddress persists a derived receive address. The WHERE clause
// guards immutability: an already-set address is never overwritten.
func (r *CardRepo) SetReceiveAddress(ctx context.Context, cardID uuid.UUID, address string) error {
	query := `UPDATE cards SET receive_address = $1, updated_at = NOW()
		WHERE id = $2 AND receive_address IS NULL`

	tag, err := r.pool.Exec(ctx, query, address, cardID)
	if err != nil {
		return fmt.Errorf("set receive address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card %s not found or address already set", cardID)
	}
	return nil
}
