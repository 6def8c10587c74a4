package ports

import (
	"context"
	"time"

	"crypto-card-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CardRepository defines persistence operations for cards.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type CardRepository interface {
	Create(ctx context.Context, card *domain.Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)
	GetByOwner(ctx context.Context, ownerID int64) ([]domain.Card, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Card, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, balance decimal.Decimal) error
	SetReceiveAddress(ctx context.Context, cardID uuid.UUID, address string) error
}

// LedgerRepository defines persistence for append-only ledger entries.
// Entries are never updated or deleted after creation.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (*domain.LedgerEntry, error)
	ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
	SumByCard(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error)
}

// OrderRepository defines persistence operations for exchange orders.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.ExchangeOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ExchangeOrder, error)
	Update(ctx context.Context, tx pgx.Tx, order *domain.ExchangeOrder) error
	ListExpiredQuoted(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// AssetRepository defines persistence operations for minted-asset records.
type AssetRepository interface {
	ListAll(ctx context.Context) ([]domain.MintedAsset, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

// QuoteCache stores short-lived exchange quotes keyed by quote id.
// Get returns nil, nil when the quote is missing or already evicted.
type QuoteCache interface {
	Put(ctx context.Context, quote *domain.Quote, ttl time.Duration) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Quote, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
