package ports

import (
	"context"
	"time"

	"crypto-card-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddressDeriver maps (userID, currency) to a network-valid receive address.
// Derivation is pure and deterministic: the same inputs always yield the
// same address, and no I/O is performed.
type AddressDeriver interface {
	Derive(userID int64, currency domain.CurrencyKind) (string, error)
}

// RateOracle fetches the current exchange rate between two currencies.
// Implementations are expected to fail transiently; callers bound the call
// with a context deadline.
type RateOracle interface {
	GetRate(ctx context.Context, from, to domain.CurrencyKind) (decimal.Decimal, time.Time, error)
}

// TokenService validates regulator capability tokens.
type TokenService interface {
	Generate(actorID int64, regulator bool) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed capability token claims.
type TokenClaims struct {
	ActorID   int64
	Regulator bool
}

// --- Service Ports (Business Logic) ---

// ApplyRequest holds validated input for a single ledger mutation.
type ApplyRequest struct {
	CardID         uuid.UUID
	Delta          decimal.Decimal
	Reason         domain.EntryReason
	ActorID        int64
	OrderID        *uuid.UUID
	IdempotencyKey *string
}

// LedgerService is the authoritative balance mutation path. Apply is atomic
// per card: concurrent calls on the same card serialize so that the sum of
// entries always equals the cached balance, which never goes negative.
type LedgerService interface {
	Apply(ctx context.Context, req ApplyRequest) (*domain.LedgerEntry, error)
	GetBalance(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error)
	ListEntries(ctx context.Context, cardID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
}

// QuoteRequest holds validated input for an exchange quote.
type QuoteRequest struct {
	FromCurrency domain.CurrencyKind
	ToCurrency   domain.CurrencyKind
	FromAmount   decimal.Decimal
}

// CreateOrderRequest holds validated input for exchange order creation.
type CreateOrderRequest struct {
	OwnerID            int64
	QuoteID            uuid.UUID
	SourceCardID       uuid.UUID
	DestinationCardID  *uuid.UUID
	DestinationAddress string
}

// PayinEvent is the payment observer's signal that funds arrived at the
// order's payin address.
type PayinEvent struct {
	OrderID        uuid.UUID
	ObservedAmount decimal.Decimal
	Confirmations  int
}

// ExchangeService governs the exchange order lifecycle from quote through
// settlement or failure.
type ExchangeService interface {
	Quote(ctx context.Context, req QuoteRequest) (*domain.Quote, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.ExchangeOrder, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error)
	MarkPayinReceived(ctx context.Context, event PayinEvent) (*domain.ExchangeOrder, error)
	Settle(ctx context.Context, orderID uuid.UUID) (*domain.ExchangeOrder, error)
	Expire(ctx context.Context, orderID uuid.UUID) (*domain.ExchangeOrder, error)
	ExpireStale(ctx context.Context) (int, error)
}

// AdjustOperation is the direction of a regulator adjustment.
type AdjustOperation string

const (
	AdjustOpAdd      AdjustOperation = "add"
	AdjustOpSubtract AdjustOperation = "subtract"
)

// AdjustRequest holds validated input for a regulator balance adjustment.
// ActorID must be pre-verified as bearing the regulator capability.
type AdjustRequest struct {
	ActorID   int64
	CardID    uuid.UUID
	Amount    decimal.Decimal
	Operation AdjustOperation
}

// RegulatorService is the privileged, audited direct mutation path into the
// ledger, bypassing the exchange machine.
type RegulatorService interface {
	Adjust(ctx context.Context, req AdjustRequest) (*domain.Card, error)
}

// DedupReport summarizes one deduplication pass. Retained counts only token
// groups known to hold exactly one row after the pass; groups whose deletes
// kept failing are counted in Skipped instead.
type DedupReport struct {
	Scanned  int   `json:"scanned"`
	Retained int   `json:"retained"`
	Removed  int64 `json:"removed"`
	Skipped  int   `json:"skipped"`
}

// DedupService collapses duplicate minted-asset records down to one
// canonical record per token id.
type DedupService interface {
	RunDeduplicationPass(ctx context.Context) (*DedupReport, error)
}

// CardService creates and reads cards, deriving receive addresses for
// crypto-kind cards at creation.
type CardService interface {
	CreateCard(ctx context.Context, ownerID int64, kind domain.CurrencyKind) (*domain.Card, error)
	GetCard(ctx context.Context, id uuid.UUID) (*domain.Card, error)
}
