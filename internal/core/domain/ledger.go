package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryReason identifies why a balance delta was applied.
type EntryReason string

const (
	ReasonExchangeSettlement  EntryReason = "exchange-settlement"
	ReasonRegulatorAdjust     EntryReason = "regulator-adjust"
	ReasonMintDedupCorrection EntryReason = "mint-dedup-correction"
)

// IsValid reports whether the reason is part of the closed set.
func (r EntryReason) IsValid() bool {
	switch r {
	case ReasonExchangeSettlement, ReasonRegulatorAdjust, ReasonMintDedupCorrection:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of a single balance delta. Entries are
// append-only: the sum of a card's entries always equals its cached balance.
type LedgerEntry struct {
	ID             uuid.UUID       `json:"id"`
	CardID         uuid.UUID       `json:"card_id"`
	Delta          decimal.Decimal `json:"delta"`
	Reason         EntryReason     `json:"reason"`
	OrderID        *uuid.UUID      `json:"order_id,omitempty"`
	ActorID        int64           `json:"actor_id"`
	IdempotencyKey *string         `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BuildSettlementKey returns the idempotency key for a settlement-side ledger
// write. Reusing the order id guarantees a retried settlement cannot
// double-apply the same leg.
func BuildSettlementKey(orderID uuid.UUID, leg string) string {
	return fmt.Sprintf("settle:%s:%s", orderID.String(), leg)
}
