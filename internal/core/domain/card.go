package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencyKind identifies the denomination of a card.
type CurrencyKind string

const (
	CurrencyUSD CurrencyKind = "usd"
	CurrencyEUR CurrencyKind = "eur"
	CurrencyBTC CurrencyKind = "btc"
	CurrencyETH CurrencyKind = "eth"
)

// IsValid reports whether the currency kind is one of the supported kinds.
func (c CurrencyKind) IsValid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyBTC, CurrencyETH:
		return true
	}
	return false
}

// IsCrypto reports whether the currency kind needs a derived receive address.
func (c CurrencyKind) IsCrypto() bool {
	return c == CurrencyBTC || c == CurrencyETH
}

// Card is a user's balance-holding instrument, fiat or crypto-denominated.
// Balance is a cached projection of the card's ledger entries; the ledger
// is the source of truth. ReceiveAddress is immutable once set.
type Card struct {
	ID             uuid.UUID       `json:"id"`
	OwnerID        int64           `json:"owner_id"`
	Kind           CurrencyKind    `json:"currency_kind"`
	Balance        decimal.Decimal `json:"balance"`
	ReceiveAddress *string         `json:"receive_address,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
