package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an exchange order.
type OrderStatus string

const (
	OrderStatusQuoted       OrderStatus = "QUOTED"
	OrderStatusPendingPayin OrderStatus = "PENDING_PAYIN"
	OrderStatusConfirming   OrderStatus = "CONFIRMING"
	OrderStatusSettled      OrderStatus = "SETTLED"
	OrderStatusExpired      OrderStatus = "EXPIRED"
	OrderStatusFailed       OrderStatus = "FAILED"
)

// orderTransitions is the closed transition table. Anything not listed here
// is rejected at the boundary rather than trusted to caller discipline.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusQuoted:       {OrderStatusPendingPayin, OrderStatusExpired},
	OrderStatusPendingPayin: {OrderStatusConfirming, OrderStatusFailed},
	OrderStatusConfirming:   {OrderStatusSettled, OrderStatusFailed},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusSettled || s == OrderStatusExpired || s == OrderStatusFailed
}

// ExchangeOrder is a tracked request to convert value from one currency to
// another. PayinAddress is derived once at creation and frozen for the
// order's lifetime; Status only ever moves forward through the table above.
type ExchangeOrder struct {
	ID                uuid.UUID        `json:"id"`
	OwnerID           int64            `json:"owner_id"`
	FromCurrency      CurrencyKind     `json:"from_currency"`
	ToCurrency        CurrencyKind     `json:"to_currency"`
	FromAmount        decimal.Decimal  `json:"from_amount"`
	QuotedRate        decimal.Decimal  `json:"quoted_rate"`
	ExpectedToAmount  decimal.Decimal  `json:"expected_to_amount"`
	ObservedAmount    *decimal.Decimal `json:"observed_amount,omitempty"`
	SettledAmount     *decimal.Decimal `json:"settled_amount,omitempty"`
	Status            OrderStatus      `json:"status"`
	SourceCardID      uuid.UUID        `json:"source_card_id"`
	DestinationCardID *uuid.UUID       `json:"destination_card_id,omitempty"`
	PayinAddress      string           `json:"payin_address"`
	PayoutAddress     string           `json:"payout_address"`
	SlippageFlagged   bool             `json:"slippage_flagged"`
	Confirmations     int              `json:"confirmations"`
	QuoteExpiresAt    time.Time        `json:"quote_expires_at"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// HasLocalDestination reports whether settlement credits a card in this
// system, rather than releasing funds to an external payout address.
func (o *ExchangeOrder) HasLocalDestination() bool {
	return o.DestinationCardID != nil
}
