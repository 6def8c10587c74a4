package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote is an advisory exchange rate snapshot. Quotes are not binding: the
// rate may be re-validated at settlement if the quote has expired by then.
type Quote struct {
	ID               uuid.UUID       `json:"id"`
	FromCurrency     CurrencyKind    `json:"from_currency"`
	ToCurrency       CurrencyKind    `json:"to_currency"`
	FromAmount       decimal.Decimal `json:"from_amount"`
	Rate             decimal.Decimal `json:"rate"`
	ExpectedToAmount decimal.Decimal `json:"expected_to_amount"`
	ExpiresAt        time.Time       `json:"expires_at"`
	CreatedAt        time.Time       `json:"created_at"`
}

// IsExpired reports whether the quote is stale at the given instant.
func (q *Quote) IsExpired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
