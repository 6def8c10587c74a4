package dto

import (
	"time"

	"crypto-card-service/internal/core/domain"
)

// CreateCardRequest is the request body for card creation.
type CreateCardRequest struct {
	OwnerID int64  `json:"owner_id" binding:"required,gt=0"`
	Kind    string `json:"kind" binding:"required,oneof=usd eur btc eth"`
}

// CardResponse is the response body for card reads.
type CardResponse struct {
	ID             string  `json:"id"`
	OwnerID        int64   `json:"owner_id"`
	Kind           string  `json:"kind"`
	Balance        string  `json:"balance"`
	ReceiveAddress *string `json:"receive_address,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// LedgerEntryResponse is one row of a card's ledger history.
type LedgerEntryResponse struct {
	ID        string  `json:"id"`
	Delta     string  `json:"delta"`
	Reason    string  `json:"reason"`
	OrderID   *string `json:"order_id,omitempty"`
	ActorID   int64   `json:"actor_id"`
	CreatedAt string  `json:"created_at"`
}

// LedgerListResponse wraps a card's ledger history.
type LedgerListResponse struct {
	CardID  string                `json:"card_id"`
	Balance string                `json:"balance"`
	Entries []LedgerEntryResponse `json:"entries"`
}

// QuoteRequest is the request body for an exchange quote.
type QuoteRequest struct {
	FromCurrency string `json:"from_currency" binding:"required,oneof=usd eur btc eth"`
	ToCurrency   string `json:"to_currency" binding:"required,oneof=usd eur btc eth"`
	FromAmount   string `json:"from_amount" binding:"required,decimal_amount"`
}

// QuoteResponse is the response body for a quote.
type QuoteResponse struct {
	ID               string `json:"id"`
	FromCurrency     string `json:"from_currency"`
	ToCurrency       string `json:"to_currency"`
	FromAmount       string `json:"from_amount"`
	Rate             string `json:"rate"`
	ExpectedToAmount string `json:"expected_to_amount"`
	ExpiresAt        string `json:"expires_at"`
}

// CreateOrderRequest is the request body for exchange order creation.
// Exactly one of destination_card_id or destination_address routes the
// settlement credit.
type CreateOrderRequest struct {
	QuoteID            string  `json:"quote_id" binding:"required,uuid"`
	SourceCardID       string  `json:"source_card_id" binding:"required,uuid"`
	DestinationCardID  *string `json:"destination_card_id,omitempty" binding:"omitempty,uuid"`
	DestinationAddress string  `json:"destination_address,omitempty" binding:"omitempty,max=128"`
}

// PayinRequest is the request body reporting an observed payin.
type PayinRequest struct {
	ObservedAmount string `json:"observed_amount" binding:"required,decimal_amount"`
	Confirmations  int    `json:"confirmations" binding:"gte=0"`
}

// OrderResponse is the response body for exchange order reads.
type OrderResponse struct {
	ID                string  `json:"id"`
	OwnerID           int64   `json:"owner_id"`
	FromCurrency      string  `json:"from_currency"`
	ToCurrency        string  `json:"to_currency"`
	FromAmount        string  `json:"from_amount"`
	QuotedRate        string  `json:"quoted_rate"`
	ExpectedToAmount  string  `json:"expected_to_amount"`
	ObservedAmount    *string `json:"observed_amount,omitempty"`
	SettledAmount     *string `json:"settled_amount,omitempty"`
	Status            string  `json:"status"`
	SourceCardID      string  `json:"source_card_id"`
	DestinationCardID *string `json:"destination_card_id,omitempty"`
	PayinAddress      string  `json:"payin_address,omitempty"`
	PayoutAddress     string  `json:"payout_address,omitempty"`
	SlippageFlagged   bool    `json:"slippage_flagged"`
	Confirmations     int     `json:"confirmations"`
	QuoteExpiresAt    string  `json:"quote_expires_at"`
	CreatedAt         string  `json:"created_at"`
}

// AdjustBalanceRequest is the request body for a regulator adjustment.
type AdjustBalanceRequest struct {
	CardID    string `json:"card_id" binding:"required,uuid"`
	Amount    string `json:"amount" binding:"required,decimal_amount"`
	Operation string `json:"operation" binding:"required,oneof=add subtract"`
}

// DedupResponse is the response body for a deduplication pass.
type DedupResponse struct {
	Scanned  int   `json:"scanned"`
	Retained int   `json:"retained"`
	Removed  int64 `json:"removed"`
	Skipped  int   `json:"skipped"`
}

// ToCardResponse converts a domain card to its DTO.
func ToCardResponse(card *domain.Card) CardResponse {
	return CardResponse{
		ID:             card.ID.String(),
		OwnerID:        card.OwnerID,
		Kind:           string(card.Kind),
		Balance:        card.Balance.String(),
		ReceiveAddress: card.ReceiveAddress,
		CreatedAt:      card.CreatedAt.Format(time.RFC3339),
	}
}

// ToQuoteResponse converts a domain quote to its DTO.
func ToQuoteResponse(q *domain.Quote) QuoteResponse {
	return QuoteResponse{
		ID:               q.ID.String(),
		FromCurrency:     string(q.FromCurrency),
		ToCurrency:       string(q.ToCurrency),
		FromAmount:       q.FromAmount.String(),
		Rate:             q.Rate.String(),
		ExpectedToAmount: q.ExpectedToAmount.String(),
		ExpiresAt:        q.ExpiresAt.Format(time.RFC3339),
	}
}

// ToOrderResponse converts a domain order to its DTO.
func ToOrderResponse(o *domain.ExchangeOrder) OrderResponse {
	resp := OrderResponse{
		ID:               o.ID.String(),
		OwnerID:          o.OwnerID,
		FromCurrency:     string(o.FromCurrency),
		ToCurrency:       string(o.ToCurrency),
		FromAmount:       o.FromAmount.String(),
		QuotedRate:       o.QuotedRate.String(),
		ExpectedToAmount: o.ExpectedToAmount.String(),
		Status:           string(o.Status),
		SourceCardID:     o.SourceCardID.String(),
		PayinAddress:     o.PayinAddress,
		PayoutAddress:    o.PayoutAddress,
		SlippageFlagged:  o.SlippageFlagged,
		Confirmations:    o.Confirmations,
		QuoteExpiresAt:   o.QuoteExpiresAt.Format(time.RFC3339),
		CreatedAt:        o.CreatedAt.Format(time.RFC3339),
	}
	if o.ObservedAmount != nil {
		s := o.ObservedAmount.String()
		resp.ObservedAmount = &s
	}
	if o.SettledAmount != nil {
		s := o.SettledAmount.String()
		resp.SettledAmount = &s
	}
	if o.DestinationCardID != nil {
		s := o.DestinationCardID.String()
		resp.DestinationCardID = &s
	}
	return resp
}

// ToLedgerEntryResponse converts a domain ledger entry to its DTO.
func ToLedgerEntryResponse(e domain.LedgerEntry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		ID:        e.ID.String(),
		Delta:     e.Delta.String(),
		Reason:    string(e.Reason),
		ActorID:   e.ActorID,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
	if e.OrderID != nil {
		s := e.OrderID.String()
		resp.OrderID = &s
	}
	return resp
}
