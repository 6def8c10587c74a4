package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCurrencyKind_IsValid(t *testing.T) {
	tests := []struct {
		name string
		kind CurrencyKind
		want bool
	}{
		{"usd", CurrencyUSD, true},
		{"eur", CurrencyEUR, true},
		{"btc", CurrencyBTC, true},
		{"eth", CurrencyETH, true},
		{"unknown", CurrencyKind("doge"), false},
		{"empty", CurrencyKind(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.IsValid())
		})
	}
}

func TestCurrencyKind_IsCrypto(t *testing.T) {
	tests := []struct {
		name string
		kind CurrencyKind
		want bool
	}{
		{"btc", CurrencyBTC, true},
		{"eth", CurrencyETH, true},
		{"usd", CurrencyUSD, false},
		{"eur", CurrencyEUR, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.IsCrypto())
		})
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status OrderStatus
		want   bool
	}{
		{"quoted", OrderStatusQuoted, false},
		{"pending payin", OrderStatusPendingPayin, false},
		{"confirming", OrderStatusConfirming, false},
		{"settled", OrderStatusSettled, true},
		{"expired", OrderStatusExpired, true},
		{"failed", OrderStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"quoted to pending payin", OrderStatusQuoted, OrderStatusPendingPayin, true},
		{"quoted to expired", OrderStatusQuoted, OrderStatusExpired, true},
		{"pending payin to confirming", OrderStatusPendingPayin, OrderStatusConfirming, true},
		{"pending payin to failed", OrderStatusPendingPayin, OrderStatusFailed, true},
		{"confirming to settled", OrderStatusConfirming, OrderStatusSettled, true},
		{"confirming to failed", OrderStatusConfirming, OrderStatusFailed, true},
		{"quoted to settled skips states", OrderStatusQuoted, OrderStatusSettled, false},
		{"quoted to confirming skips states", OrderStatusQuoted, OrderStatusConfirming, false},
		{"settled is final", OrderStatusSettled, OrderStatusFailed, false},
		{"expired is final", OrderStatusExpired, OrderStatusQuoted, false},
		{"failed is final", OrderStatusFailed, OrderStatusConfirming, false},
		{"no self transition", OrderStatusConfirming, OrderStatusConfirming, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestEntryReason_IsValid(t *testing.T) {
	assert.True(t, ReasonExchangeSettlement.IsValid())
	assert.True(t, ReasonRegulatorAdjust.IsValid())
	assert.True(t, ReasonMintDedupCorrection.IsValid())
	assert.False(t, EntryReason("manual-fix").IsValid())
}

func TestBuildSettlementKey(t *testing.T) {
	orderID := uuid.New()

	debitKey := BuildSettlementKey(orderID, "debit")
	creditKey := BuildSettlementKey(orderID, "credit")

	assert.Equal(t, "settle:"+orderID.String()+":debit", debitKey)
	assert.NotEqual(t, debitKey, creditKey)
	// Same order and leg always produce the same key.
	assert.Equal(t, debitKey, BuildSettlementKey(orderID, "debit"))
}

func TestQuote_IsExpired(t *testing.T) {
	now := time.Now().UTC()
	q := &Quote{ExpiresAt: now.Add(30 * time.Second)}

	assert.False(t, q.IsExpired(now))
	assert.False(t, q.IsExpired(now.Add(30*time.Second)))
	assert.True(t, q.IsExpired(now.Add(31*time.Second)))
}

func TestExchangeOrder_HasLocalDestination(t *testing.T) {
	external := &ExchangeOrder{PayoutAddress: "0xabc"}
	assert.False(t, external.HasLocalDestination())

	cardID := uuid.New()
	local := &ExchangeOrder{DestinationCardID: &cardID}
	assert.True(t, local.HasLocalDestination())
}
