package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"crypto-card-service/internal/core/domain"
	"crypto-card-service/internal/core/ports"
	"crypto-card-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	cards  *fakeCardRepo
	ledger *fakeLedgerRepo
	svc    *LedgerServiceImpl
}

func newLedgerFixture() *ledgerFixture {
	cards := newFakeCardRepo()
	ledger := newFakeLedgerRepo()
	svc := NewLedgerService(cards, ledger, newFakeTransactor(), zerolog.Nop())
	return &ledgerFixture{cards: cards, ledger: ledger, svc: svc}
}

func (f *ledgerFixture) seedCard(t *testing.T, balance string) *domain.Card {
	t.Helper()
	card := &domain.Card{
		ID:        uuid.New(),
		OwnerID:   100,
		Kind:      domain.CurrencyUSD,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.cards.Create(context.Background(), card))
	return card
}

func requireAppCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok, "expected *apperror.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

func TestLedgerApply_CreditAndDebit(t *testing.T) {
	f := newLedgerFixture()
	card := f.seedCard(t, "0")
	ctx := context.Background()

	entry, err := f.svc.Apply(ctx, ports.ApplyRequest{
		CardID:  card.ID,
		Delta:   decimal.RequireFromString("150.25"),
		Reason:  domain.ReasonRegulatorAdjust,
		ActorID: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, card.ID, entry.CardID)
	assert.True(t, entry.Delta.Equal(decimal.RequireFromString("150.25")))

	_, err = f.svc.Apply(ctx, ports.ApplyRequest{
		CardID:  card.ID,
		Delta:   decimal.RequireFromString("-50.25"),
		Reason:  domain.ReasonRegulatorAdjust,
		ActorID: 7,
	})
	require.NoError(t, err)

	balance, err := f.svc.GetBalance(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("100")), "got %s", balance)

	// Cached balance must match the entry sum.
	sum, err := f.ledger.SumByCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(balance))
}

func TestLedgerApply_RejectsOverdraft(t *testing.T) {
	f := newLedgerFixture()
	card := f.seedCard(t, "10")
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, ports.ApplyRequest{
		CardID:  card.ID,
		Delta:   decimal.RequireFromString("-10.01"),
		Reason:  domain.ReasonRegulatorAdjust,
		ActorID: 7,
	})
	requireAppCode(t, err, "CARD_002")

	// The rejected delta must leave no trace.
	balance, err := f.svc.GetBalance(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10")))
	entries, err := f.svc.ListEntries(ctx, card.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerApply_DebitToExactlyZero(t *testing.T) {
	f := newLedgerFixture()
	card := f.seedCard(t, "10")

	_, err := f.svc.Apply(context.Background(), ports.ApplyRequest{
		CardID:  card.ID,
		Delta:   decimal.RequireFromString("-10"),
		Reason:  domain.ReasonRegulatorAdjust,
		ActorID: 7,
	})
	require.NoError(t, err)

	balance, err := f.svc.GetBalance(context.Background(), card.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestLedgerApply_ValidationErrors(t *testing.T) {
	f := newLedgerFixture()
	card := f.seedCard(t, "10")

	tests := []struct {
		name     string
		req      ports.ApplyRequest
		wantCode string
	}{
		{
			"zero delta",
			ports.ApplyRequest{CardID: card.ID, Delta: decimal.Zero, Reason: domain.ReasonRegulatorAdjust},
			"CARD_001",
		},
		{
			"unknown reason",
			ports.ApplyRequest{CardID: card.ID, Delta: decimal.NewFromInt(1), Reason: domain.EntryReason("bonus")},
			"CARD_001",
		},
		{
			"missing card",
			ports.ApplyRequest{CardID: uuid.New(), Delta: decimal.NewFromInt(1), Reason: domain.ReasonRegulatorAdjust},
			"CARD_003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Apply(context.Background(), tt.req)
			requireAppCode(t, err, tt.wantCode)
		})
	}
}

func TestLedgerApply_IdempotencyKeyReturnsExistingEntry(t *testing.T) {
	f := newLedgerFixture()
	card := f.seedCard(t, "0")
	ctx := context.Background()
	key := domain.BuildSettlementKey(uuid.New(), "credit")

	first, err := f.svc.Apply(ctx, ports.ApplyRequest{
		CardID:         card.ID,
		Delta:          decimal.RequireFromString("25"),
		Reason:         domain.ReasonExchangeSettlement,
		ActorID:        7,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)

	second, err := f.svc.Apply(ctx, ports.ApplyRequest{
		CardID:         card.ID,
		Delta:          decimal.RequireFromString("25"),
		Reason:         domain.ReasonExchangeSettlement,
		ActorID:        7,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "replay must return the original entry")

	// The delta applied exactly once.
	balance, err := f.svc.GetBalance(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("25")))
}

func TestLedgerApply_ConcurrentDeltasSerialize(t *testing.T) {
	f := newLedgerFixture()
	card := f.seedCard(t, "1000")
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		delta := decimal.RequireFromString("-10")
		if i%2 == 0 {
			delta = decimal.RequireFromString("5")
		}
		go func(d decimal.Decimal) {
			defer wg.Done()
			_, err := f.svc.Apply(ctx, ports.ApplyRequest{
				CardID:  card.ID,
				Delta:   d,
				Reason:  domain.ReasonRegulatorAdjust,
				ActorID: 7,
			})
			assert.NoError(t, err)
		}(delta)
	}
	wg.Wait()

	// 10 credits of 5 and 10 debits of 10 from a 1000 start.
	balance, err := f.svc.GetBalance(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("950")), "got %s", balance)

	sum, err := f.ledger.SumByCard(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1000").Add(sum)))
}

func TestLedgerGetBalance_MissingCard(t *testing.T) {
	f := newLedgerFixture()
	_, err := f.svc.GetBalance(context.Background(), uuid.New())
	requireAppCode(t, err, "CARD_003")
}

func TestLedgerListEntries_DefaultLimitAndOrder(t *testing.T) {
	f := newLedgerFixture()
	card := f.seedCard(t, "0")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := f.svc.Apply(ctx, ports.ApplyRequest{
			CardID:  card.ID,
			Delta:   decimal.NewFromInt(int64(i)),
			Reason:  domain.ReasonRegulatorAdjust,
			ActorID: 7,
		})
		require.NoError(t, err)
	}

	entries, err := f.svc.ListEntries(ctx, card.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Delta.Equal(decimal.NewFromInt(3)), "newest entry first")
}
