package service

import (
	"context"
	"fmt"
	"time"

	"crypto-card-service/internal/core/domain"
	"crypto-card-service/internal/core/ports"
	"crypto-card-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultEntryListLimit = 50

// LedgerServiceImpl implements ports.LedgerService. It is the only write
// path into card balances: every mutation appends a ledger entry and updates
// the cached balance inside one database transaction, holding a row lock on
// the card so concurrent deltas serialize.
type LedgerServiceImpl struct {
	cardRepo   ports.CardRepository
	ledgerRepo ports.LedgerRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	cardRepo ports.CardRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		cardRepo:   cardRepo,
		ledgerRepo: ledgerRepo,
		transactor: transactor,
		log:        log,
	}
}

// Apply appends one ledger entry and moves the card's cached balance by the
// entry's delta, atomically. A negative resulting balance aborts the whole
// operation. When req.IdempotencyKey is set and an entry with that key
// already exists, the existing entry is returned and nothing is written.
func (s *LedgerServiceImpl) Apply(ctx context.Context, req ports.ApplyRequest) (*domain.LedgerEntry, error) {
	if req.Delta.IsZero() {
		return nil, apperror.ErrInvalidInput("delta must be non-zero")
	}
	if !req.Reason.IsValid() {
		return nil, apperror.ErrInvalidInput(fmt.Sprintf("unknown entry reason %q", req.Reason))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Idempotency check runs inside the transaction so a concurrent retry
	// either sees the committed entry or blocks on the card lock below.
	if req.IdempotencyKey != nil {
		existing, err := s.ledgerRepo.GetByIdempotencyKey(ctx, dbTx, *req.IdempotencyKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("idempotency check: %w", err))
		}
		if existing != nil {
			return existing, nil
		}
	}

	// Lock & get card
	card, err := s.cardRepo.GetByIDForUpdate(ctx, dbTx, req.CardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock card: %w", err))
	}
	if card == nil {
		return nil, apperror.ErrNotFound("card")
	}

	newBalance := card.Balance.Add(req.Delta)
	if newBalance.IsNegative() {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:             uuid.New(),
		CardID:         card.ID,
		Delta:          req.Delta,
		Reason:         req.Reason,
		OrderID:        req.OrderID,
		ActorID:        req.ActorID,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	}

	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	if err := s.cardRepo.UpdateBalance(ctx, dbTx, card.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("card_id", card.ID.String()).
		Str("delta", req.Delta.String()).
		Str("reason", string(req.Reason)).
		Int64("actor_id", req.ActorID).
		Msg("ledger entry applied")

	return entry, nil
}

// GetBalance returns the card's cached balance.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil {
		return decimal.Zero, apperror.ErrNotFound("card")
	}
	return card.Balance, nil
}

// ListEntries returns the card's most recent ledger entries, newest first.
func (s *LedgerServiceImpl) ListEntries(ctx context.Context, cardID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultEntryListLimit
	}
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil {
		return nil, apperror.ErrNotFound("card")
	}
	entries, err := s.ledgerRepo.ListByCard(ctx, cardID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}
	return entries, nil
}
