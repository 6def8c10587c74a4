package service

import (
	"context"
	"fmt"

	"crypto-card-service/internal/core/domain"
	"crypto-card-service/internal/core/ports"
	"crypto-card-service/pkg/apperror"

	"github.com/rs/zerolog"
)

// RegulatorServiceImpl implements ports.RegulatorService. Adjustments go
// through the ledger like every other balance change, so the audit trail
// records who moved what and why.
type RegulatorServiceImpl struct {
	ledger   ports.LedgerService
	cardRepo ports.CardRepository
	log      zerolog.Logger
}

// NewRegulatorService creates a new RegulatorServiceImpl.
func NewRegulatorService(ledger ports.LedgerService, cardRepo ports.CardRepository, log zerolog.Logger) *RegulatorServiceImpl {
	return &RegulatorServiceImpl{ledger: ledger, cardRepo: cardRepo, log: log}
}

// Adjust applies a signed delta to the card's balance on behalf of a
// regulator. Subtractions beyond the current balance are rejected by the
// ledger's non-negative rule.
func (s *RegulatorServiceImpl) Adjust(ctx context.Context, req ports.AdjustRequest) (*domain.Card, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidInput("amount must be positive")
	}

	var delta = req.Amount
	switch req.Operation {
	case ports.AdjustOpAdd:
	case ports.AdjustOpSubtract:
		delta = req.Amount.Neg()
	default:
		return nil, apperror.ErrInvalidInput(fmt.Sprintf("unknown operation %q", req.Operation))
	}

	entry, err := s.ledger.Apply(ctx, ports.ApplyRequest{
		CardID:  req.CardID,
		Delta:   delta,
		Reason:  domain.ReasonRegulatorAdjust,
		ActorID: req.ActorID,
	})
	if err != nil {
		return nil, err
	}

	card, err := s.cardRepo.GetByID(ctx, req.CardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil {
		return nil, apperror.ErrNotFound("card")
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("card_id", card.ID.String()).
		Int64("regulator_id", req.ActorID).
		Str("operation", string(req.Operation)).
		Str("amount", req.Amount.String()).
		Msg("regulator adjustment applied")

	return card, nil
}
