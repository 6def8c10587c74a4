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

// CardServiceImpl implements ports.CardService.
type CardServiceImpl struct {
	cardRepo ports.CardRepository
	deriver  ports.AddressDeriver
	log      zerolog.Logger
}

// NewCardService creates a new CardServiceImpl.
func NewCardService(cardRepo ports.CardRepository, deriver ports.AddressDeriver, log zerolog.Logger) *CardServiceImpl {
	return &CardServiceImpl{cardRepo: cardRepo, deriver: deriver, log: log}
}

// CreateCard opens a zero-balance card. Crypto-kind cards get their receive
// address derived here, once; the address never changes for the card's
// lifetime.
func (s *CardServiceImpl) CreateCard(ctx context.Context, ownerID int64, kind domain.CurrencyKind) (*domain.Card, error) {
	if ownerID <= 0 {
		return nil, apperror.ErrInvalidInput("owner id must be positive")
	}
	if !kind.IsValid() {
		return nil, apperror.ErrInvalidInput(fmt.Sprintf("unknown currency kind %q", kind))
	}

	now := time.Now().UTC()
	card := &domain.Card{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      kind,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if kind.IsCrypto() {
		address, err := s.deriver.Derive(ownerID, kind)
		if err != nil {
			return nil, err
		}
		card.ReceiveAddress = &address
	}

	if err := s.cardRepo.Create(ctx, card); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create card: %w", err))
	}

	s.log.Info().
		Str("card_id", card.ID.String()).
		Int64("owner_id", ownerID).
		Str("kind", string(kind)).
		Msg("card created")

	return card, nil
}

// GetCard returns the card by id.
func (s *CardServiceImpl) GetCard(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	card, err := s.cardRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil {
		return nil, apperror.ErrNotFound("card")
	}
	return card, nil
}
