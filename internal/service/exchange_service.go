package service

import (
	"context"
	"fmt"
	"time"

	"crypto-card-service/internal/core/domain"
	"crypto-card-service/internal/core/ports"
	"crypto-card-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// systemActorID marks ledger entries written by the exchange machine itself
// rather than by an authenticated actor.
const systemActorID = 0

// ExchangeParams holds the tunables of the exchange order machine, parsed
// once from configuration at startup.
type ExchangeParams struct {
	QuoteTTL              time.Duration
	SlippageTolerancePct  decimal.Decimal
	ConfirmationThreshold int
	ExpirySweepBatch      int
}

// ExchangeServiceImpl implements ports.ExchangeService. Settlement writes
// both ledger legs through the repositories directly so the debit, the
// credit and the order's state change share one database transaction.
type ExchangeServiceImpl struct {
	orderRepo  ports.OrderRepository
	cardRepo   ports.CardRepository
	ledgerRepo ports.LedgerRepository
	quoteCache ports.QuoteCache
	oracle     ports.RateOracle
	deriver    ports.AddressDeriver
	transactor ports.DBTransactor
	params     ExchangeParams
	log        zerolog.Logger
}

// NewExchangeService creates a new ExchangeServiceImpl.
func NewExchangeService(
	orderRepo ports.OrderRepository,
	cardRepo ports.CardRepository,
	ledgerRepo ports.LedgerRepository,
	quoteCache ports.QuoteCache,
	oracle ports.RateOracle,
	deriver ports.AddressDeriver,
	transactor ports.DBTransactor,
	params ExchangeParams,
	log zerolog.Logger,
) *ExchangeServiceImpl {
	return &ExchangeServiceImpl{
		orderRepo:  orderRepo,
		cardRepo:   cardRepo,
		ledgerRepo: ledgerRepo,
		quoteCache: quoteCache,
		oracle:     oracle,
		deriver:    deriver,
		transactor: transactor,
		params:     params,
		log:        log,
	}
}

// Quote fetches the current rate and caches an advisory quote for the
// configured validity window. Nothing is persisted in the database.
func (s *ExchangeServiceImpl) Quote(ctx context.Context, req ports.QuoteRequest) (*domain.Quote, error) {
	if !req.FromCurrency.IsValid() || !req.ToCurrency.IsValid() {
		return nil, apperror.ErrInvalidInput("unknown currency")
	}
	if req.FromCurrency == req.ToCurrency {
		return nil, apperror.ErrSameCurrency()
	}
	if !req.FromAmount.IsPositive() {
		return nil, apperror.ErrInvalidInput("amount must be positive")
	}

	rate, _, err := s.oracle.GetRate(ctx, req.FromCurrency, req.ToCurrency)
	if err != nil {
		return nil, apperror.ErrRateUnavailable(err)
	}

	now := time.Now().UTC()
	quote := &domain.Quote{
		ID:               uuid.New(),
		FromCurrency:     req.FromCurrency,
		ToCurrency:       req.ToCurrency,
		FromAmount:       req.FromAmount,
		Rate:             rate,
		ExpectedToAmount: req.FromAmount.Mul(rate),
		ExpiresAt:        now.Add(s.params.QuoteTTL),
		CreatedAt:        now,
	}

	if err := s.quoteCache.Put(ctx, quote, s.params.QuoteTTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cache quote: %w", err))
	}

	s.log.Info().
		Str("quote_id", quote.ID.String()).
		Str("pair", fmt.Sprintf("%s/%s", req.FromCurrency, req.ToCurrency)).
		Str("rate", rate.String()).
		Msg("quote issued")

	return quote, nil
}

// CreateOrder turns a live quote into a tracked order. The payin address is
// derived exactly once here and never changes afterwards. No funds move.
func (s *ExchangeServiceImpl) CreateOrder(ctx context.Context, req ports.CreateOrderRequest) (*domain.ExchangeOrder, error) {
	if req.OwnerID <= 0 {
		return nil, apperror.ErrInvalidInput("owner id must be positive")
	}
	if req.DestinationCardID == nil && req.DestinationAddress == "" {
		return nil, apperror.ErrInvalidInput("destination card or payout address required")
	}

	quote, err := s.quoteCache.Get(ctx, req.QuoteID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load quote: %w", err))
	}
	if quote == nil || quote.IsExpired(time.Now().UTC()) {
		return nil, apperror.ErrQuoteExpired()
	}

	source, err := s.cardRepo.GetByID(ctx, req.SourceCardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get source card: %w", err))
	}
	if source == nil || source.OwnerID != req.OwnerID {
		return nil, apperror.ErrNotFound("source card")
	}
	if source.Kind != quote.FromCurrency {
		return nil, apperror.ErrInvalidInput("source card currency does not match quote")
	}

	if req.DestinationCardID != nil {
		dest, err := s.cardRepo.GetByID(ctx, *req.DestinationCardID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get destination card: %w", err))
		}
		if dest == nil {
			return nil, apperror.ErrNotFound("destination card")
		}
		if dest.Kind != quote.ToCurrency {
			return nil, apperror.ErrInvalidInput("destination card currency does not match quote")
		}
	}

	// Fiat-funded orders debit the source card directly and have no
	// on-chain payin leg.
	payinAddress := ""
	if quote.FromCurrency.IsCrypto() {
		payinAddress, err = s.deriver.Derive(req.OwnerID, quote.FromCurrency)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	order := &domain.ExchangeOrder{
		ID:                uuid.New(),
		OwnerID:           req.OwnerID,
		FromCurrency:      quote.FromCurrency,
		ToCurrency:        quote.ToCurrency,
		FromAmount:        quote.FromAmount,
		QuotedRate:        quote.Rate,
		ExpectedToAmount:  quote.ExpectedToAmount,
		Status:            domain.OrderStatusQuoted,
		SourceCardID:      source.ID,
		DestinationCardID: req.DestinationCardID,
		PayinAddress:      payinAddress,
		PayoutAddress:     req.DestinationAddress,
		QuoteExpiresAt:    quote.ExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create order: %w", err))
	}

	s.log.Info().
		Str("order_id", order.ID.String()).
		Int64("owner_id", order.OwnerID).
		Str("pair", fmt.Sprintf("%s/%s", order.FromCurrency, order.ToCurrency)).
		Msg("exchange order created")

	return order, nil
}

// GetOrder returns the order snapshot for status polling.
func (s *ExchangeServiceImpl) GetOrder(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

// MarkPayinReceived records an observed payin. The first observation moves
// QUOTED orders to PENDING_PAYIN; reaching the confirmation threshold moves
// them on to CONFIRMING. An observed amount outside the slippage tolerance
// flags the order but never fails it.
func (s *ExchangeServiceImpl) MarkPayinReceived(ctx context.Context, event ports.PayinEvent) (*domain.ExchangeOrder, error) {
	if !event.ObservedAmount.IsPositive() {
		return nil, apperror.ErrInvalidInput("observed amount must be positive")
	}
	if event.Confirmations < 0 {
		return nil, apperror.ErrInvalidInput("confirmations must not be negative")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, event.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}

	if order.Status == domain.OrderStatusQuoted {
		if !domain.CanTransition(order.Status, domain.OrderStatusPendingPayin) {
			return nil, apperror.ErrInvalidTransition(string(order.Status), string(domain.OrderStatusPendingPayin))
		}
		order.Status = domain.OrderStatusPendingPayin
	}
	if order.Status != domain.OrderStatusPendingPayin && order.Status != domain.OrderStatusConfirming {
		return nil, apperror.ErrInvalidTransition(string(order.Status), string(domain.OrderStatusConfirming))
	}

	observed := event.ObservedAmount
	order.ObservedAmount = &observed
	order.Confirmations = event.Confirmations

	if s.exceedsSlippageTolerance(order.FromAmount, observed) {
		order.SlippageFlagged = true
	}

	if order.Status == domain.OrderStatusPendingPayin && order.Confirmations >= s.params.ConfirmationThreshold {
		order.Status = domain.OrderStatusConfirming
	}
	order.UpdatedAt = time.Now().UTC()

	if err := s.orderRepo.Update(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("status", string(order.Status)).
		Str("observed", observed.String()).
		Int("confirmations", order.Confirmations).
		Bool("slippage_flagged", order.SlippageFlagged).
		Msg("payin observation recorded")

	return order, nil
}

// exceedsSlippageTolerance reports whether the observed payin deviates from
// the quoted amount by more than the configured percentage.
func (s *ExchangeServiceImpl) exceedsSlippageTolerance(quoted, observed decimal.Decimal) bool {
	if !quoted.IsPositive() {
		return false
	}
	deviationPct := observed.Sub(quoted).Abs().Div(quoted).Mul(decimal.NewFromInt(100))
	return deviationPct.GreaterThan(s.params.SlippageTolerancePct)
}

// Settle converts a CONFIRMING order into balance movements. The debit, the
// optional local credit and the SETTLED state change commit in one database
// transaction under a row lock on the order, and each ledger leg carries an
// idempotency key so a crashed-and-retried settlement cannot double-apply.
// Calling Settle on an already SETTLED order returns the stored result.
func (s *ExchangeServiceImpl) Settle(ctx context.Context, orderID uuid.UUID) (*domain.ExchangeOrder, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.Status == domain.OrderStatusSettled {
		return order, nil
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusSettled) {
		return nil, apperror.ErrInvalidTransition(string(order.Status), string(domain.OrderStatusSettled))
	}

	// The quoted rate is honored while the quote lives. Past its expiry the
	// order settles at the current rate instead of silently using a stale one.
	rate := order.QuotedRate
	now := time.Now().UTC()
	if now.After(order.QuoteExpiresAt) {
		rate, _, err = s.oracle.GetRate(ctx, order.FromCurrency, order.ToCurrency)
		if err != nil {
			return nil, apperror.ErrRateUnavailable(err)
		}
		s.log.Warn().
			Str("order_id", order.ID.String()).
			Str("quoted_rate", order.QuotedRate.String()).
			Str("settle_rate", rate.String()).
			Msg("quote expired before settlement, re-quoted at current rate")
	}

	debitAmount := order.FromAmount
	if order.ObservedAmount != nil {
		debitAmount = *order.ObservedAmount
	}
	creditAmount := debitAmount.Mul(rate)

	if err := s.applyLeg(ctx, dbTx, order, "debit", order.SourceCardID, debitAmount.Neg()); err != nil {
		if apperror.IsInsufficientFunds(err) {
			return nil, s.failOrder(ctx, dbTx, order, err)
		}
		return nil, err
	}

	if order.HasLocalDestination() {
		if err := s.applyLeg(ctx, dbTx, order, "credit", *order.DestinationCardID, creditAmount); err != nil {
			return nil, err
		}
	}

	order.Status = domain.OrderStatusSettled
	order.SettledAmount = &creditAmount
	order.UpdatedAt = now
	if err := s.orderRepo.Update(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("debited", debitAmount.String()).
		Str("credited", creditAmount.String()).
		Bool("local_destination", order.HasLocalDestination()).
		Msg("order settled")

	return order, nil
}

// applyLeg writes one settlement-side ledger entry and balance update inside
// the caller's transaction, skipping the write when the leg's idempotency
// key already exists.
func (s *ExchangeServiceImpl) applyLeg(ctx context.Context, dbTx pgx.Tx, order *domain.ExchangeOrder, leg string, cardID uuid.UUID, delta decimal.Decimal) error {
	key := domain.BuildSettlementKey(order.ID, leg)
	existing, err := s.ledgerRepo.GetByIdempotencyKey(ctx, dbTx, key)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("%s leg idempotency check: %w", leg, err))
	}
	if existing != nil {
		return nil
	}

	card, err := s.cardRepo.GetByIDForUpdate(ctx, dbTx, cardID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock %s card: %w", leg, err))
	}
	if card == nil {
		return apperror.ErrNotFound(leg + " card")
	}

	newBalance := card.Balance.Add(delta)
	if newBalance.IsNegative() {
		return apperror.ErrInsufficientFunds()
	}

	entry := &domain.LedgerEntry{
		ID:             uuid.New(),
		CardID:         card.ID,
		Delta:          delta,
		Reason:         domain.ReasonExchangeSettlement,
		OrderID:        &order.ID,
		ActorID:        systemActorID,
		IdempotencyKey: &key,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("create %s entry: %w", leg, err))
	}
	if err := s.cardRepo.UpdateBalance(ctx, dbTx, card.ID, newBalance); err != nil {
		return apperror.InternalError(fmt.Errorf("update %s balance: %w", leg, err))
	}
	return nil
}

// failOrder moves the order to FAILED and commits, then surfaces the cause
// as a settlement failure. The failed ledger leg was never written.
func (s *ExchangeServiceImpl) failOrder(ctx context.Context, dbTx pgx.Tx, order *domain.ExchangeOrder, cause error) error {
	order.Status = domain.OrderStatusFailed
	order.UpdatedAt = time.Now().UTC()
	if err := s.orderRepo.Update(ctx, dbTx, order); err != nil {
		return apperror.InternalError(fmt.Errorf("mark order failed: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Warn().
		Str("order_id", order.ID.String()).
		Err(cause).
		Msg("settlement failed, order marked FAILED")

	return apperror.ErrSettlementFailed(cause)
}

// Expire moves a QUOTED order whose quote validity has passed to EXPIRED.
// Nothing is written to the ledger. Expiring an already EXPIRED order is a
// no-op.
func (s *ExchangeServiceImpl) Expire(ctx context.Context, orderID uuid.UUID) (*domain.ExchangeOrder, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.Status == domain.OrderStatusExpired {
		return order, nil
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusExpired) {
		return nil, apperror.ErrInvalidTransition(string(order.Status), string(domain.OrderStatusExpired))
	}
	if time.Now().UTC().Before(order.QuoteExpiresAt) {
		return nil, apperror.ErrInvalidInput("order quote is still valid")
	}

	order.Status = domain.OrderStatusExpired
	order.UpdatedAt = time.Now().UTC()
	if err := s.orderRepo.Update(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("order_id", order.ID.String()).Msg("order expired")
	return order, nil
}

// ExpireStale sweeps QUOTED orders past their quote validity, in batches.
// A single failing order is logged and skipped so the sweep always makes
// progress. Returns the number of orders expired.
func (s *ExchangeServiceImpl) ExpireStale(ctx context.Context) (int, error) {
	ids, err := s.orderRepo.ListExpiredQuoted(ctx, time.Now().UTC(), s.params.ExpirySweepBatch)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list expired orders: %w", err))
	}

	expired := 0
	for _, id := range ids {
		if _, err := s.Expire(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("order_id", id.String()).Msg("expiry sweep: skipping order")
			continue
		}
		expired++
	}

	if expired > 0 {
		s.log.Info().Int("expired", expired).Msg("expiry sweep completed")
	}
	return expired, nil
}
