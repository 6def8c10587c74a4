package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"crypto-card-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Card Repo ---

type inMemoryCardRepo struct {
	mu    sync.RWMutex
	cards map[uuid.UUID]*domain.Card
}

func newInMemoryCardRepo() *inMemoryCardRepo {
	return &inMemoryCardRepo{cards: make(map[uuid.UUID]*domain.Card)}
}

func (r *inMemoryCardRepo) Create(ctx context.Context, card *domain.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r *inMemoryCardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	card, ok := r.cards[id]
	if !ok {
		return nil, nil
	}
	cp := *card
	return &cp, nil
}

func (r *inMemoryCardRepo) GetByOwner(ctx context.Context, ownerID int64) ([]domain.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Card
	for _, card := range r.cards {
		if card.OwnerID == ownerID {
			result = append(result, *card)
		}
	}
	return result, nil
}

func (r *inMemoryCardRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Card, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryCardRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[cardID]
	if !ok {
		return fmt.Errorf("card not found")
	}
	card.Balance = balance
	card.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryCardRepo) SetReceiveAddress(ctx context.Context, cardID uuid.UUID, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[cardID]
	if !ok {
		return fmt.Errorf("card not found")
	}
	if card.ReceiveAddress != nil {
		return fmt.Errorf("receive address already set")
	}
	card.ReceiveAddress = &address
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.IdempotencyKey != nil {
		for _, e := range r.entries {
			if e.IdempotencyKey != nil && *e.IdempotencyKey == *entry.IdempotencyKey {
				return fmt.Errorf("duplicate idempotency key")
			}
		}
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.entries {
		if r.entries[i].IdempotencyKey != nil && *r.entries[i].IdempotencyKey == key {
			cp := r.entries[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryLedgerRepo) ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.CardID == cardID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryLedgerRepo) SumByCard(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range r.entries {
		if e.CardID == cardID {
			sum = sum.Add(e.Delta)
		}
	}
	return sum, nil
}

// --- In-Memory Order Repo ---

type inMemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.ExchangeOrder
}

func newInMemoryOrderRepo() *inMemoryOrderRepo {
	return &inMemoryOrderRepo{orders: make(map[uuid.UUID]*domain.ExchangeOrder)}
}

func (r *inMemoryOrderRepo) Create(ctx context.Context, order *domain.ExchangeOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *inMemoryOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (r *inMemoryOrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ExchangeOrder, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryOrderRepo) Update(ctx context.Context, tx pgx.Tx, order *domain.ExchangeOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return fmt.Errorf("order not found")
	}
	cp := *order
	cp.UpdatedAt = time.Now().UTC()
	r.orders[order.ID] = &cp
	return nil
}

func (r *inMemoryOrderRepo) ListExpiredQuoted(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uuid.UUID
	for id, order := range r.orders {
		if order.Status == domain.OrderStatusQuoted && order.QuoteExpiresAt.Before(cutoff) {
			ids = append(ids, id)
			if limit > 0 && len(ids) >= limit {
				break
			}
		}
	}
	return ids, nil
}

// --- In-Memory Asset Repo ---

type inMemoryAssetRepo struct {
	mu     sync.RWMutex
	assets map[int64]domain.MintedAsset
}

func newInMemoryAssetRepo() *inMemoryAssetRepo {
	return &inMemoryAssetRepo{assets: make(map[int64]domain.MintedAsset)}
}

func (r *inMemoryAssetRepo) insert(assets ...domain.MintedAsset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range assets {
		r.assets[a.ID] = a
	}
}

func (r *inMemoryAssetRepo) ListAll(ctx context.Context) ([]domain.MintedAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.MintedAsset, 0, len(r.assets))
	for _, a := range r.assets {
		result = append(result, a)
	}
	return result, nil
}

func (r *inMemoryAssetRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for _, id := range ids {
		if _, ok := r.assets[id]; ok {
			delete(r.assets, id)
			removed++
		}
	}
	return removed, nil
}

// --- Fixed-Rate Oracle ---

type fixedRateOracle struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

func newFixedRateOracle() *fixedRateOracle {
	return &fixedRateOracle{rates: make(map[string]decimal.Decimal)}
}

func (o *fixedRateOracle) setRate(from, to domain.CurrencyKind, rate decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rates[string(from)+"/"+string(to)] = rate
}

func (o *fixedRateOracle) GetRate(ctx context.Context, from, to domain.CurrencyKind) (decimal.Decimal, time.Time, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rate, ok := o.rates[string(from)+"/"+string(to)]
	if !ok {
		return decimal.Zero, time.Time{}, fmt.Errorf("no rate for %s/%s", from, to)
	}
	return rate, time.Now().UTC(), nil
}

// --- Serializing Transactor ---

// serialTransactor hands out transactions that hold a single shared mutex
// from Begin until Commit or Rollback. In-memory maps have no row-level
// locks, so this stands in for the lock-then-mutate discipline the real
// postgres adapter gets from SELECT FOR UPDATE.
type serialTransactor struct {
	mu sync.Mutex
}

func newSerialTransactor() *serialTransactor {
	return &serialTransactor{}
}

func (t *serialTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serialTx{release: &t.mu}, nil
}

// serialTx is a pgx.Tx that only tracks the lock lifetime. The first
// Commit or Rollback releases; later calls are no-ops.
type serialTx struct {
	release *sync.Mutex
	done    bool
	mu      sync.Mutex
}

func (t *serialTx) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.done {
		t.done = true
		t.release.Unlock()
	}
}

func (t *serialTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serialTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *serialTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *serialTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serialTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serialTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serialTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serialTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serialTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serialTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serialTx) Conn() *pgx.Conn { return nil }
