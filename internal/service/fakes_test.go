package service

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

type fakeCardRepo struct {
	mu    sync.RWMutex
	cards map[uuid.UUID]*domain.Card
}

func newFakeCardRepo() *fakeCardRepo {
	return &fakeCardRepo{cards: make(map[uuid.UUID]*domain.Card)}
}

func (r *fakeCardRepo) Create(ctx context.Context, card *domain.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[card.ID] = card
	return nil
}

func (r *fakeCardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cards[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCardRepo) GetByOwner(ctx context.Context, ownerID int64) ([]domain.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Card
	for _, c := range r.cards {
		if c.OwnerID == ownerID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (r *fakeCardRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Card, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeCardRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[cardID]
	if !ok {
		return fmt.Errorf("card not found")
	}
	c.Balance = balance
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeCardRepo) SetReceiveAddress(ctx context.Context, cardID uuid.UUID, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[cardID]
	if !ok {
		return fmt.Errorf("card not found")
	}
	if c.ReceiveAddress != nil {
		return fmt.Errorf("receive address already set")
	}
	c.ReceiveAddress = &address
	return nil
}

// --- In-Memory Ledger Repo ---

type fakeLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
	byKey   map[string]*domain.LedgerEntry
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{byKey: make(map[string]*domain.LedgerEntry)}
}

func (r *fakeLedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.IdempotencyKey != nil {
		if _, exists := r.byKey[*entry.IdempotencyKey]; exists {
			return fmt.Errorf("duplicate idempotency key")
		}
	}
	r.entries = append(r.entries, *entry)
	if entry.IdempotencyKey != nil {
		stored := r.entries[len(r.entries)-1]
		r.byKey[*entry.IdempotencyKey] = &stored
	}
	return nil
}

func (r *fakeLedgerRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *fakeLedgerRepo) ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for i := len(r.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if r.entries[i].CardID == cardID {
			result = append(result, r.entries[i])
		}
	}
	return result, nil
}

func (r *fakeLedgerRepo) SumByCard(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error) {
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

type fakeOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.ExchangeOrder
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*domain.ExchangeOrder)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *domain.ExchangeOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExchangeOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ExchangeOrder, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) Update(ctx context.Context, tx pgx.Tx, order *domain.ExchangeOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return fmt.Errorf("order not found")
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) ListExpiredQuoted(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uuid.UUID
	for _, o := range r.orders {
		if o.Status == domain.OrderStatusQuoted && o.QuoteExpiresAt.Before(cutoff) {
			ids = append(ids, o.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// --- In-Memory Asset Repo ---

// fakeAssetRepo supports failure injection: deleteFailures makes the next N
// DeleteByIDs calls fail, to exercise retry behavior.
type fakeAssetRepo struct {
	mu             sync.Mutex
	assets         map[int64]domain.MintedAsset
	deleteFailures int
	deleteCalls    int
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{assets: make(map[int64]domain.MintedAsset)}
}

func (r *fakeAssetRepo) add(a domain.MintedAsset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[a.ID] = a
}

func (r *fakeAssetRepo) ListAll(ctx context.Context) ([]domain.MintedAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.MintedAsset, 0, len(r.assets))
	for _, a := range r.assets {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeAssetRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	if r.deleteFailures > 0 {
		r.deleteFailures--
		return 0, fmt.Errorf("simulated delete failure")
	}
	var removed int64
	for _, id := range ids {
		if _, ok := r.assets[id]; ok {
			delete(r.assets, id)
			removed++
		}
	}
	return removed, nil
}

// --- In-Memory Quote Cache ---

type fakeQuoteCache struct {
	mu       sync.RWMutex
	quotes   map[uuid.UUID]*domain.Quote
	expiries map[uuid.UUID]time.Time
}

func newFakeQuoteCache() *fakeQuoteCache {
	return &fakeQuoteCache{
		quotes:   make(map[uuid.UUID]*domain.Quote),
		expiries: make(map[uuid.UUID]time.Time),
	}
}

func (c *fakeQuoteCache) Put(ctx context.Context, quote *domain.Quote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *quote
	c.quotes[quote.ID] = &cp
	c.expiries[quote.ID] = time.Now().Add(ttl)
	return nil
}

func (c *fakeQuoteCache) Get(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[id]
	if !ok || time.Now().After(c.expiries[id]) {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (c *fakeQuoteCache) evict(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.quotes, id)
	delete(c.expiries, id)
}

// --- Fake Rate Oracle ---

type fakeRateOracle struct {
	mu   sync.Mutex
	rate decimal.Decimal
	err  error
}

func newFakeRateOracle(rate string) *fakeRateOracle {
	return &fakeRateOracle{rate: decimal.RequireFromString(rate)}
}

func (o *fakeRateOracle) setRate(rate string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rate = decimal.RequireFromString(rate)
}

func (o *fakeRateOracle) setErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *fakeRateOracle) GetRate(ctx context.Context, from, to domain.CurrencyKind) (decimal.Decimal, time.Time, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return decimal.Zero, time.Time{}, o.err
	}
	return o.rate, time.Now().UTC(), nil
}

// --- Serializing Transactor ---

// fakeTransactor hands out transactions that hold one shared mutex from
// Begin to Commit or Rollback, mirroring the serialization a row lock
// provides in the real database.
type fakeTransactor struct {
	mu sync.Mutex
}

func newFakeTransactor() *fakeTransactor {
	return &fakeTransactor{}
}

func (t *fakeTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &lockedTx{release: &t.mu}, nil
}

// lockedTx is a pgx.Tx that releases its transactor's mutex exactly once,
// on the first Commit or Rollback.
type lockedTx struct {
	release *sync.Mutex
	done    bool
	mu      sync.Mutex
}

func (t *lockedTx) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.done {
		t.done = true
		t.release.Unlock()
	}
}

func (t *lockedTx) Commit(ctx context.Context) error   { t.finish(); return nil }
func (t *lockedTx) Rollback(ctx context.Context) error { t.finish(); return nil }

func (t *lockedTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *lockedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *lockedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockedTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *lockedTx) Conn() *pgx.Conn                                               { return nil }

// --- Fake Address Deriver ---

type fakeAddressDeriver struct{}

func (fakeAddressDeriver) Derive(userID int64, currency domain.CurrencyKind) (string, error) {
	return fmt.Sprintf("%s-addr-%d", currency, userID), nil
}
