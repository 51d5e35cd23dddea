package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
	"github.com/ariefcatur/storefront-orders/internal/memstore"
	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	admin = orders.Requester{UserID: "admin-1", Role: orders.RoleAdmin, Name: "Ops", Email: "ops@example.com"}
	alice = orders.Requester{UserID: "user-alice", Role: orders.RoleUser, Name: "Alice", Email: "alice@example.com"}
	bob   = orders.Requester{UserID: "user-bob", Role: orders.RoleUser, Name: "Bob", Email: "bob@example.com"}
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []orders.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n orders.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Event)
	}
	return out
}

// mapCache stands in for the Redis cache.
type mapCache struct {
	mu     sync.Mutex
	status map[string]orders.Status
	idem   map[string]string
	reads  int
	err    error
}

func newMapCache() *mapCache {
	return &mapCache{status: map[string]orders.Status{}, idem: map[string]string{}}
}

func (c *mapCache) SetStatus(_ context.Context, id string, s orders.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.status[id] = s
	return nil
}

func (c *mapCache) Evict(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.status, id)
	return nil
}

func (c *mapCache) Status(_ context.Context, id string) (orders.Status, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.err != nil {
		return "", false, c.err
	}
	s, ok := c.status[id]
	return s, ok, nil
}

func (c *mapCache) LookupOrder(_ context.Context, ext string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", false, c.err
	}
	id, ok := c.idem[ext]
	return id, ok, nil
}

func (c *mapCache) RememberOrder(_ context.Context, ext, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.idem[ext] = id
	return nil
}

type fixture struct {
	store     *memstore.Store
	notifier  *recordingNotifier
	cache     *mapCache
	builder   *orders.Builder
	lifecycle *orders.Lifecycle
	queries   *orders.Queries
	ledger    *inventory.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	nt := &recordingNotifier{}
	cache := newMapCache()
	reg := metrics.NewRegistry()
	ledger := &inventory.Ledger{Log: zap.NewNop(), Metrics: reg}

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}

	return &fixture{
		store:    store,
		notifier: nt,
		cache:    cache,
		ledger:   ledger,
		builder: &orders.Builder{
			Store: store, Ledger: ledger, Notifier: nt, Idem: cache,
			Log: zap.NewNop(), Metrics: reg, Now: now,
		},
		lifecycle: &orders.Lifecycle{
			Store: store, Ledger: ledger, Notifier: nt, Cache: cache,
			Log: zap.NewNop(), Metrics: reg, Now: now,
		},
		queries: &orders.Queries{Store: store, Cache: cache, Log: zap.NewNop()},
	}
}

func (f *fixture) product(id, name, price string, stock int) {
	f.store.PutProduct(inventory.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), StockQuantity: stock})
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, ok := f.store.Product(id)
	if !ok {
		t.Fatalf("product %s missing", id)
	}
	if p.InStock != (p.StockQuantity > 0) {
		t.Fatalf("product %s: inStock=%v with quantity %d", id, p.InStock, p.StockQuantity)
	}
	return p.StockQuantity
}

func line(id string, qty int, price string) orders.LineInput {
	return orders.LineInput{ProductID: id, Quantity: qty, Price: decimal.RequireFromString(price)}
}

func input(items ...orders.LineInput) orders.CreateOrderInput {
	return orders.CreateOrderInput{Items: items, PhoneNumber: "+62 811 000", Address: "Jl. Merdeka 1, Bandung"}
}

var errNotifier = errors.New("broker unreachable")
