// Package memstore is an in-process orders.Store for local runs and tests.
// Transactions are serialised by one mutex and commit by swapping a copied snapshot.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/shopspring/decimal"
)

type state struct {
	products map[string]inventory.Product
	orders   map[string]orders.Order
	external map[string]string // external_id -> order id
}

func (s state) clone() state {
	c := state{
		products: make(map[string]inventory.Product, len(s.products)),
		orders:   make(map[string]orders.Order, len(s.orders)),
		external: make(map[string]string, len(s.external)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.external {
		c.external[k] = v
	}
	return c
}

func copyOrder(o orders.Order) orders.Order {
	items := make([]orders.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

type Store struct {
	mu sync.Mutex
	st state
}

func New() *Store {
	return &Store{st: state{
		products: map[string]inventory.Product{},
		orders:   map[string]orders.Order{},
		external: map[string]string{},
	}}
}

// PutProduct inserts or replaces a catalogue entry. InStock is derived from the quantity.
func (s *Store) PutProduct(p inventory.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	s.st.products[p.ID] = p.WithStock(p.StockQuantity)
}

// Product returns the committed row for id.
func (s *Store) Product(id string) (inventory.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

// SetStock overwrites a product's quantity outside any order flow, as a catalogue edit would.
func (s *Store) SetStock(id string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.st.products[id]; ok {
		s.st.products[id] = p.WithStock(qty)
	}
}

// OrderCount reports how many orders are committed.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{st: s.st.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) GetOrderByExternalID(_ context.Context, externalID string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.byExternal(externalID)
}

func (st state) byExternal(externalID string) (orders.Order, error) {
	id, ok := st.external[externalID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return copyOrder(st.orders[id]), nil
}

func (s *Store) ListOrders(_ context.Context, f orders.ListFilter) ([]orders.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var match []orders.Order
	for _, o := range s.st.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Search != "" && !matches(o, f.Search) {
			continue
		}
		match = append(match, copyOrder(o))
	}
	sortOrders(match, f.SortBy, f.SortOrder == "asc")

	total := len(match)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return match[start:end], total, nil
}

func matches(o orders.Order, q string) bool {
	q = strings.ToLower(q)
	for _, field := range []string{o.CustomerName, o.Email, o.PhoneNumber, o.Address} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// sortOrders orders by the sort column, then by ascending id as the SQL store does.
func sortOrders(list []orders.Order, by string, asc bool) {
	column := func(a, b orders.Order) int {
		switch by {
		case "updatedAt":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "total":
			return a.Total.Cmp(b.Total)
		case "status":
			return strings.Compare(string(a.Status), string(b.Status))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		c := column(list[i], list[j])
		if !asc {
			c = -c
		}
		if c == 0 {
			return list[i].ID < list[j].ID
		}
		return c < 0
	})
}

func (s *Store) OrderStats(_ context.Context, recent int) (orders.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := orders.Stats{TotalRevenue: decimal.Zero}
	counts := map[orders.Status]int{}
	all := make([]orders.Order, 0, len(s.st.orders))
	for _, o := range s.st.orders {
		st.TotalOrders++
		counts[o.Status]++
		if o.Status == orders.StatusDelivered {
			st.TotalRevenue = st.TotalRevenue.Add(o.Total)
		}
		all = append(all, copyOrder(o))
	}
	for _, status := range orders.AllStatuses {
		if n := counts[status]; n > 0 {
			st.OrdersByStatus = append(st.OrdersByStatus, orders.StatusCount{Status: status, Count: n})
		}
	}
	sortOrders(all, "createdAt", false)
	if len(all) > recent {
		all = all[:recent]
	}
	st.RecentOrders = all
	return st, nil
}

func (s *Store) ListProducts(_ context.Context) ([]inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// memTx works on a private copy of the state; the store swaps it in on commit.
type memTx struct {
	st state
}

func (t *memTx) DecrementStock(_ context.Context, productID string, qty int) (inventory.Product, bool, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return inventory.Product{}, false, inventory.ErrProductNotFound
	}
	if p.StockQuantity < qty {
		return p, false, nil
	}
	p = p.WithStock(p.StockQuantity - qty)
	p.UpdatedAt = time.Now().UTC()
	t.st.products[productID] = p
	return p, true, nil
}

func (t *memTx) IncrementStock(_ context.Context, productID string, qty int) (inventory.Product, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	p = p.WithStock(p.StockQuantity + qty)
	p.UpdatedAt = time.Now().UTC()
	t.st.products[productID] = p
	return p, nil
}

func (t *memTx) FindProducts(_ context.Context, ids []string) ([]inventory.Product, error) {
	out := make([]inventory.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memTx) InsertOrder(_ context.Context, o orders.Order) error {
	if o.ExternalID != "" {
		if _, taken := t.st.external[o.ExternalID]; taken {
			return orders.ErrDuplicateExternalID
		}
		t.st.external[o.ExternalID] = o.ID
	}
	t.st.orders[o.ID] = copyOrder(o)
	return nil
}

func (t *memTx) GetOrderForUpdate(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (t *memTx) GetOrderByExternalID(_ context.Context, externalID string) (orders.Order, error) {
	return t.st.byExternal(externalID)
}

func (t *memTx) UpdateOrderStatus(_ context.Context, id string, from, to orders.Status, at time.Time) error {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if o.Status != from {
		return orders.ErrStatusConflict
	}
	o.Status, o.UpdatedAt = to, at
	t.st.orders[id] = o
	return nil
}

func (t *memTx) DeleteOrder(_ context.Context, id string, expected orders.Status) error {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if o.Status != expected {
		return orders.ErrStatusConflict
	}
	delete(t.st.orders, id)
	if o.ExternalID != "" {
		delete(t.st.external, o.ExternalID)
	}
	return nil
}
