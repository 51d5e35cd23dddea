package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStock applies the same guard as the SQL stores.
type mapStock struct {
	rows  map[string]Product
	calls []string
	fail  error
}

func newMapStock(ps ...Product) *mapStock {
	m := &mapStock{rows: map[string]Product{}}
	for _, p := range ps {
		m.rows[p.ID] = p.WithStock(p.StockQuantity)
	}
	return m
}

func (m *mapStock) DecrementStock(_ context.Context, id string, qty int) (Product, bool, error) {
	m.calls = append(m.calls, "dec:"+id)
	if m.fail != nil {
		return Product{}, false, m.fail
	}
	p, ok := m.rows[id]
	if !ok {
		return Product{}, false, ErrProductNotFound
	}
	if p.StockQuantity < qty {
		return p, false, nil
	}
	p = p.WithStock(p.StockQuantity - qty)
	m.rows[id] = p
	return p, true, nil
}

func (m *mapStock) IncrementStock(_ context.Context, id string, qty int) (Product, error) {
	m.calls = append(m.calls, "inc:"+id)
	p, ok := m.rows[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	p = p.WithStock(p.StockQuantity + qty)
	m.rows[id] = p
	return p, nil
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements and keeps in stock flag", func(t *testing.T) {
		s := newMapStock(Product{ID: "p1", Name: "Mug", StockQuantity: 5})
		p, err := (&Ledger{}).Reserve(ctx, s, "p1", 3)
		require.NoError(t, err)
		assert.Equal(t, 2, p.StockQuantity)
		assert.True(t, p.InStock)
	})

	t.Run("last unit flips in stock off", func(t *testing.T) {
		s := newMapStock(Product{ID: "p1", Name: "Mug", StockQuantity: 1})
		p, err := (&Ledger{}).Reserve(ctx, s, "p1", 1)
		require.NoError(t, err)
		assert.Equal(t, 0, p.StockQuantity)
		assert.False(t, p.InStock)
	})

	t.Run("shortage leaves stock untouched", func(t *testing.T) {
		s := newMapStock(Product{ID: "p1", Name: "Mug", StockQuantity: 2})
		_, err := (&Ledger{}).Reserve(ctx, s, "p1", 3)
		require.ErrorIs(t, err, ErrInsufficientStock)

		var se *ShortageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 2, se.Available)
		assert.Equal(t, 3, se.Requested)
		assert.Equal(t, "insufficient stock for product Mug: available 2, requested 3", err.Error())
		assert.Equal(t, 2, s.rows["p1"].StockQuantity)
	})

	t.Run("quantity below one", func(t *testing.T) {
		s := newMapStock(Product{ID: "p1", StockQuantity: 2})
		for _, q := range []int{0, -4} {
			_, err := (&Ledger{}).Reserve(ctx, s, "p1", q)
			assert.ErrorIs(t, err, ErrInvalidQuantity)
		}
		assert.Empty(t, s.calls)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := (&Ledger{}).Reserve(ctx, newMapStock(), "nope", 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		boom := errors.New("connection reset")
		s := newMapStock(Product{ID: "p1", StockQuantity: 2})
		s.fail = boom
		_, err := (&Ledger{Metrics: metrics.NewRegistry()}).Reserve(ctx, s, "p1", 1)
		assert.ErrorIs(t, err, boom)
	})
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	s := newMapStock(Product{ID: "p1", StockQuantity: 0})

	p, err := (&Ledger{}).Restore(ctx, s, "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.StockQuantity)
	assert.True(t, p.InStock)

	_, err = (&Ledger{}).Restore(ctx, s, "p1", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReserveAllLocksInProductOrder(t *testing.T) {
	s := newMapStock(
		Product{ID: "c", StockQuantity: 1},
		Product{ID: "a", StockQuantity: 1},
		Product{ID: "b", StockQuantity: 1},
	)
	lines := []Line{{ProductID: "c", Qty: 1}, {ProductID: "a", Qty: 1}, {ProductID: "b", Qty: 1}}

	require.NoError(t, (&Ledger{}).ReserveAll(context.Background(), s, lines))
	assert.Equal(t, []string{"dec:a", "dec:b", "dec:c"}, s.calls)
	assert.Equal(t, "c", lines[0].ProductID, "input must not be reordered")

	require.NoError(t, (&Ledger{}).RestoreAll(context.Background(), s, lines))
	assert.Equal(t, []string{"dec:a", "dec:b", "dec:c", "inc:a", "inc:b", "inc:c"}, s.calls)
}

func TestReserveAllStopsAtFirstShortage(t *testing.T) {
	s := newMapStock(Product{ID: "a", StockQuantity: 5}, Product{ID: "b", StockQuantity: 0})
	err := (&Ledger{}).ReserveAll(context.Background(), s, []Line{{ProductID: "b", Qty: 1}, {ProductID: "a", Qty: 1}})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	// a was reserved before b failed; undoing it is the enclosing transaction's job.
	assert.Equal(t, 4, s.rows["a"].StockQuantity)
}
