package orders_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placed(t *testing.T, f *fixture, qty int) orders.Order {
	t.Helper()
	res, err := f.builder.Create(context.Background(), alice, input(line("p", qty, "12.50")))
	require.NoError(t, err)
	return res.Order
}

func TestCancelAndUncancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product("p", "Kettle", "12.50", 5)
	o := placed(t, f, 3)
	require.Equal(t, 2, f.stock(t, "p"))

	got, err := f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, 5, f.stock(t, "p"))

	got, err = f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusNew)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusNew, got.Status)
	assert.Equal(t, 2, f.stock(t, "p"))
}

func TestUncancelWithoutStockKeepsOrderCancelled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product("p", "Kettle", "12.50", 5)
	o := placed(t, f, 3)

	_, err := f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusCancelled)
	require.NoError(t, err)
	f.store.SetStock("p", 1)

	_, err = f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusNew)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	cur, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cur.Status)
	assert.Equal(t, 1, f.stock(t, "p"))
}

func TestStatusChangesWithoutStockEffect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product("p", "Kettle", "12.50", 5)
	o := placed(t, f, 2)

	for _, s := range []orders.Status{orders.StatusContacted, orders.StatusPaymentConfirmed, orders.StatusDelivered, orders.StatusNew, orders.StatusNew} {
		_, err := f.lifecycle.ChangeStatus(ctx, admin, o.ID, s)
		require.NoError(t, err, s)
		assert.Equal(t, 3, f.stock(t, "p"), s)
	}
}

func TestCancelTwiceRestoresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product("p", "Kettle", "12.50", 5)
	o := placed(t, f, 2)

	for i := 0; i < 2; i++ {
		_, err := f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusCancelled)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, f.stock(t, "p"))
}

func TestChangeStatusNotifiesCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product("p", "Kettle", "12.50", 5)
	o := placed(t, f, 1)

	_, err := f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusContacted)
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 2)
	n := f.notifier.sent[1]
	assert.Equal(t, orders.EventOrderStatusChanged, n.Event)
	assert.Equal(t, "alice@example.com", n.Recipient)
	p := n.Payload.(orders.OrderStatusChangedPayload)
	assert.Equal(t, orders.StatusNew, p.PrevStatus)
	assert.Equal(t, orders.StatusContacted, p.NewStatus)
	_, cached := f.cache.status[o.ID]
	assert.False(t, cached)
}

func TestChangeStatusDropsCachedStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product("p", "Kettle", "12.50", 5)
	o := placed(t, f, 1)

	_, err := f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusContacted)
	require.NoError(t, err)
	s, err := f.queries.Status(ctx, admin, o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusContacted, s)
	require.Equal(t, orders.StatusContacted, f.cache.status[o.ID])

	// Two changes in a row: the cache must never hold the older one.
	_, err = f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusPaymentConfirmed)
	require.NoError(t, err)
	_, err = f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusDelivered)
	require.NoError(t, err)

	s, err = f.queries.Status(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, s)
}

func TestChangeStatusSurvivesNotifierFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product("p", "Kettle", "12.50", 5)
	o := placed(t, f, 1)
	f.notifier.err = errNotifier

	got, err := f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, got.Status)
}

func TestChangeStatusRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product("p", "Kettle", "12.50", 5)
	o := placed(t, f, 1)

	_, err := f.lifecycle.ChangeStatus(ctx, alice, o.ID, orders.StatusCancelled)
	assert.ErrorIs(t, err, orders.ErrUnauthorized)

	_, err = f.lifecycle.ChangeStatus(ctx, admin, o.ID, "SHIPPED")
	assert.ErrorIs(t, err, orders.ErrValidation)

	_, err = f.lifecycle.ChangeStatus(ctx, admin, "missing", orders.StatusCancelled)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	assert.Equal(t, 4, f.stock(t, "p"))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("open order gives stock back", func(t *testing.T) {
		f := newFixture(t)
		f.product("p", "Kettle", "12.50", 5)
		o := placed(t, f, 3)

		require.NoError(t, f.lifecycle.Delete(ctx, admin, o.ID))
		assert.Equal(t, 5, f.stock(t, "p"))
		assert.Zero(t, f.store.OrderCount())
		_, cached := f.cache.status[o.ID]
		assert.False(t, cached)
	})

	t.Run("cancelled order does not restore twice", func(t *testing.T) {
		f := newFixture(t)
		f.product("p", "Kettle", "12.50", 5)
		o := placed(t, f, 3)
		_, err := f.lifecycle.ChangeStatus(ctx, admin, o.ID, orders.StatusCancelled)
		require.NoError(t, err)

		require.NoError(t, f.lifecycle.Delete(ctx, admin, o.ID))
		assert.Equal(t, 5, f.stock(t, "p"))
	})

	for _, s := range []orders.Status{orders.StatusDelivered, orders.StatusPaymentConfirmed} {
		t.Run("refuses "+string(s), func(t *testing.T) {
			f := newFixture(t)
			f.product("p", "Kettle", "12.50", 5)
			o := placed(t, f, 3)
			_, err := f.lifecycle.ChangeStatus(ctx, admin, o.ID, s)
			require.NoError(t, err)

			err = f.lifecycle.Delete(ctx, admin, o.ID)
			require.ErrorIs(t, err, orders.ErrInvalidState)
			assert.Equal(t, 2, f.stock(t, "p"))
			assert.Equal(t, 1, f.store.OrderCount())
		})
	}

	t.Run("admin only", func(t *testing.T) {
		f := newFixture(t)
		f.product("p", "Kettle", "12.50", 5)
		o := placed(t, f, 1)
		assert.ErrorIs(t, f.lifecycle.Delete(ctx, alice, o.ID), orders.ErrUnauthorized)
		assert.ErrorIs(t, f.lifecycle.Delete(ctx, admin, "missing"), orders.ErrOrderNotFound)
	})
}
