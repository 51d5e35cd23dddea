package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return &Cache{RDB: rdb}, mr
}

func TestIdempotencyShortcut(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	_, found, err := c.LookupOrder(ctx, "ext-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.RememberOrder(ctx, "ext-1", "order-1"))
	id, found, err := c.LookupOrder(ctx, "ext-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "order-1", id)

	mr.FastForward(TTLIdempotency + time.Second)
	_, found, err = c.LookupOrder(ctx, "ext-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStatusCacheRoundTripAndEvict(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetStatus(ctx, "o1", orders.StatusCancelled))
	s, found, err := c.Status(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, orders.StatusCancelled, s)
	assert.Equal(t, TTLStatusCache, mr.TTL("order_status:o1"))

	require.NoError(t, c.Evict(ctx, "o1"))
	_, found, err = c.Status(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFirstSeenDedups(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	first, err := c.FirstSeen(ctx, "notifier", "ev-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := c.FirstSeen(ctx, "notifier", "ev-1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, c.Forget(ctx, "notifier", "ev-1"))
	retry, err := c.FirstSeen(ctx, "notifier", "ev-1")
	require.NoError(t, err)
	assert.True(t, retry)
}
