package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// Cache keeps the idempotency shortcuts and status mirror in Redis.
// Postgres stays the source of truth for both.
type Cache struct {
	RDB *redis.Client
	Now func() time.Time
}

type cachedStatus struct {
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Cache) LookupOrder(ctx context.Context, externalID string) (string, bool, error) {
	id, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (c *Cache) RememberOrder(ctx context.Context, externalID, orderID string) error {
	return c.RDB.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, externalID), orderID, TTLIdempotency).Err()
}

func (c *Cache) SetStatus(ctx context.Context, orderID string, s orders.Status) error {
	b, err := json.Marshal(cachedStatus{Status: s, UpdatedAt: c.now()})
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

// Status returns the cached status, found=false on a miss.
func (c *Cache) Status(ctx context.Context, orderID string) (orders.Status, bool, error) {
	raw, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var cs cachedStatus
	if err := json.Unmarshal(raw, &cs); err != nil {
		return "", false, err
	}
	return cs.Status, true, nil
}

func (c *Cache) Evict(ctx context.Context, orderID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}

// FirstSeen claims an event id for a consumer. It returns false when the id was already claimed.
func (c *Cache) FirstSeen(ctx context.Context, service, eventID string) (bool, error) {
	return c.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// Forget releases a claim so a failed event can be processed again.
func (c *Cache) Forget(ctx context.Context, service, eventID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}
