package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
)

// Tx is one unit of work against the order and product tables.
// Stock writes through the embedded StockStore join the same transaction.
type Tx interface {
	inventory.StockStore

	// FindProducts returns the products that exist among ids, in no particular order.
	FindProducts(ctx context.Context, ids []string) ([]inventory.Product, error)
	InsertOrder(ctx context.Context, o Order) error
	// GetOrderForUpdate reads an order and holds it against concurrent writers until the tx ends.
	GetOrderForUpdate(ctx context.Context, id string) (Order, error)
	GetOrderByExternalID(ctx context.Context, externalID string) (Order, error)
	// UpdateOrderStatus sets status only while it is still from; otherwise ErrStatusConflict.
	UpdateOrderStatus(ctx context.Context, id string, from, to Status, at time.Time) error
	// DeleteOrder removes the order only while its status is still expected.
	DeleteOrder(ctx context.Context, id string, expected Status) error
}

type Store interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetOrder(ctx context.Context, id string) (Order, error)
	GetOrderByExternalID(ctx context.Context, externalID string) (Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, int, error)
	OrderStats(ctx context.Context, recent int) (Stats, error)
	ListProducts(ctx context.Context) ([]inventory.Product, error)
}

// Notification is a best-effort message about an order sent to its customer.
type Notification struct {
	Event     string
	Recipient string
	OrderID   string
	Payload   any
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// StatusCache mirrors order status for fast reads. It is never authoritative.
type StatusCache interface {
	SetStatus(ctx context.Context, orderID string, s Status) error
	Evict(ctx context.Context, orderID string) error
}

// IdempotencyCache shortcuts repeated creates with the same external id.
type IdempotencyCache interface {
	LookupOrder(ctx context.Context, externalID string) (orderID string, found bool, err error)
	RememberOrder(ctx context.Context, externalID, orderID string) error
}

// StatusLookup is a StatusCache that can also be read.
type StatusLookup interface {
	StatusCache
	Status(ctx context.Context, orderID string) (s Status, found bool, err error)
}
