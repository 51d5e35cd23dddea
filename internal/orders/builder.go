package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Builder turns a submitted cart into a persisted order with its stock reserved.
type Builder struct {
	Store    Store
	Ledger   *inventory.Ledger
	Notifier Notifier
	Idem     IdempotencyCache
	Log      *zap.Logger
	Metrics  *metrics.Registry
	Now      func() time.Time
	NewID    func() string
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}

func (b *Builder) newID() string {
	if b.NewID != nil {
		return b.NewID()
	}
	return uuid.NewString()
}

// Create validates the request against live inventory and, in one transaction,
// persists the order and reserves stock for every item. Either all of it commits or none.
func (b *Builder) Create(ctx context.Context, req Requester, in CreateOrderInput) (CreateResult, error) {
	log := nopIfNil(b.Log)
	if !req.Authenticated() {
		b.Metrics.OrderRejected(reason(ErrUnauthorized))
		return CreateResult{}, ErrUnauthorized
	}
	lines, err := mergeLines(in.Items)
	if err == nil {
		err = checkContact(in)
	}
	if err != nil {
		b.Metrics.OrderRejected(reason(err))
		return CreateResult{}, err
	}

	if in.ExternalID != "" {
		o, ok, err := b.cachedReplay(ctx, req, in.ExternalID, log)
		if err != nil {
			b.Metrics.OrderRejected(reason(err))
			return CreateResult{}, fmt.Errorf("create order: %w", err)
		}
		if ok {
			return CreateResult{Order: o, Message: ConfirmationMessage, Idempotent: true}, nil
		}
	}

	var (
		order  Order
		replay bool
	)
	err = b.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if in.ExternalID != "" {
			existing, err := tx.GetOrderByExternalID(ctx, in.ExternalID)
			if err == nil {
				if existing.UserID != req.UserID {
					return ErrDuplicateExternalID
				}
				order, replay = existing, true
				return nil
			}
			if !errors.Is(err, ErrOrderNotFound) {
				return err
			}
		}

		ids := make([]string, 0, len(lines))
		for _, ln := range lines {
			ids = append(ids, ln.ProductID)
		}
		products, err := tx.FindProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("find products: %w", err)
		}
		items, err := priceLines(lines, products)
		if err != nil {
			return err
		}

		now := b.now()
		order = Order{
			ID:         b.newID(),
			ExternalID: in.ExternalID,
			UserID:     req.UserID,
			Status:     StatusNew,
			Items:      items,
			Total:      ItemsTotal(items),
			Contact: Contact{
				CustomerName: req.Name,
				Email:        req.Email,
				PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
				Address:      strings.TrimSpace(in.Address),
				Notes:        strings.TrimSpace(in.Notes),
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return b.Ledger.ReserveAll(ctx, tx, order.Lines())
	})

	// Lost a race with a concurrent create carrying the same external id.
	// Only the owner of that order gets it back.
	if errors.Is(err, ErrDuplicateExternalID) {
		existing, gerr := b.Store.GetOrderByExternalID(ctx, in.ExternalID)
		if gerr == nil && existing.UserID == req.UserID {
			order, replay, err = existing, true, nil
		}
	}
	if err != nil {
		b.Metrics.OrderRejected(reason(err))
		if reason(err) == "error" {
			log.Error("create order failed", zap.String("user_id", req.UserID), zap.Error(err))
		}
		return CreateResult{}, fmt.Errorf("create order: %w", err)
	}

	if in.ExternalID != "" && b.Idem != nil {
		if err := b.Idem.RememberOrder(ctx, in.ExternalID, order.ID); err != nil {
			log.Warn("idempotency cache write failed", zap.String("external_id", in.ExternalID), zap.Error(err))
		}
	}
	if replay {
		return CreateResult{Order: order, Message: ConfirmationMessage, Idempotent: true}, nil
	}

	b.Metrics.OrderCreated()
	log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)))
	notifyBestEffort(ctx, b.Notifier, Notification{
		Event:     EventOrderCreated,
		Recipient: order.Email,
		OrderID:   order.ID,
		Payload:   createdPayload(order),
	}, log, b.Metrics)

	return CreateResult{Order: order, Message: ConfirmationMessage}, nil
}

// cachedReplay returns the order a previous create stored under externalID.
// A key held by another user's order is ErrDuplicateExternalID.
func (b *Builder) cachedReplay(ctx context.Context, req Requester, externalID string, log *zap.Logger) (Order, bool, error) {
	if b.Idem == nil {
		return Order{}, false, nil
	}
	orderID, found, err := b.Idem.LookupOrder(ctx, externalID)
	if err != nil {
		log.Warn("idempotency cache read failed", zap.String("external_id", externalID), zap.Error(err))
		return Order{}, false, nil
	}
	if !found {
		return Order{}, false, nil
	}
	o, err := b.Store.GetOrder(ctx, orderID)
	if err != nil || o.ExternalID != externalID {
		// Stale shortcut; the database decides.
		return Order{}, false, nil
	}
	if o.UserID != req.UserID {
		return Order{}, false, ErrDuplicateExternalID
	}
	return o, true, nil
}

// mergeLines validates quantities and collapses repeated products into one line.
func mergeLines(in []LineInput) ([]LineInput, error) {
	if len(in) == 0 {
		return nil, invalidf("order must contain at least one item")
	}
	out := make([]LineInput, 0, len(in))
	index := make(map[string]int, len(in))
	for _, it := range in {
		id := strings.TrimSpace(it.ProductID)
		switch {
		case id == "":
			return nil, invalidf("item without product id")
		case it.Quantity < 1:
			return nil, invalidf("quantity for product %s must be at least 1", id)
		case it.Price.IsNegative():
			return nil, invalidf("price for product %s must not be negative", id)
		}
		if i, ok := index[id]; ok {
			if !out[i].Price.Equal(it.Price) {
				return nil, invalidf("conflicting prices for product %s", id)
			}
			out[i].Quantity += it.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, LineInput{ProductID: id, Quantity: it.Quantity, Price: it.Price})
	}
	return out, nil
}

func checkContact(in CreateOrderInput) error {
	if strings.TrimSpace(in.PhoneNumber) == "" {
		return invalidf("phone number is required")
	}
	if strings.TrimSpace(in.Address) == "" {
		return invalidf("address is required")
	}
	return nil
}

// priceLines checks availability, stock and submitted prices, in that order,
// and snapshots the authoritative price on each item.
func priceLines(lines []LineInput, products []inventory.Product) ([]OrderItem, error) {
	byID := make(map[string]inventory.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var missing []string
	for _, ln := range lines {
		if p, ok := byID[ln.ProductID]; !ok || !p.InStock {
			missing = append(missing, ln.ProductID)
		}
	}
	if len(missing) > 0 {
		return nil, &UnavailableError{ProductIDs: missing}
	}

	for _, ln := range lines {
		p := byID[ln.ProductID]
		if p.StockQuantity < ln.Quantity {
			return nil, &inventory.ShortageError{ProductID: p.ID, Name: p.Name, Available: p.StockQuantity, Requested: ln.Quantity}
		}
	}

	items := make([]OrderItem, 0, len(lines))
	for _, ln := range lines {
		p := byID[ln.ProductID]
		if !p.Price.Equal(ln.Price) {
			return nil, &PriceMismatchError{ProductID: p.ID, Name: p.Name, Submitted: ln.Price, Current: p.Price}
		}
		items = append(items, OrderItem{ProductID: p.ID, ProductName: p.Name, Quantity: ln.Quantity, Price: p.Price})
	}
	return items, nil
}

// reason labels an error for the rejection counter.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrProductsUnavailable):
		return "products_unavailable"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrPriceMismatch):
		return "price_mismatch"
	case errors.Is(err, inventory.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrDuplicateExternalID):
		return "duplicate_key"
	default:
		return "error"
	}
}
