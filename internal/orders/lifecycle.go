package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"go.uber.org/zap"
)

// Lifecycle drives admin status changes and deletions together with their stock effects.
type Lifecycle struct {
	Store    Store
	Ledger   *inventory.Ledger
	Notifier Notifier
	Cache    StatusCache
	Log      *zap.Logger
	Metrics  *metrics.Registry
	Now      func() time.Time
}

func (m *Lifecycle) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

// ChangeStatus moves an order to next. The stock effect from the transition table
// and the conditional status write share one transaction, so a failed
// re-reservation leaves the order CANCELLED and stock untouched.
func (m *Lifecycle) ChangeStatus(ctx context.Context, req Requester, orderID string, next Status) (Order, error) {
	log := nopIfNil(m.Log)
	if err := requireAdmin(req); err != nil {
		return Order{}, err
	}
	if !next.Valid() {
		return Order{}, invalidf("unknown status %q", next)
	}

	var (
		prev    Status
		updated Order
	)
	err := m.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		effect, err := EffectOf(o.Status, next)
		if err != nil {
			return err
		}
		if err := m.apply(ctx, tx, effect, o); err != nil {
			return err
		}
		now := m.now()
		if err := tx.UpdateOrderStatus(ctx, o.ID, o.Status, next, now); err != nil {
			return err
		}
		prev = o.Status
		o.Status, o.UpdatedAt = next, now
		updated = o
		return nil
	})
	if err != nil {
		return Order{}, fmt.Errorf("change status of order %s: %w", orderID, err)
	}

	m.Metrics.StatusChanged(string(prev), string(next))
	log.Info("order status changed",
		zap.String("order_id", updated.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.String("by", req.UserID))
	// Evict rather than write: writes after commit can land out of order.
	// The next read refills from the store.
	if m.Cache != nil {
		if err := m.Cache.Evict(ctx, updated.ID); err != nil {
			log.Warn("status cache evict failed", zap.String("order_id", updated.ID), zap.Error(err))
		}
	}
	notifyBestEffort(ctx, m.Notifier, Notification{
		Event:     EventOrderStatusChanged,
		Recipient: updated.Email,
		OrderID:   updated.ID,
		Payload: OrderStatusChangedPayload{
			OrderID:      updated.ID,
			CustomerName: updated.CustomerName,
			Recipient:    updated.Email,
			PrevStatus:   prev,
			NewStatus:    next,
		},
	}, log, m.Metrics)
	return updated, nil
}

// Delete removes an order that is not in a financial state, giving back any stock it holds.
func (m *Lifecycle) Delete(ctx context.Context, req Requester, orderID string) error {
	log := nopIfNil(m.Log)
	if err := requireAdmin(req); err != nil {
		return err
	}

	var status Status
	err := m.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanDelete(o.Status) {
			return fmt.Errorf("%w: cannot delete orders that are already delivered or payment confirmed", ErrInvalidState)
		}
		if HoldsReservation(o.Status) {
			if err := m.Ledger.RestoreAll(ctx, tx, o.Lines()); err != nil {
				return err
			}
		}
		status = o.Status
		return tx.DeleteOrder(ctx, o.ID, o.Status)
	})
	if err != nil {
		return fmt.Errorf("delete order %s: %w", orderID, err)
	}

	m.Metrics.OrderDeleted()
	log.Info("order deleted",
		zap.String("order_id", orderID),
		zap.String("status", string(status)),
		zap.String("by", req.UserID))
	if m.Cache != nil {
		if err := m.Cache.Evict(ctx, orderID); err != nil {
			log.Warn("status cache evict failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return nil
}

func (m *Lifecycle) apply(ctx context.Context, tx Tx, effect InventoryEffect, o Order) error {
	switch effect {
	case EffectRestore:
		return m.Ledger.RestoreAll(ctx, tx, o.Lines())
	case EffectReserve:
		return m.Ledger.ReserveAll(ctx, tx, o.Lines())
	default:
		return nil
	}
}
