package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"go.uber.org/zap"
)

// StockStore is the transaction-scoped view of product stock the ledger writes through.
// Implementations must apply each call as one atomic conditional update.
type StockStore interface {
	// DecrementStock subtracts qty only while stock_quantity >= qty.
	// When the guard rejects the write ok is false and p holds the current row.
	// A missing product yields ErrProductNotFound.
	DecrementStock(ctx context.Context, productID string, qty int) (p Product, ok bool, err error)
	IncrementStock(ctx context.Context, productID string, qty int) (Product, error)
}

type Ledger struct {
	Log     *zap.Logger
	Metrics *metrics.Registry
}

func (l *Ledger) logger() *zap.Logger {
	if l == nil || l.Log == nil {
		return zap.NewNop()
	}
	return l.Log
}

func (l *Ledger) registry() *metrics.Registry {
	if l == nil {
		return nil
	}
	return l.Metrics
}

// Reserve takes qty units of a product out of stock.
func (l *Ledger) Reserve(ctx context.Context, s StockStore, productID string, qty int) (Product, error) {
	if qty < 1 {
		return Product{}, fmt.Errorf("reserve %s: %w: %d", productID, ErrInvalidQuantity, qty)
	}
	p, ok, err := s.DecrementStock(ctx, productID, qty)
	if err != nil {
		l.registry().StockOp("reserve", "error")
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, fmt.Errorf("reserve %s: %w", productID, ErrProductNotFound)
		}
		return Product{}, fmt.Errorf("reserve %s: %w", productID, err)
	}
	if !ok {
		l.registry().StockOp("reserve", "shortage")
		l.logger().Info("stock reservation rejected",
			zap.String("product_id", productID),
			zap.Int("available", p.StockQuantity),
			zap.Int("requested", qty))
		return p, &ShortageError{ProductID: productID, Name: p.Name, Available: p.StockQuantity, Requested: qty}
	}
	l.registry().StockOp("reserve", "ok")
	return p, nil
}

// Restore gives qty units back. Callers only restore what they reserved earlier.
func (l *Ledger) Restore(ctx context.Context, s StockStore, productID string, qty int) (Product, error) {
	if qty < 0 {
		return Product{}, fmt.Errorf("restore %s: %w: %d", productID, ErrInvalidQuantity, qty)
	}
	p, err := s.IncrementStock(ctx, productID, qty)
	if err != nil {
		l.registry().StockOp("restore", "error")
		return Product{}, fmt.Errorf("restore %s: %w", productID, err)
	}
	l.registry().StockOp("restore", "ok")
	return p, nil
}

// ReserveAll reserves every line or returns the first failure. It does not undo
// earlier lines; the caller's transaction rollback does that.
func (l *Ledger) ReserveAll(ctx context.Context, s StockStore, lines []Line) error {
	for _, ln := range lockOrder(lines) {
		if _, err := l.Reserve(ctx, s, ln.ProductID, ln.Qty); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) RestoreAll(ctx context.Context, s StockStore, lines []Line) error {
	for _, ln := range lockOrder(lines) {
		if _, err := l.Restore(ctx, s, ln.ProductID, ln.Qty); err != nil {
			return err
		}
	}
	return nil
}

// lockOrder sorts by product id so concurrent transactions take row locks in the same order.
func lockOrder(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
