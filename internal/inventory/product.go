package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the slice of a catalogue entry the ledger cares about.
// InStock is derived from StockQuantity on every write and never set on its own.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	InStock       bool            `json:"inStock"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// WithStock returns p with quantity set and availability recomputed.
func (p Product) WithStock(qty int) Product {
	p.StockQuantity = qty
	p.InStock = qty > 0
	return p
}

// Line is a product/quantity pair, one per order item.
type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}
