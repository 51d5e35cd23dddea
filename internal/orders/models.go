package orders

import (
	"time"

	"github.com/ariefcatur/storefront-orders/internal/inventory"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"externalId,omitempty"`
	UserID     string          `json:"userId,omitempty"`
	Status     Status          `json:"status"`
	Items      []OrderItem     `json:"items"`
	Total      decimal.Decimal `json:"total"`
	Contact
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OrderItem carries the unit price charged at purchase time.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Contact is the delivery snapshot taken when the order is placed.
type Contact struct {
	CustomerName string `json:"customerName,omitempty"`
	Email        string `json:"email,omitempty"`
	PhoneNumber  string `json:"phoneNumber"`
	Address      string `json:"address"`
	Notes        string `json:"notes,omitempty"`
}

// Lines returns the stock claim held by the order.
func (o Order) Lines() []inventory.Line {
	out := make([]inventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, inventory.Line{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return out
}

// ItemsTotal sums price x quantity over the items.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

type LineInput struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

type CreateOrderInput struct {
	Items       []LineInput
	PhoneNumber string
	Address     string
	Notes       string
	// ExternalID makes creation idempotent when set.
	ExternalID string
}

type CreateResult struct {
	Order      Order  `json:"order"`
	Message    string `json:"message"`
	Idempotent bool   `json:"idempotent"`
}

const ConfirmationMessage = "Order created successfully! Our team will contact you within 24 hours to confirm your order and arrange payment and delivery."

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalCount  int  `json:"totalCount"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
	Limit       int  `json:"limit"`
}

type Page struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

type Stats struct {
	TotalOrders    int             `json:"totalOrders"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	OrdersByStatus []StatusCount   `json:"ordersByStatus"`
	RecentOrders   []Order         `json:"recentOrders"`
}
