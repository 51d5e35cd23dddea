package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// Envelope wraps every event published on the notification topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID      string          `json:"order_id"`
	UserID       string          `json:"user_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	Recipient    string          `json:"recipient"`
	Items        []ItemPrice     `json:"items"`
	Total        decimal.Decimal `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID      string `json:"order_id"`
	CustomerName string `json:"customer_name,omitempty"`
	Recipient    string `json:"recipient"`
	PrevStatus   Status `json:"prev_status"`
	NewStatus    Status `json:"new_status"`
}

func createdPayload(o Order) OrderCreatedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, Price: it.Price})
	}
	return OrderCreatedPayload{
		OrderID:      o.ID,
		UserID:       o.UserID,
		CustomerName: o.CustomerName,
		Recipient:    o.Email,
		Items:        items,
		Total:        o.Total,
	}
}
