package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/orders"
)

// ErrUnknownEvent marks envelopes this service has no template for.
var ErrUnknownEvent = errors.New("unknown event type")

type Message struct {
	To      string
	Subject string
	Text    string
}

func pretty(s orders.Status) string {
	return strings.ToUpper(strings.ReplaceAll(string(s), "_", " "))
}

func greeting(name string) string {
	if name == "" {
		return "Hello there"
	}
	return "Hello " + name
}

// Render builds the customer message for an envelope.
func Render(env orders.Envelope) (Message, error) {
	switch env.EventType {
	case orders.EventOrderStatusChanged:
		p, err := kafka.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return Message{}, err
		}
		return Message{
			To:      p.Recipient,
			Subject: fmt.Sprintf("Your order #%s status updated to %s", p.OrderID, pretty(p.NewStatus)),
			Text: fmt.Sprintf("%s,\nYour order #%s status changed from %s to %s.",
				greeting(p.CustomerName), p.OrderID, pretty(p.PrevStatus), pretty(p.NewStatus)),
		}, nil
	case orders.EventOrderCreated:
		p, err := kafka.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return Message{}, err
		}
		return Message{
			To:      p.Recipient,
			Subject: fmt.Sprintf("We received your order #%s", p.OrderID),
			Text: fmt.Sprintf("%s,\nThank you for your order #%s (%d items, total %s).\n%s",
				greeting(p.CustomerName), p.OrderID, len(p.Items), p.Total.StringFixed(2), orders.ConfirmationMessage),
		}, nil
	default:
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownEvent, env.EventType)
	}
}
