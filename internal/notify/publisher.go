package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const eventVersion = 1

// Publisher is the non-blocking side of a Kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// KafkaNotifier turns order notifications into envelopes on the notification topic.
type KafkaNotifier struct {
	Producer Publisher
	Service  string
	Now      func() time.Time
}

type traceKey struct{}

// WithTraceID attaches a request id that ends up in the envelope.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func (k *KafkaNotifier) Notify(ctx context.Context, n orders.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", n.Event, err)
	}
	now := time.Now().UTC()
	if k.Now != nil {
		now = k.Now()
	}
	trace, _ := ctx.Value(traceKey{}).(string)
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     n.Event,
		EventVersion:  eventVersion,
		OccurredAt:    now,
		Producer:      k.Service,
		TraceID:       trace,
		CorrelationID: n.OrderID,
		Payload:       payload,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := k.Producer.Publish(orders.PartitionKey(n.OrderID), b,
		kafkago.Header{Key: "x-event-type", Value: []byte(n.Event)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
	); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", n.Event, n.OrderID, err)
	}
	return nil
}
