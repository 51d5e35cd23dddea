package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Deduper claims event ids so redelivered messages are handled once.
type Deduper interface {
	FirstSeen(ctx context.Context, service, eventID string) (bool, error)
	Forget(ctx context.Context, service, eventID string) error
}

// Handler consumes the notification topic and delivers customer messages.
type Handler struct {
	Dedup   Deduper
	Mailer  Mailer
	Log     *zap.Logger
	Service string
}

// HandleMessage is installed as the consumer handler.
func (h *Handler) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		h.Log.Warn("dropping undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	msg, err := Render(env)
	if errors.Is(err, ErrUnknownEvent) {
		return nil
	}
	if err != nil {
		h.Log.Warn("dropping malformed event", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if msg.To == "" {
		return nil
	}

	if h.Dedup != nil {
		first, err := h.Dedup.FirstSeen(ctx, h.Service, env.EventID)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
	}

	if err := h.Mailer.Send(ctx, msg); err != nil {
		// Release the claim so the redelivery is not skipped.
		if h.Dedup != nil {
			if ferr := h.Dedup.Forget(ctx, h.Service, env.EventID); ferr != nil {
				h.Log.Warn("dedup release failed", zap.String("event_id", env.EventID), zap.Error(ferr))
			}
		}
		return err
	}
	h.Log.Info("notification delivered",
		zap.String("event_id", env.EventID),
		zap.String("event_type", env.EventType),
		zap.String("order_id", env.CorrelationID))
	return nil
}
