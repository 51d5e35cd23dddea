package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captured struct {
	key     []byte
	value   []byte
	headers []kafkago.Header
}

type fakePublisher struct {
	msgs []captured
	err  error
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, captured{key: key, value: value, headers: headers})
	return nil
}

type recordingMailer struct {
	sent []Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, m Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func statusChanged() orders.Notification {
	return orders.Notification{
		Event:     orders.EventOrderStatusChanged,
		Recipient: "ana@example.com",
		OrderID:   "o-42",
		Payload: orders.OrderStatusChangedPayload{
			OrderID:      "o-42",
			CustomerName: "Ana",
			Recipient:    "ana@example.com",
			PrevStatus:   orders.StatusNew,
			NewStatus:    orders.StatusPaymentConfirmed,
		},
	}
}

func TestKafkaNotifierPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := &KafkaNotifier{Producer: pub, Service: "order-api", Now: func() time.Time { return at }}

	err := n.Notify(WithTraceID(context.Background(), "req-1"), statusChanged())
	require.NoError(t, err)
	require.Len(t, pub.msgs, 1)

	msg := pub.msgs[0]
	assert.Equal(t, []byte("o-42"), msg.key)
	assert.Equal(t, "x-event-type", msg.headers[0].Key)
	assert.Equal(t, orders.EventOrderStatusChanged, string(msg.headers[0].Value))

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(msg.value, &env))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "order-api", env.Producer)
	assert.Equal(t, "req-1", env.TraceID)
	assert.Equal(t, "o-42", env.CorrelationID)
	assert.True(t, env.OccurredAt.Equal(at))
}

func TestKafkaNotifierSurfacesPublishError(t *testing.T) {
	n := &KafkaNotifier{Producer: &fakePublisher{err: kafka.ErrInboxFull}, Service: "order-api"}
	err := n.Notify(context.Background(), statusChanged())
	assert.ErrorIs(t, err, kafka.ErrInboxFull)
}

func envelopeFor(t *testing.T, n orders.Notification) orders.Envelope {
	t.Helper()
	pub := &fakePublisher{}
	require.NoError(t, (&KafkaNotifier{Producer: pub, Service: "test"}).Notify(context.Background(), n))
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(pub.msgs[0].value, &env))
	return env
}

func TestRenderStatusChanged(t *testing.T) {
	msg, err := Render(envelopeFor(t, statusChanged()))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Your order #o-42 status updated to PAYMENT CONFIRMED", msg.Subject)
	assert.Contains(t, msg.Text, "from NEW to PAYMENT CONFIRMED")
}

func TestRenderOrderCreated(t *testing.T) {
	env := envelopeFor(t, orders.Notification{
		Event:     orders.EventOrderCreated,
		Recipient: "bo@example.com",
		OrderID:   "o-7",
		Payload: orders.OrderCreatedPayload{
			OrderID:   "o-7",
			Recipient: "bo@example.com",
			Items:     []orders.ItemPrice{{ProductID: "p1", Qty: 2, Price: decimal.RequireFromString("4.50")}},
			Total:     decimal.RequireFromString("9"),
		},
	})
	msg, err := Render(env)
	require.NoError(t, err)
	assert.Equal(t, "We received your order #o-7", msg.Subject)
	assert.Contains(t, msg.Text, "Hello there")
	assert.Contains(t, msg.Text, "total 9.00")
}

func TestRenderUnknownEvent(t *testing.T) {
	_, err := Render(orders.Envelope{EventType: "Nope"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func newHandler(t *testing.T, mailer Mailer) *Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return &Handler{Dedup: &redisx.Cache{RDB: rdb}, Mailer: mailer, Log: zap.NewNop(), Service: "notifier"}
}

func kafkaMessage(t *testing.T, env orders.Envelope) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestHandlerDeliversOncePerEvent(t *testing.T) {
	mailer := &recordingMailer{}
	h := newHandler(t, mailer)
	m := kafkaMessage(t, envelopeFor(t, statusChanged()))

	require.NoError(t, h.HandleMessage(context.Background(), m))
	require.NoError(t, h.HandleMessage(context.Background(), m))
	assert.Len(t, mailer.sent, 1)
}

func TestHandlerRetriesAfterMailerFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	h := newHandler(t, mailer)
	m := kafkaMessage(t, envelopeFor(t, statusChanged()))

	assert.Error(t, h.HandleMessage(context.Background(), m))

	mailer.err = nil
	require.NoError(t, h.HandleMessage(context.Background(), m))
	assert.Len(t, mailer.sent, 1)
}

func TestHandlerSkipsGarbage(t *testing.T) {
	mailer := &recordingMailer{}
	h := newHandler(t, mailer)

	assert.NoError(t, h.HandleMessage(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.NoError(t, h.HandleMessage(context.Background(), kafkaMessage(t, orders.Envelope{EventID: "x", EventType: "Other"})))
	assert.Empty(t, mailer.sent)
}
