package orders

import (
	"context"

	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"go.uber.org/zap"
)

// notifyBestEffort hands n to the notifier and only logs failures.
func notifyBestEffort(ctx context.Context, nt Notifier, n Notification, log *zap.Logger, m *metrics.Registry) {
	if nt == nil || n.Recipient == "" {
		return
	}
	if err := nt.Notify(context.WithoutCancel(ctx), n); err != nil {
		m.NotificationFailed()
		log.Warn("notification dispatch failed",
			zap.String("event", n.Event),
			zap.String("order_id", n.OrderID),
			zap.Error(err))
	}
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
