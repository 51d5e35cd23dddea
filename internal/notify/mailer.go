package notify

import (
	"context"

	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	Log *zap.Logger
}

func (l *LogMailer) Send(_ context.Context, m Message) error {
	l.Log.Info("customer notification",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("text", m.Text))
	return nil
}
