package communitycore

import (
	"context"
	"log/slog"
)

// NoopNotificationSink discards every delivery. Used when no real-time
// channel is wired, e.g. in tests.
type NoopNotificationSink struct{}

// NewNoopNotificationSink creates a sink that drops all notifications.
func NewNoopNotificationSink() *NoopNotificationSink {
	return &NoopNotificationSink{}
}

func (s *NoopNotificationSink) Deliver(ctx context.Context, n *Notification) error {
	return nil
}

// LogNotificationSink writes deliveries to a slog.Logger. Useful for
// development deployments without a push channel.
type LogNotificationSink struct {
	log *slog.Logger
}

// NewLogNotificationSink creates a sink that logs deliveries.
func NewLogNotificationSink(log *slog.Logger) *LogNotificationSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotificationSink{log: log}
}

func (s *LogNotificationSink) Deliver(ctx context.Context, n *Notification) error {
	s.log.Info("notification delivered",
		"notification_id", n.ID,
		"type", n.Type,
		"recipient", n.Recipient,
		"related_id", n.RelatedID)
	return nil
}
