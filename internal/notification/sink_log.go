package notification

import (
	"context"

	"github.com/smallbiznis/eventpass/internal/notification/domain"
	"go.uber.org/zap"
)

// LogSink writes events to the structured log. It is the development default.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("notification.sink")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, event domain.OutboxEvent) error {
	s.log.Info("notification",
		zap.String("outbox_id", event.ID.String()),
		zap.String("event_type", string(event.EventType)),
		zap.String("org_id", event.OrgID.String()),
		zap.String("aggregate_id", event.AggregateID.String()),
		zap.Any("payload", map[string]any(event.Payload)),
	)
	return nil
}
