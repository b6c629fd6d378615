package infrastructure

import (
	"context"
	"log/slog"

	"github.com/draftea/booking-system/shared/events"
)

var _ events.Publisher = (*LogEventPublisher)(nil)

// LogEventPublisher writes events to the log. Used when no SNS topic is configured.
type LogEventPublisher struct {
	logger *slog.Logger
}

func NewLogEventPublisher(logger *slog.Logger) *LogEventPublisher {
	return &LogEventPublisher{logger: logger}
}

func (p *LogEventPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	for _, e := range evts {
		payload, err := e.MarshalPayload()
		if err != nil {
			return err
		}

		p.logger.InfoContext(ctx, "event published",
			"topic", e.Topic.String(),
			"event_id", e.ID.String(),
			"aggregate_id", e.AggregateID.String(),
			"payload", string(payload),
		)
	}
	return nil
}
