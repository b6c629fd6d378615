package infrastructure

import (
	"context"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
)

var _ events.Publisher = (*RecordingPublisher)(nil)

// RecordingPublisher appends events to the event store before forwarding them
type RecordingPublisher struct {
	store events.EventStore
	next  events.Publisher
}

func NewRecordingPublisher(store events.EventStore, next events.Publisher) *RecordingPublisher {
	return &RecordingPublisher{
		store: store,
		next:  next,
	}
}

// Publish stores events grouped by aggregate, in order, then forwards all of them
func (p *RecordingPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	var order []models.ID
	byAggregate := make(map[models.ID][]*events.Event)
	for _, e := range evts {
		if _, ok := byAggregate[e.AggregateID]; !ok {
			order = append(order, e.AggregateID)
		}
		byAggregate[e.AggregateID] = append(byAggregate[e.AggregateID], e)
	}

	for _, aggregateID := range order {
		if err := p.store.AppendEvents(ctx, aggregateID, byAggregate[aggregateID]); err != nil {
			return errors.Wrapf(err, "failed to record events for %s", aggregateID)
		}
	}

	return p.next.Publish(ctx, evts...)
}
