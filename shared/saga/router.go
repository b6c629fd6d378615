package saga

import (
	"context"
	"log/slog"
	"sync"

	"github.com/draftea/booking-system/shared/events"
	"github.com/pkg/errors"
)

var _ events.EventHandler = (*ChoreographyEventRouter)(nil)

type route struct {
	pattern events.Topic
	handler events.EventHandler
}

// ChoreographyEventRouter dispatches consumed events to the handlers whose
// topic pattern matches. Services react to each other's events through it
// without a central coordinator.
type ChoreographyEventRouter struct {
	mux    sync.RWMutex
	routes []route
	logger *slog.Logger
}

func NewChoreographyEventRouter(logger *slog.Logger) *ChoreographyEventRouter {
	return &ChoreographyEventRouter{logger: logger}
}

// RegisterHandler registers a handler for a topic pattern (see events.Topic.Matches)
func (r *ChoreographyEventRouter) RegisterHandler(pattern events.Topic, handler events.EventHandler) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.routes = append(r.routes, route{pattern: pattern, handler: handler})
}

// HandlerID identifies the router to the SQS subscriber
func (r *ChoreographyEventRouter) HandlerID() string {
	return "choreography-router"
}

// Handle routes the event to every matching handler. Every handler runs; the
// first failure is returned so the message is redelivered.
func (r *ChoreographyEventRouter) Handle(ctx context.Context, event *events.Event) error {
	r.mux.RLock()
	routes := make([]route, len(r.routes))
	copy(routes, r.routes)
	r.mux.RUnlock()

	var (
		firstErr error
		matched  bool
	)

	for _, rt := range routes {
		if !event.Topic.Matches(rt.pattern) {
			continue
		}
		matched = true

		if err := rt.handler.Handle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "event handler failed",
				"topic", event.Topic.String(),
				"event_id", event.ID.String(),
				"error", err,
			)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "handler for %s failed", event.Topic)
			}
		}
	}

	if !matched {
		r.logger.DebugContext(ctx, "no handlers registered for topic", "topic", event.Topic.String())
	}

	return firstErr
}
