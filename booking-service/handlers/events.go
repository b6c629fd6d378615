package handlers

import (
	"context"
	"log/slog"

	"github.com/draftea/booking-system/booking-service/application"
	"github.com/draftea/booking-system/booking-service/domain"
	"github.com/draftea/booking-system/shared/events"
	"github.com/pkg/errors"
)

// BookingEventHandlers handles events consumed by the booking service
type BookingEventHandlers struct {
	bookTravel *application.BookTravel
	logger     *slog.Logger
}

// NewBookingEventHandlers creates new booking event handlers
func NewBookingEventHandlers(bookTravel *application.BookTravel, logger *slog.Logger) *BookingEventHandlers {
	return &BookingEventHandlers{
		bookTravel: bookTravel,
		logger:     logger,
	}
}

// Handle implements the events.EventHandler interface
func (h *BookingEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.Topic {
	case events.TravelBookingRequestedEvent:
		return h.HandleBookingRequested(ctx, event)
	default:
		return nil
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *BookingEventHandlers) HandlerID() string {
	return "booking-service-event-handler"
}

// HandleBookingRequested runs the saga for an asynchronous booking request.
// Invalid requests are dropped rather than redelivered; the saga itself
// always settles, so only payload errors are returned.
func (h *BookingEventHandlers) HandleBookingRequested(ctx context.Context, event *events.Event) error {
	var data domain.BookingRequestedData
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "failed to decode booking request")
	}

	cmd := &application.BookTravelCommand{
		BookingID: data.BookingID.String(),
		UserID:    data.UserID,
		Currency:  data.Currency,
		Flight:    data.Flight,
		Hotel:     data.Hotel,
		Car:       data.Car,
	}

	result, err := h.bookTravel.Execute(ctx, cmd)
	if err != nil {
		if errors.Is(err, application.ErrInvalidCommand) {
			h.logger.WarnContext(ctx, "dropping invalid booking request",
				"event_id", event.ID.String(),
				"error", err,
			)
			return nil
		}
		return errors.Wrap(err, "failed to book travel")
	}

	h.logger.InfoContext(ctx, "booking request processed",
		"event_id", event.ID.String(),
		"booking_id", result.BookingID,
		"status", result.Status,
	)
	return nil
}
