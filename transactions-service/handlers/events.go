package handlers

import (
	"context"
	"log/slog"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/draftea/booking-system/transactions-service/application"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// bookingNamespace derives transaction ids from booking ids so a redelivered
// booking event maps onto the same transaction
var bookingNamespace = uuid.MustParse("4b1f0c6e-8a57-4f0b-9d3a-2f6c1e7d5a90")

// bookingCreatedPayload is the part of travel.booking.created this service reads
type bookingCreatedPayload struct {
	BookingID   models.ID       `json:"booking_id"`
	UserID      string          `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// TransactionEventHandlers handles events consumed by the transactions service
type TransactionEventHandlers struct {
	createTransaction     *application.CreateTransaction
	transitionTransaction *application.TransitionTransaction
	logger                *slog.Logger
}

// NewTransactionEventHandlers creates new transaction event handlers
func NewTransactionEventHandlers(
	createTransaction *application.CreateTransaction,
	transitionTransaction *application.TransitionTransaction,
	logger *slog.Logger,
) *TransactionEventHandlers {
	return &TransactionEventHandlers{
		createTransaction:     createTransaction,
		transitionTransaction: transitionTransaction,
		logger:                logger,
	}
}

// Handle implements the events.EventHandler interface
func (h *TransactionEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.Topic {
	case events.TravelBookingCreatedEvent:
		return h.HandleBookingCreated(ctx, event)
	case events.TransactionTransitionRequestedEvent:
		return h.HandleTransitionRequested(ctx, event)
	default:
		return nil
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *TransactionEventHandlers) HandlerID() string {
	return "transactions-service-event-handler"
}

// BookingTransactionID is the transaction id recorded for a confirmed booking
func BookingTransactionID(bookingID models.ID) models.ID {
	return models.ID(uuid.NewSHA1(bookingNamespace, []byte(bookingID.String())).String())
}

// HandleBookingCreated records a travel_booking transaction for a confirmed booking
func (h *TransactionEventHandlers) HandleBookingCreated(ctx context.Context, event *events.Event) error {
	var data bookingCreatedPayload
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "failed to decode booking created event")
	}

	transactionID := BookingTransactionID(data.BookingID)
	_, err := h.createTransaction.Execute(ctx, &application.CreateTransactionCommand{
		TransactionID: transactionID.String(),
		UserID:        data.UserID,
		Kind:          string(domain.KindTravelBooking),
		Amount:        data.TotalAmount,
		Reference:     data.BookingID.String(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrTransactionAlreadyExists):
		h.logger.InfoContext(ctx, "booking transaction already recorded",
			"booking_id", data.BookingID.String(),
			"transaction_id", transactionID.String(),
		)
		return nil
	case errors.Is(err, domain.ErrInvalidTransaction):
		h.logger.WarnContext(ctx, "dropping invalid booking transaction",
			"event_id", event.ID.String(),
			"error", err,
		)
		return nil
	}
	return errors.Wrap(err, "failed to create booking transaction")
}

// HandleTransitionRequested applies an asynchronously requested transition.
// Requests that can never succeed are logged and acknowledged.
func (h *TransactionEventHandlers) HandleTransitionRequested(ctx context.Context, event *events.Event) error {
	var data domain.TransitionRequestedData
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "failed to decode transition request")
	}

	_, err := h.transitionTransaction.Execute(ctx, &application.TransitionTransactionCommand{
		TransactionID: data.TransactionID.String(),
		TargetState:   data.TargetState.String(),
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrTransactionNotFound) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrInvalidTransaction) {
		h.logger.WarnContext(ctx, "dropping transition request",
			"event_id", event.ID.String(),
			"transaction_id", data.TransactionID.String(),
			"target_state", data.TargetState,
			"error", err,
		)
		return nil
	}
	return errors.Wrap(err, "failed to transition transaction")
}
