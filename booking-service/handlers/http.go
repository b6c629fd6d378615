package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/draftea/booking-system/booking-service/application"
	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// BookingHistory reads the recorded events of a booking
type BookingHistory interface {
	GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error)
}

// BookingHandlers contains booking HTTP handlers
type BookingHandlers struct {
	bookTravel *application.BookTravel
	history    BookingHistory
	logger     *slog.Logger
}

// NewBookingHandlers creates new booking handlers. history may be nil when the
// event store is disabled.
func NewBookingHandlers(bookTravel *application.BookTravel, history BookingHistory, logger *slog.Logger) *BookingHandlers {
	return &BookingHandlers{
		bookTravel: bookTravel,
		history:    history,
		logger:     logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type bookingEventsResponse struct {
	BookingID string          `json:"booking_id"`
	Events    []*events.Event `json:"events"`
}

// CreateBooking runs the booking saga. A confirmed booking is 201, a
// compensated one 422 with the full result.
func (h *BookingHandlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var cmd application.BookTravelCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.bookTravel.Execute(r.Context(), &cmd)
	if err != nil {
		if errors.Is(err, application.ErrInvalidCommand) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "booking failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusCreated
	if !result.Confirmed() {
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, result)
}

// GetBookingEvents returns the recorded events of a booking in order
func (h *BookingHandlers) GetBookingEvents(w http.ResponseWriter, r *http.Request) {
	bookingID, err := models.NewID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	evts, err := h.history.GetEvents(r.Context(), bookingID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read booking events", "booking_id", bookingID.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read booking events")
		return
	}

	if len(evts) == 0 {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	writeJSON(w, http.StatusOK, bookingEventsResponse{
		BookingID: bookingID.String(),
		Events:    evts,
	})
}

// RegisterRoutes registers booking routes
func (h *BookingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/bookings", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		if h.history != nil {
			r.Get("/{id}/events", h.GetBookingEvents)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
