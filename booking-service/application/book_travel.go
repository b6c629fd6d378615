package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/draftea/booking-system/booking-service/domain"
	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/draftea/booking-system/shared/saga"
	"github.com/draftea/booking-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const dateLayout = "2006-01-02"

// ErrInvalidCommand marks a rejected booking request; no reservation was attempted
var ErrInvalidCommand = errors.New("invalid command")

// BookTravelCommand represents the command to book a trip
type BookTravelCommand struct {
	BookingID string               `json:"booking_id,omitempty"`
	UserID    string               `json:"user_id"`
	Currency  string               `json:"currency"`
	Flight    domain.FlightDetails `json:"flight"`
	Hotel     domain.HotelDetails  `json:"hotel"`
	Car       domain.CarDetails    `json:"car"`
}

// ResourceStep pairs a resource kind with the capability that reserves it
type ResourceStep struct {
	Kind       domain.ResourceKind
	Capability domain.ReservationCapability
}

// BookTravel reserves every resource in order as one saga, compensating in
// reverse order when a reservation fails
type BookTravel struct {
	steps          []ResourceStep
	orchestrator   *saga.Orchestrator
	eventPublisher events.Publisher
	logger         *slog.Logger
}

// NewBookTravel creates a new BookTravel use case. Steps run in the given order.
func NewBookTravel(
	steps []ResourceStep,
	eventPublisher events.Publisher,
	logger *slog.Logger,
) *BookTravel {
	return &BookTravel{
		steps:          steps,
		orchestrator:   saga.NewOrchestrator(logger),
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute runs the booking saga. The error is reserved for invalid commands;
// every valid command ends confirmed or compensated.
func (uc *BookTravel) Execute(ctx context.Context, cmd *BookTravelCommand) (*domain.BookingResult, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(ErrInvalidCommand, err.Error())
	}

	bookingID := models.GenerateUUID()
	if cmd.BookingID != "" {
		id, err := models.NewID(cmd.BookingID)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidCommand, "invalid booking ID %q", cmd.BookingID)
		}
		bookingID = id
	}

	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "booking.saga", trace.WithAttributes(
		attribute.String("booking.id", bookingID.String()),
		attribute.String("booking.user_id", cmd.UserID),
	))
	defer span.End()

	logger := uc.logger.With("booking_id", bookingID.String(), "user_id", cmd.UserID)
	logger.InfoContext(ctx, "booking saga started")

	booking := domain.NewBookingContext(bookingID, cmd.UserID, cmd.Currency, uc.kinds())
	outcome := uc.orchestrator.Run(ctx, uc.sagaSteps(booking, cmd, logger))

	if err := uc.settle(booking, outcome); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrap(err, "failed to settle booking")
	}

	uc.publish(ctx, booking, logger)

	result := booking.Result()
	uc.recordMetrics(ctx, outcome, result, time.Since(start))

	span.SetAttributes(attribute.String("booking.status", string(result.Status)))
	if !result.Confirmed() {
		span.SetStatus(codes.Error, result.ErrorMessage)
		logger.WarnContext(ctx, "booking compensated",
			"failed_resource", result.FailedResource,
			"error_message", result.ErrorMessage,
			"compensation_failures", len(result.CompensationFailures),
		)
	} else {
		logger.InfoContext(ctx, "booking confirmed", "total_amount", result.TotalAmount.String())
	}

	return result, nil
}

func (uc *BookTravel) kinds() []domain.ResourceKind {
	kinds := make([]domain.ResourceKind, len(uc.steps))
	for i, step := range uc.steps {
		kinds[i] = step.Kind
	}
	return kinds
}

func (uc *BookTravel) sagaSteps(booking *domain.BookingContext, cmd *BookTravelCommand, logger *slog.Logger) []saga.Step {
	steps := make([]saga.Step, 0, len(uc.steps))

	for _, step := range uc.steps {
		step := step
		steps = append(steps, saga.Step{
			Name: step.Kind.String(),
			Execute: func(ctx context.Context) error {
				return uc.reserve(ctx, booking, step, cmd, logger)
			},
			Compensate: func(ctx context.Context) error {
				resource, _ := booking.Resource(step.Kind)
				return uc.cancel(ctx, step, resource.ReservationID, logger)
			},
		})
	}

	return steps
}

func (uc *BookTravel) reserve(
	ctx context.Context,
	booking *domain.BookingContext,
	step ResourceStep,
	cmd *BookTravelCommand,
	logger *slog.Logger,
) error {
	ctx, span := telemetry.StartSpan(ctx, "booking.reserve."+step.Kind.String())
	defer span.End()

	result, err := step.Capability.Reserve(ctx, buildReservationRequest(booking, step.Kind, cmd))
	if err == nil && (result == nil || result.ReservationID == "") {
		err = &domain.ReservationFailure{
			Kind:    step.Kind,
			Message: step.Kind.String() + " reservation returned no reservation id",
		}
	}
	if err != nil {
		failure := domain.AsReservationFailure(step.Kind, err)
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Message)
		return failure
	}

	if err := booking.MarkReserved(step.Kind, result); err != nil {
		return err
	}

	span.SetAttributes(attribute.String("reservation.id", result.ReservationID))
	logger.InfoContext(ctx, "resource reserved",
		"resource", step.Kind,
		"reservation_id", result.ReservationID,
		"amount", result.Amount.String(),
	)
	return nil
}

func (uc *BookTravel) cancel(ctx context.Context, step ResourceStep, reservationID string, logger *slog.Logger) error {
	ctx, span := telemetry.StartSpan(ctx, "booking.cancel."+step.Kind.String(), trace.WithAttributes(
		attribute.String("reservation.id", reservationID),
	))
	defer span.End()

	logger.InfoContext(ctx, "cancelling reservation", "resource", step.Kind, "reservation_id", reservationID)

	if err := step.Capability.Cancel(ctx, reservationID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// settle moves the booking context to its terminal outcome from the saga outcome
func (uc *BookTravel) settle(booking *domain.BookingContext, outcome *saga.Outcome) error {
	if outcome.Status == saga.SagaStatusCompleted {
		return booking.Confirm()
	}

	failed := domain.ResourceKind(outcome.FailedStep)
	message := domain.AsReservationFailure(failed, outcome.Err).Message

	// a cancelled saga never attempted the failed step
	if !outcome.Cancelled {
		if err := booking.MarkFailed(failed, message); err != nil {
			return err
		}
	}

	for _, c := range outcome.Compensations {
		kind := domain.ResourceKind(c.Step)
		var err error
		if c.Err == nil {
			err = booking.MarkCanceled(kind)
		} else {
			err = booking.MarkCancelFailed(kind, c.Err.Error())
		}
		if err != nil {
			return err
		}
	}

	return booking.Compensate(failed, message)
}

// publish is fire-and-forget: a publishing failure never changes the result
func (uc *BookTravel) publish(ctx context.Context, booking *domain.BookingContext, logger *slog.Logger) {
	if err := uc.eventPublisher.Publish(context.WithoutCancel(ctx), booking.Events()...); err != nil {
		logger.ErrorContext(ctx, "failed to publish booking events", "error", err)
	}
	booking.ClearEvents()
}

func (uc *BookTravel) recordMetrics(ctx context.Context, outcome *saga.Outcome, result *domain.BookingResult, duration time.Duration) {
	status := attribute.String("status", string(result.Status))

	telemetry.RecordCounter(ctx, "booking_sagas_total", "Travel booking sagas by outcome", 1, status)
	telemetry.RecordHistogram(ctx, "booking_saga_duration_seconds", "Travel booking saga duration", duration.Seconds(), status)

	for _, c := range outcome.Compensations {
		compensation := "succeeded"
		if c.Err != nil {
			compensation = "failed"
		}
		telemetry.RecordCounter(ctx, "booking_compensations_total", "Reservation compensations", 1,
			attribute.String("resource", c.Step),
			attribute.String("status", compensation),
		)
	}
}

func buildReservationRequest(booking *domain.BookingContext, kind domain.ResourceKind, cmd *BookTravelCommand) *domain.ReservationRequest {
	req := &domain.ReservationRequest{
		BookingID: booking.BookingID,
		UserID:    booking.UserID,
		Kind:      kind,
		Currency:  booking.Currency,
	}

	switch kind {
	case domain.ResourceFlight:
		flight := cmd.Flight
		req.Flight = &flight
	case domain.ResourceHotel:
		hotel := cmd.Hotel
		req.Hotel = &hotel
	case domain.ResourceCar:
		car := cmd.Car
		req.Car = &car
	}

	return req
}

// validateCommand validates the book travel command
func (uc *BookTravel) validateCommand(cmd *BookTravelCommand) error {
	if cmd == nil {
		return errors.New("command is required")
	}

	if strings.TrimSpace(cmd.UserID) == "" {
		return errors.New("user ID is required")
	}

	if len(cmd.Currency) != 3 {
		return errors.New("currency must be a 3 letter code")
	}

	if len(uc.steps) == 0 {
		return errors.New("no reservation steps configured")
	}

	for _, step := range uc.steps {
		var err error
		switch step.Kind {
		case domain.ResourceFlight:
			err = validateFlight(cmd.Flight)
		case domain.ResourceHotel:
			err = validateHotel(cmd.Hotel)
		case domain.ResourceCar:
			err = validateCar(cmd.Car)
		default:
			err = errors.Errorf("unknown resource kind %q", step.Kind)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func validateFlight(f domain.FlightDetails) error {
	if f.Origin == "" || f.Destination == "" {
		return errors.New("flight origin and destination are required")
	}
	if f.Passengers <= 0 {
		return errors.New("flight passengers must be positive")
	}
	if f.ReturnDate == "" {
		_, err := parseDate("flight departure date", f.DepartureDate)
		return err
	}
	return validateRange("flight", f.DepartureDate, f.ReturnDate)
}

func validateHotel(h domain.HotelDetails) error {
	if h.City == "" {
		return errors.New("hotel city is required")
	}
	if h.Guests <= 0 || h.Rooms <= 0 {
		return errors.New("hotel guests and rooms must be positive")
	}
	return validateRange("hotel", h.CheckIn, h.CheckOut)
}

func validateCar(c domain.CarDetails) error {
	if c.PickupLocation == "" {
		return errors.New("car pickup location is required")
	}
	return validateRange("car", c.PickupDate, c.DropoffDate)
}

func validateRange(resource, from, to string) error {
	start, err := parseDate(resource+" start date", from)
	if err != nil {
		return err
	}
	end, err := parseDate(resource+" end date", to)
	if err != nil {
		return err
	}
	if !end.After(start) {
		return errors.Errorf("%s end date must be after start date", resource)
	}
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, errors.Errorf("%s must be formatted as YYYY-MM-DD", field)
	}
	return t, nil
}
