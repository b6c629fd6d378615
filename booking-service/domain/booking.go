package domain

import (
	"time"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownResource        = errors.New("resource is not part of this booking")
	ErrIllegalResourceChange  = errors.New("illegal resource state change")
	ErrBookingAlreadySettled  = errors.New("booking outcome already settled")
	ErrBookingNotFullyBooked  = errors.New("booking cannot be confirmed before every resource is reserved")
	ErrCompensationIncomplete = errors.New("booking cannot be compensated while resources are still reserved")
)

// ResourcePhase is the sub-state of one resource within a booking
type ResourcePhase string

const (
	PhaseNotAttempted ResourcePhase = "not_attempted"
	PhaseReserved     ResourcePhase = "reserved"
	PhaseFailed       ResourcePhase = "failed"
	PhaseCanceled     ResourcePhase = "canceled"
	PhaseCancelFailed ResourcePhase = "cancel_failed"
)

// BookingOutcome is the aggregate outcome of a booking
type BookingOutcome string

const (
	OutcomeInProgress  BookingOutcome = "in_progress"
	OutcomeConfirmed   BookingOutcome = "confirmed"
	OutcomeCompensated BookingOutcome = "compensated"
)

// ResourceState tracks a single resource. ReservationID and Amount stay set
// after compensation so the result can report what was undone.
type ResourceState struct {
	Kind             ResourceKind
	Phase            ResourcePhase
	ReservationID    string
	ConfirmationCode string
	Amount           decimal.Decimal
	Reason           string
}

// BookingContext is the transient state of one travel booking saga
type BookingContext struct {
	BookingID models.ID
	UserID    string
	Currency  string
	StartedAt time.Time

	order          []ResourceKind
	resources      map[ResourceKind]*ResourceState
	outcome        BookingOutcome
	failedResource ResourceKind
	failureMessage string

	events []*events.Event
}

// NewBookingContext starts a booking over the given resources, in order
func NewBookingContext(bookingID models.ID, userID, currency string, kinds []ResourceKind) *BookingContext {
	c := &BookingContext{
		BookingID: bookingID,
		UserID:    userID,
		Currency:  currency,
		StartedAt: time.Now().UTC(),
		order:     append([]ResourceKind(nil), kinds...),
		resources: make(map[ResourceKind]*ResourceState, len(kinds)),
		outcome:   OutcomeInProgress,
	}

	for _, kind := range kinds {
		c.resources[kind] = &ResourceState{Kind: kind, Phase: PhaseNotAttempted}
	}

	return c
}

func (c *BookingContext) Outcome() BookingOutcome {
	return c.outcome
}

// Resource returns a copy of the resource state
func (c *BookingContext) Resource(kind ResourceKind) (ResourceState, bool) {
	r, ok := c.resources[kind]
	if !ok {
		return ResourceState{}, false
	}
	return *r, true
}

// MarkReserved records a successful Reserve
func (c *BookingContext) MarkReserved(kind ResourceKind, result *ReservationResult) error {
	r, err := c.transition(kind, PhaseNotAttempted)
	if err != nil {
		return err
	}

	r.Phase = PhaseReserved
	r.ReservationID = result.ReservationID
	r.ConfirmationCode = result.ConfirmationCode
	r.Amount = result.Amount
	return nil
}

// MarkFailed records a failed Reserve
func (c *BookingContext) MarkFailed(kind ResourceKind, reason string) error {
	r, err := c.transition(kind, PhaseNotAttempted)
	if err != nil {
		return err
	}

	r.Phase = PhaseFailed
	r.Reason = reason
	return nil
}

// MarkCanceled records a successful compensation
func (c *BookingContext) MarkCanceled(kind ResourceKind) error {
	r, err := c.transition(kind, PhaseReserved)
	if err != nil {
		return err
	}

	r.Phase = PhaseCanceled
	return nil
}

// MarkCancelFailed records a failed compensation and its diagnostic event
func (c *BookingContext) MarkCancelFailed(kind ResourceKind, reason string) error {
	r, err := c.transition(kind, PhaseReserved)
	if err != nil {
		return err
	}

	r.Phase = PhaseCancelFailed
	r.Reason = reason

	c.recordEvent(events.NewEvent(c.BookingID, events.TravelBookingCompensationFailedEvent, CompensationFailedData{
		BookingID:     c.BookingID,
		ResourceKind:  kind,
		ReservationID: r.ReservationID,
		Reason:        reason,
	}))
	return nil
}

// Confirm settles the booking as confirmed. Every resource must be reserved.
func (c *BookingContext) Confirm() error {
	if c.outcome != OutcomeInProgress {
		return ErrBookingAlreadySettled
	}

	for _, kind := range c.order {
		if c.resources[kind].Phase != PhaseReserved {
			return errors.Wrapf(ErrBookingNotFullyBooked, "%s is %s", kind, c.resources[kind].Phase)
		}
	}

	total, err := c.reservedTotal()
	if err != nil {
		return err
	}

	c.outcome = OutcomeConfirmed
	c.recordEvent(events.NewEvent(c.BookingID, events.TravelBookingCreatedEvent, BookingCreatedData{
		BookingID:              c.BookingID,
		UserID:                 c.UserID,
		FlightReservationID:    c.reservationID(ResourceFlight),
		HotelReservationID:     c.reservationID(ResourceHotel),
		CarRentalReservationID: c.reservationID(ResourceCar),
		TotalAmount:            total.Amount,
		Currency:               total.Currency,
	}))
	return nil
}

// Compensate settles the booking as compensated. Every reserved resource must
// have had its cancel attempted.
func (c *BookingContext) Compensate(failed ResourceKind, message string) error {
	if c.outcome != OutcomeInProgress {
		return ErrBookingAlreadySettled
	}

	partial := make([]string, 0, len(c.order))
	for _, kind := range c.order {
		r := c.resources[kind]
		switch r.Phase {
		case PhaseReserved:
			return errors.Wrapf(ErrCompensationIncomplete, "%s still reserved", kind)
		case PhaseCanceled, PhaseCancelFailed:
			partial = append(partial, r.ReservationID)
		}
	}

	c.outcome = OutcomeCompensated
	c.failedResource = failed
	c.failureMessage = message
	c.recordEvent(events.NewEvent(c.BookingID, events.TravelBookingCompensatedEvent, BookingCompensatedData{
		BookingID:             c.BookingID,
		UserID:                c.UserID,
		FailedResource:        failed,
		ErrorMessage:          message,
		PartialReservationIDs: partial,
	}))
	return nil
}

// Result projects the context into the caller-facing result
func (c *BookingContext) Result() *BookingResult {
	result := &BookingResult{
		BookingID:              c.BookingID.String(),
		UserID:                 c.UserID,
		Status:                 c.outcome,
		FlightReservationID:    c.reservedID(ResourceFlight),
		HotelReservationID:     c.reservedID(ResourceHotel),
		CarRentalReservationID: c.reservedID(ResourceCar),
		Currency:               c.Currency,
		FailedResource:         c.failedResource,
		ErrorMessage:           c.failureMessage,
	}

	for _, kind := range c.order {
		r := c.resources[kind]
		if r.ReservationID == "" {
			continue
		}

		result.Reservations = append(result.Reservations, ReservationSummary{
			Kind:             kind,
			ReservationID:    r.ReservationID,
			ConfirmationCode: r.ConfirmationCode,
			Amount:           r.Amount,
			Phase:            r.Phase,
		})

		if r.Phase == PhaseCancelFailed {
			result.CompensationFailures = append(result.CompensationFailures, CompensationFailure{
				Kind:          kind,
				ReservationID: r.ReservationID,
				Reason:        r.Reason,
			})
		}
	}

	if c.outcome == OutcomeConfirmed {
		if total, err := c.reservedTotal(); err == nil {
			result.TotalAmount = total.Amount
		}
	}

	return result
}

// Events returns domain events
func (c *BookingContext) Events() []*events.Event {
	return c.events
}

// ClearEvents clears domain events
func (c *BookingContext) ClearEvents() {
	c.events = make([]*events.Event, 0)
}

func (c *BookingContext) recordEvent(event *events.Event) {
	c.events = append(c.events, event.WithMetadata("user_id", c.UserID))
}

func (c *BookingContext) transition(kind ResourceKind, from ResourcePhase) (*ResourceState, error) {
	if c.outcome != OutcomeInProgress {
		return nil, ErrBookingAlreadySettled
	}

	r, ok := c.resources[kind]
	if !ok {
		return nil, errors.Wrap(ErrUnknownResource, kind.String())
	}

	if r.Phase != from {
		return nil, errors.Wrapf(ErrIllegalResourceChange, "%s is %s, expected %s", kind, r.Phase, from)
	}

	return r, nil
}

func (c *BookingContext) reservationID(kind ResourceKind) string {
	if r, ok := c.resources[kind]; ok {
		return r.ReservationID
	}
	return ""
}

func (c *BookingContext) reservedID(kind ResourceKind) *string {
	id := c.reservationID(kind)
	if id == "" {
		return nil
	}
	return &id
}

func (c *BookingContext) reservedTotal() (models.Money, error) {
	total := models.NewMoney(decimal.Zero, c.Currency)
	for _, kind := range c.order {
		var err error
		total, err = total.Add(models.NewMoney(c.resources[kind].Amount, c.Currency))
		if err != nil {
			return models.Money{}, err
		}
	}
	return total, nil
}

// ReservationSummary is one reserved resource as reported to the caller
type ReservationSummary struct {
	Kind             ResourceKind    `json:"kind"`
	ReservationID    string          `json:"reservation_id"`
	ConfirmationCode string          `json:"confirmation_code,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Phase            ResourcePhase   `json:"phase"`
}

// CompensationFailure is a reserved resource whose cancel failed
type CompensationFailure struct {
	Kind          ResourceKind `json:"kind"`
	ReservationID string       `json:"reservation_id"`
	Reason        string       `json:"reason"`
}

// BookingResult is the definite outcome of a booking saga
type BookingResult struct {
	BookingID              string                `json:"booking_id"`
	UserID                 string                `json:"user_id"`
	Status                 BookingOutcome        `json:"status"`
	FlightReservationID    *string               `json:"flight_reservation_id"`
	HotelReservationID     *string               `json:"hotel_reservation_id"`
	CarRentalReservationID *string               `json:"car_rental_reservation_id"`
	Reservations           []ReservationSummary  `json:"reservations,omitempty"`
	TotalAmount            decimal.Decimal       `json:"total_amount"`
	Currency               string                `json:"currency"`
	FailedResource         ResourceKind          `json:"failed_resource,omitempty"`
	ErrorMessage           string                `json:"error_message,omitempty"`
	CompensationFailures   []CompensationFailure `json:"compensation_failures,omitempty"`
}

func (r *BookingResult) Confirmed() bool {
	return r.Status == OutcomeConfirmed
}

// Event Data Structures
type BookingCreatedData struct {
	BookingID              models.ID       `json:"booking_id"`
	UserID                 string          `json:"user_id"`
	FlightReservationID    string          `json:"flight_reservation_id"`
	HotelReservationID     string          `json:"hotel_reservation_id"`
	CarRentalReservationID string          `json:"car_rental_reservation_id"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	Currency               string          `json:"currency"`
}

type BookingCompensatedData struct {
	BookingID             models.ID    `json:"booking_id"`
	UserID                string       `json:"user_id"`
	FailedResource        ResourceKind `json:"failed_resource"`
	ErrorMessage          string       `json:"error_message"`
	PartialReservationIDs []string     `json:"partial_reservation_ids"`
}

type CompensationFailedData struct {
	BookingID     models.ID    `json:"booking_id"`
	ResourceKind  ResourceKind `json:"resource_kind"`
	ReservationID string       `json:"reservation_id"`
	Reason        string       `json:"reason"`
}

// BookingRequestedData is the payload of an asynchronous booking request
type BookingRequestedData struct {
	BookingID models.ID     `json:"booking_id,omitempty"`
	UserID    string        `json:"user_id"`
	Currency  string        `json:"currency"`
	Flight    FlightDetails `json:"flight"`
	Hotel     HotelDetails  `json:"hotel"`
	Car       CarDetails    `json:"car"`
}
