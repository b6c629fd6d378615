package domain

import (
	"context"

	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ResourceKind identifies a reservable resource
type ResourceKind string

const (
	ResourceFlight ResourceKind = "flight"
	ResourceHotel  ResourceKind = "hotel"
	ResourceCar    ResourceKind = "car"
)

// BookingOrder is the fixed order in which resources are reserved
var BookingOrder = []ResourceKind{ResourceFlight, ResourceHotel, ResourceCar}

func NewResourceKind(kind string) (ResourceKind, error) {
	switch k := ResourceKind(kind); k {
	case ResourceFlight, ResourceHotel, ResourceCar:
		return k, nil
	}
	return "", errors.Errorf("unknown resource kind %q", kind)
}

func (k ResourceKind) String() string {
	return string(k)
}

type FlightDetails struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	Passengers    int    `json:"passengers"`
}

type HotelDetails struct {
	City     string `json:"city"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guests   int    `json:"guests"`
	Rooms    int    `json:"rooms"`
}

type CarDetails struct {
	PickupLocation string `json:"pickup_location"`
	PickupDate     string `json:"pickup_date"`
	DropoffDate    string `json:"dropoff_date"`
	CarClass       string `json:"car_class,omitempty"`
}

// ReservationRequest carries only the details relevant to Kind
type ReservationRequest struct {
	BookingID models.ID      `json:"booking_id"`
	UserID    string         `json:"user_id"`
	Kind      ResourceKind   `json:"kind"`
	Currency  string         `json:"currency"`
	Flight    *FlightDetails `json:"flight,omitempty"`
	Hotel     *HotelDetails  `json:"hotel,omitempty"`
	Car       *CarDetails    `json:"car,omitempty"`
}

// ReservationResult is returned by a successful Reserve
type ReservationResult struct {
	ReservationID    string          `json:"reservation_id"`
	ConfirmationCode string          `json:"confirmation_code"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

// ReservationCapability reserves and cancels one kind of resource
type ReservationCapability interface {
	Reserve(ctx context.Context, req *ReservationRequest) (*ReservationResult, error)
	Cancel(ctx context.Context, reservationID string) error
}

// ReservationFailure is a failed Reserve. Message is the capability's own text.
type ReservationFailure struct {
	Kind    ResourceKind
	Message string
}

func (f *ReservationFailure) Error() string {
	return f.Message
}

// AsReservationFailure converts any Reserve error into a ReservationFailure,
// keeping the original message
func AsReservationFailure(kind ResourceKind, err error) *ReservationFailure {
	var failure *ReservationFailure
	if errors.As(err, &failure) {
		if failure.Kind == "" {
			return &ReservationFailure{Kind: kind, Message: failure.Message}
		}
		return failure
	}
	return &ReservationFailure{Kind: kind, Message: err.Error()}
}
