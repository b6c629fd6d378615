package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/draftea/booking-system/booking-service/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrReservationNotFound is returned when cancelling an unknown reservation
var ErrReservationNotFound = errors.New("reservation not found")

// SimulationConfig drives the in-process reservation services
type SimulationConfig struct {
	FailResources  []string      `mapstructure:"fail_resources"`
	FailCancels    []string      `mapstructure:"fail_cancels"`
	FailureMessage string        `mapstructure:"failure_message"`
	Latency        time.Duration `mapstructure:"latency"`
}

func (c SimulationConfig) fails(kind domain.ResourceKind, list []string) bool {
	for _, k := range list {
		if strings.EqualFold(k, kind.String()) {
			return true
		}
	}
	return false
}

var (
	idPrefixes = map[domain.ResourceKind]string{
		domain.ResourceFlight: "FLT",
		domain.ResourceHotel:  "HTL",
		domain.ResourceCar:    "CAR",
	}

	defaultFailureMessages = map[domain.ResourceKind]string{
		domain.ResourceFlight: "Flight service unavailable",
		domain.ResourceHotel:  "Hotel fully booked",
		domain.ResourceCar:    "No cars available",
	}

	flightFarePerPassenger = decimal.NewFromInt(250)
	hotelRatePerRoomNight  = decimal.NewFromInt(120)
	carRatePerDay          = map[string]decimal.Decimal{
		"":        decimal.NewFromInt(45),
		"economy": decimal.NewFromInt(45),
		"compact": decimal.NewFromInt(55),
		"suv":     decimal.NewFromInt(85),
		"luxury":  decimal.NewFromInt(150),
	}
)

// SimulatedReservationService is an in-memory domain.ReservationCapability
// used when no remote endpoint is configured
type SimulatedReservationService struct {
	mux          sync.Mutex
	kind         domain.ResourceKind
	cfg          SimulationConfig
	counter      int
	reservations map[string]*domain.ReservationResult
	logger       *slog.Logger
}

func NewSimulatedReservationService(kind domain.ResourceKind, cfg SimulationConfig, logger *slog.Logger) *SimulatedReservationService {
	return &SimulatedReservationService{
		kind:         kind,
		cfg:          cfg,
		reservations: make(map[string]*domain.ReservationResult),
		logger:       logger.With("resource", kind.String(), "simulated", true),
	}
}

func (s *SimulatedReservationService) Reserve(ctx context.Context, req *domain.ReservationRequest) (*domain.ReservationResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, &domain.ReservationFailure{Kind: s.kind, Message: err.Error()}
	}

	if s.cfg.fails(s.kind, s.cfg.FailResources) {
		message := s.cfg.FailureMessage
		if message == "" {
			message = defaultFailureMessages[s.kind]
		}
		return nil, &domain.ReservationFailure{Kind: s.kind, Message: message}
	}

	amount, err := s.price(req)
	if err != nil {
		return nil, &domain.ReservationFailure{Kind: s.kind, Message: err.Error()}
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	s.counter++
	result := &domain.ReservationResult{
		ReservationID:    fmt.Sprintf("%s-%d", idPrefixes[s.kind], s.counter),
		ConfirmationCode: strings.ToUpper(uuid.NewString()[:8]),
		Status:           "confirmed",
		Amount:           amount,
		Currency:         req.Currency,
	}
	s.reservations[result.ReservationID] = result

	s.logger.DebugContext(ctx, "simulated reservation", "reservation_id", result.ReservationID, "amount", amount.String())

	copied := *result
	return &copied, nil
}

func (s *SimulatedReservationService) Cancel(ctx context.Context, reservationID string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	if s.cfg.fails(s.kind, s.cfg.FailCancels) {
		return errors.Errorf("%s cancellation service unavailable", s.kind)
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	result, ok := s.reservations[reservationID]
	if !ok {
		return errors.Wrap(ErrReservationNotFound, reservationID)
	}
	result.Status = "canceled"

	return nil
}

// Reservation returns a copy of a stored reservation
func (s *SimulatedReservationService) Reservation(reservationID string) (domain.ReservationResult, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()

	result, ok := s.reservations[reservationID]
	if !ok {
		return domain.ReservationResult{}, false
	}
	return *result, true
}

func (s *SimulatedReservationService) wait(ctx context.Context) error {
	if s.cfg.Latency <= 0 {
		return nil
	}

	t := time.NewTimer(s.cfg.Latency)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *SimulatedReservationService) price(req *domain.ReservationRequest) (decimal.Decimal, error) {
	switch s.kind {
	case domain.ResourceFlight:
		if req.Flight == nil {
			return decimal.Zero, errors.New("flight details are required")
		}
		fare := flightFarePerPassenger.Mul(decimal.NewFromInt(int64(req.Flight.Passengers)))
		if req.Flight.ReturnDate != "" {
			fare = fare.Mul(decimal.NewFromInt(2))
		}
		return fare, nil

	case domain.ResourceHotel:
		if req.Hotel == nil {
			return decimal.Zero, errors.New("hotel details are required")
		}
		nights, err := daysBetween(req.Hotel.CheckIn, req.Hotel.CheckOut)
		if err != nil {
			return decimal.Zero, err
		}
		return hotelRatePerRoomNight.Mul(decimal.NewFromInt(int64(req.Hotel.Rooms * nights))), nil

	case domain.ResourceCar:
		if req.Car == nil {
			return decimal.Zero, errors.New("car details are required")
		}
		days, err := daysBetween(req.Car.PickupDate, req.Car.DropoffDate)
		if err != nil {
			return decimal.Zero, err
		}
		rate, ok := carRatePerDay[strings.ToLower(req.Car.CarClass)]
		if !ok {
			return decimal.Zero, errors.Errorf("unknown car class %q", req.Car.CarClass)
		}
		return rate.Mul(decimal.NewFromInt(int64(days))), nil
	}

	return decimal.Zero, errors.Errorf("unknown resource kind %q", s.kind)
}

func daysBetween(from, to string) (int, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return 0, errors.Wrap(err, "invalid start date")
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return 0, errors.Wrap(err, "invalid end date")
	}

	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return 0, errors.New("end date must be after start date")
	}
	return days, nil
}
