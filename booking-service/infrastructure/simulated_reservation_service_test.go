package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/draftea/booking-system/booking-service/domain"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedReservationService_Reserve(t *testing.T) {
	tests := []struct {
		name       string
		kind       domain.ResourceKind
		req        *domain.ReservationRequest
		wantID     string
		wantAmount int64
	}{
		{
			name:       "round trip flight",
			kind:       domain.ResourceFlight,
			req:        &domain.ReservationRequest{Currency: "USD", Flight: &domain.FlightDetails{Passengers: 2, ReturnDate: "2026-03-10"}},
			wantID:     "FLT-1",
			wantAmount: 1000,
		},
		{
			name:       "hotel nights times rooms",
			kind:       domain.ResourceHotel,
			req:        &domain.ReservationRequest{Currency: "USD", Hotel: &domain.HotelDetails{CheckIn: "2026-03-01", CheckOut: "2026-03-04", Rooms: 2}},
			wantID:     "HTL-1",
			wantAmount: 720,
		},
		{
			name:       "suv for two days",
			kind:       domain.ResourceCar,
			req:        &domain.ReservationRequest{Currency: "USD", Car: &domain.CarDetails{PickupDate: "2026-03-01", DropoffDate: "2026-03-03", CarClass: "SUV"}},
			wantID:     "CAR-1",
			wantAmount: 170,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSimulatedReservationService(tt.kind, SimulationConfig{}, logging.Discard())

			result, err := svc.Reserve(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, result.ReservationID)
			assert.True(t, result.Amount.Equal(decimal.NewFromInt(tt.wantAmount)), result.Amount.String())
			assert.Equal(t, "USD", result.Currency)
			assert.NotEmpty(t, result.ConfirmationCode)
		})
	}
}

func TestSimulatedReservationService_SequentialIDs(t *testing.T) {
	svc := NewSimulatedReservationService(domain.ResourceFlight, SimulationConfig{}, logging.Discard())
	req := &domain.ReservationRequest{Flight: &domain.FlightDetails{Passengers: 1}}

	first, err := svc.Reserve(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Reserve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "FLT-1", first.ReservationID)
	assert.Equal(t, "FLT-2", second.ReservationID)
}

func TestSimulatedReservationService_Failures(t *testing.T) {
	svc := NewSimulatedReservationService(domain.ResourceHotel, SimulationConfig{FailResources: []string{"HOTEL"}}, logging.Discard())

	_, err := svc.Reserve(context.Background(), &domain.ReservationRequest{Hotel: &domain.HotelDetails{}})
	var failure *domain.ReservationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "Hotel fully booked", failure.Message)

	custom := NewSimulatedReservationService(domain.ResourceCar, SimulationConfig{
		FailResources:  []string{"car"},
		FailureMessage: "depot closed",
	}, logging.Discard())
	_, err = custom.Reserve(context.Background(), &domain.ReservationRequest{Car: &domain.CarDetails{}})
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "depot closed", failure.Message)
}

func TestSimulatedReservationService_Cancel(t *testing.T) {
	svc := NewSimulatedReservationService(domain.ResourceFlight, SimulationConfig{}, logging.Discard())
	result, err := svc.Reserve(context.Background(), &domain.ReservationRequest{Flight: &domain.FlightDetails{Passengers: 1}})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), result.ReservationID))
	stored, ok := svc.Reservation(result.ReservationID)
	require.True(t, ok)
	assert.Equal(t, "canceled", stored.Status)

	assert.ErrorIs(t, svc.Cancel(context.Background(), "FLT-99"), ErrReservationNotFound)

	failing := NewSimulatedReservationService(domain.ResourceFlight, SimulationConfig{FailCancels: []string{"flight"}}, logging.Discard())
	assert.Error(t, failing.Cancel(context.Background(), "FLT-1"))
}

func TestSimulatedReservationService_LatencyHonoursContext(t *testing.T) {
	svc := NewSimulatedReservationService(domain.ResourceFlight, SimulationConfig{Latency: time.Minute}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Reserve(ctx, &domain.ReservationRequest{Flight: &domain.FlightDetails{Passengers: 1}})
	var failure *domain.ReservationFailure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, failure.Message, "context canceled")
}
