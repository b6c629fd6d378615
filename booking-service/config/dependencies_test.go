package config

import (
	"testing"

	"github.com/draftea/booking-system/booking-service/domain"
	"github.com/draftea/booking-system/booking-service/infrastructure"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationSteps(t *testing.T) {
	cfg := &Config{
		Reservations: Reservations{
			Hotel: infrastructure.HTTPReservationConfig{Endpoint: "http://hotels.internal"},
		},
	}

	steps := reservationSteps(cfg, logging.Discard())
	require.Len(t, steps, 3)

	assert.Equal(t, domain.ResourceFlight, steps[0].Kind)
	assert.Equal(t, domain.ResourceHotel, steps[1].Kind)
	assert.Equal(t, domain.ResourceCar, steps[2].Kind)

	assert.IsType(t, &infrastructure.SimulatedReservationService{}, steps[0].Capability)
	assert.IsType(t, &infrastructure.HTTPReservationClient{}, steps[1].Capability)
	assert.IsType(t, &infrastructure.SimulatedReservationService{}, steps[2].Capability)
}
