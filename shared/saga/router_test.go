package saga

import (
	"context"
	"testing"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestChoreographyEventRouter_Handle(t *testing.T) {
	router := NewChoreographyEventRouter(logging.Discard())

	var got []string
	record := func(name string, err error) events.EventHandler {
		return events.EventHandlerFunc(func(ctx context.Context, event *events.Event) error {
			got = append(got, name)
			return err
		})
	}

	failure := errors.New("store unavailable")
	router.RegisterHandler(events.TravelBookingCreatedEvent, record("created", nil))
	router.RegisterHandler("travel.booking.#", record("all-bookings", failure))
	router.RegisterHandler("transaction.*", record("transactions", nil))

	err := router.Handle(context.Background(), events.NewEvent(models.GenerateUUID(), events.TravelBookingCreatedEvent, nil))
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, []string{"created", "all-bookings"}, got)

	got = nil
	err = router.Handle(context.Background(), events.NewEvent(models.GenerateUUID(), events.TransactionCompletedEvent, nil))
	assert.NoError(t, err)
	assert.Equal(t, []string{"transactions"}, got)

	got = nil
	err = router.Handle(context.Background(), events.NewEvent(models.GenerateUUID(), "unrelated.topic", nil))
	assert.NoError(t, err)
	assert.Empty(t, got)
}
