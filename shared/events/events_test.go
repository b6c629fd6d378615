package events

import (
	"testing"

	"github.com/draftea/booking-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		name    string
		topic   Topic
		pattern Topic
		want    bool
	}{
		{"exact", TravelBookingCreatedEvent, "travel.booking.created", true},
		{"single segment wildcard", TransactionCompletedEvent, "transaction.*", true},
		{"wildcard does not span segments", TransactionTransitionRequestedEvent, "transaction.*", false},
		{"prefix", TravelBookingCompensationFailedEvent, "travel.booking.#", true},
		{"suffix", TravelBookingCompensatedEvent, "#.compensated", true},
		{"contains", TravelBookingCreatedEvent, "#booking#", true},
		{"all", TransactionErrorEvent, "#", true},
		{"different", TransactionErrorEvent, "transaction.canceled", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topic.Matches(tt.pattern))
		})
	}
}

func TestEvent_UnmarshalPayload(t *testing.T) {
	type payload struct {
		BookingID string `json:"booking_id"`
	}

	t.Run("same type is assigned directly", func(t *testing.T) {
		evt := NewEvent(models.GenerateUUID(), TravelBookingCreatedEvent, payload{BookingID: "b-1"})

		var got payload
		require.NoError(t, evt.UnmarshalPayload(&got))
		assert.Equal(t, "b-1", got.BookingID)
	})

	t.Run("raw json is decoded", func(t *testing.T) {
		evt := NewEvent(models.GenerateUUID(), TravelBookingCreatedEvent, []byte(`{"booking_id":"b-2"}`))

		var got payload
		require.NoError(t, evt.UnmarshalPayload(&got))
		assert.Equal(t, "b-2", got.BookingID)
	})

	t.Run("non pointer receiver", func(t *testing.T) {
		evt := NewEvent(models.GenerateUUID(), TravelBookingCreatedEvent, nil)
		assert.ErrorIs(t, evt.UnmarshalPayload(payload{}), ErrInvalidReceiver)
	})
}
