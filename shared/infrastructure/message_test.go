package infrastructure

import (
	"encoding/json"
	"testing"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingPayload struct {
	BookingID string `json:"booking_id"`
	UserID    string `json:"user_id"`
}

func TestDecodeMessage(t *testing.T) {
	evt := events.NewEvent(models.GenerateUUID(), events.TravelBookingCreatedEvent, bookingPayload{
		BookingID: "b-1",
		UserID:    "u-1",
	}).WithMetadata("source", "booking-service")

	body, err := EncodeMessage(evt)
	require.NoError(t, err)

	notification, err := json.Marshal(map[string]string{
		"Type":      "Notification",
		"MessageId": "sns-1",
		"Message":   string(body),
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		body []byte
	}{
		{"raw delivery", body},
		{"sns notification", notification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeMessage(tt.body)
			require.NoError(t, err)

			assert.Equal(t, evt.ID, decoded.ID)
			assert.Equal(t, evt.AggregateID, decoded.AggregateID)
			assert.Equal(t, events.TravelBookingCreatedEvent, decoded.Topic)
			assert.Equal(t, "booking-service", decoded.Metadata["source"])

			var payload bookingPayload
			require.NoError(t, decoded.UnmarshalPayload(&payload))
			assert.Equal(t, "b-1", payload.BookingID)
		})
	}
}

func TestDecodeMessage_Invalid(t *testing.T) {
	_, err := DecodeMessage([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeMessage([]byte(`{"id":"x","topic":""}`))
	assert.ErrorIs(t, err, events.ErrInvalidTopic)
}
