package main

import (
	"context"
	"testing"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/draftea/booking-system/shared/events"
	sharedinfra "github.com/draftea/booking-system/shared/infrastructure"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushCounter struct {
	calls int
}

func (f *flushCounter) Flush(ctx context.Context) error {
	f.calls++
	return nil
}

func record(t *testing.T, messageID string, event *events.Event) awsevents.SQSMessage {
	body, err := sharedinfra.EncodeMessage(event)
	require.NoError(t, err)
	return awsevents.SQSMessage{MessageId: messageID, Body: string(body)}
}

func TestSQSHandler_Handle(t *testing.T) {
	var handled []string
	router := events.EventHandlerFunc(func(ctx context.Context, event *events.Event) error {
		id, _ := event.Metadata.Get(sharedinfra.SQSMessageIDKey)
		handled = append(handled, id)
		if id == "msg-2" {
			return errors.New("reservation api unreachable")
		}
		return nil
	})

	flusher := &flushCounter{}
	h := &sqsHandler{router: router, publisher: flusher, logger: logging.Discard()}

	bookingID := models.GenerateUUID()
	response, err := h.Handle(context.Background(), awsevents.SQSEvent{
		Records: []awsevents.SQSMessage{
			record(t, "msg-1", events.NewEvent(bookingID, events.TravelBookingRequestedEvent, map[string]string{"user_id": "u1"})),
			record(t, "msg-2", events.NewEvent(bookingID, events.TravelBookingRequestedEvent, map[string]string{"user_id": "u2"})),
			{MessageId: "msg-3", Body: "garbage"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"msg-1", "msg-2"}, handled)
	require.Len(t, response.BatchItemFailures, 1)
	assert.Equal(t, "msg-2", response.BatchItemFailures[0].ItemIdentifier)
	assert.Equal(t, 1, flusher.calls)
}
