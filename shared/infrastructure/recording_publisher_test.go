package infrastructure_test

import (
	"context"
	"testing"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/infrastructure"
	"github.com/draftea/booking-system/shared/mocks"
	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRecordingPublisher_Publish(t *testing.T) {
	bookingA := models.GenerateUUID()
	bookingB := models.GenerateUUID()

	a1 := events.NewEvent(bookingA, events.TravelBookingCompensationFailedEvent, nil)
	b1 := events.NewEvent(bookingB, events.TravelBookingCreatedEvent, nil)
	a2 := events.NewEvent(bookingA, events.TravelBookingCompensatedEvent, nil)

	tests := []struct {
		name       string
		setupMocks func(*mocks.MockEventStore, *mocks.MockPublisher)
		wantErr    bool
	}{
		{
			name: "records per aggregate then forwards",
			setupMocks: func(store *mocks.MockEventStore, next *mocks.MockPublisher) {
				store.EXPECT().AppendEvents(mock.Anything, bookingA, []*events.Event{a1, a2}).Return(nil).Once()
				store.EXPECT().AppendEvents(mock.Anything, bookingB, []*events.Event{b1}).Return(nil).Once()
				next.EXPECT().Publish(mock.Anything, a1, b1, a2).Return(nil).Once()
			},
		},
		{
			name: "store failure stops forwarding",
			setupMocks: func(store *mocks.MockEventStore, next *mocks.MockPublisher) {
				store.EXPECT().AppendEvents(mock.Anything, bookingA, mock.Anything).Return(errors.New("db down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockEventStore(t)
			next := mocks.NewMockPublisher(t)
			tt.setupMocks(store, next)

			err := infrastructure.NewRecordingPublisher(store, next).Publish(context.Background(), a1, b1, a2)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
