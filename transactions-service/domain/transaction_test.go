package domain

import (
	"testing"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(t *testing.T) *Transaction {
	tx, err := NewTransaction("", "user-1", KindDeposit, decimal.RequireFromString("150.00"), "")
	require.NoError(t, err)
	tx.ClearEvents()
	return tx
}

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction("", "user-1", KindTravelBooking, decimal.NewFromInt(870), "booking-1")
	require.NoError(t, err)

	assert.False(t, tx.ID.IsZero())
	assert.Equal(t, StateCreated, tx.State())
	assert.Equal(t, StatusPending, tx.Status())
	assert.Nil(t, tx.CompletedAt)
	assert.Equal(t, 1, tx.Version.Value)

	require.Len(t, tx.Events(), 1)
	assert.Equal(t, events.TransactionCreatedEvent, tx.Events()[0].Topic)
}

func TestNewTransaction_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		kind   TransactionKind
		amount decimal.Decimal
	}{
		{"missing user", "", KindDeposit, decimal.NewFromInt(1)},
		{"zero amount", "user-1", KindDeposit, decimal.Zero},
		{"negative amount", "user-1", KindDeposit, decimal.NewFromInt(-5)},
		{"unknown kind", "user-1", TransactionKind("refund"), decimal.NewFromInt(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransaction("", tt.userID, tt.kind, tt.amount, "")
			assert.ErrorIs(t, err, ErrInvalidTransaction)
		})
	}
}

func TestTransaction_Lifecycle(t *testing.T) {
	tx := newTestTransaction(t)

	require.NoError(t, tx.Transition(StateProcessing))
	assert.Equal(t, StatusProcessing, tx.Status())
	assert.Nil(t, tx.CompletedAt)

	require.NoError(t, tx.Transition(StateError))
	assert.Equal(t, StatusFailed, tx.Status())
	assert.Nil(t, tx.CompletedAt)

	// retry
	require.NoError(t, tx.Transition(StateProcessing))
	require.NoError(t, tx.Transition(StateCompleted))
	assert.Equal(t, StatusCompleted, tx.Status())
	require.NotNil(t, tx.CompletedAt)
	assert.Equal(t, 5, tx.Version.Value)

	topics := make([]events.Topic, 0, len(tx.Events()))
	for _, e := range tx.Events() {
		topics = append(topics, e.Topic)
	}
	assert.Equal(t, []events.Topic{
		events.TransactionProcessingEvent,
		events.TransactionErrorEvent,
		events.TransactionProcessingEvent,
		events.TransactionCompletedEvent,
	}, topics)

	var data TransactionStateChangedData
	require.NoError(t, tx.Events()[3].UnmarshalPayload(&data))
	assert.Equal(t, StateProcessing, data.FromState)
	assert.Equal(t, StateCompleted, data.ToState)
	assert.Equal(t, StatusCompleted, data.Status)
}

func TestTransaction_IllegalTransitionLeavesRecordUnchanged(t *testing.T) {
	tx := newTestTransaction(t)
	before := *tx

	err := tx.Transition(StateCompleted)

	var transitionErr *TransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, StateCreated, transitionErr.From)
	assert.Equal(t, StateCompleted, transitionErr.To)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "invalid transition from created to completed", err.Error())

	assert.Equal(t, StateCreated, tx.State())
	assert.Equal(t, before.Version, tx.Version)
	assert.Nil(t, tx.CompletedAt)
	assert.Empty(t, tx.Events())
}

func TestTransaction_TerminalStatesAreImmutable(t *testing.T) {
	completed := newTestTransaction(t)
	require.NoError(t, completed.Transition(StateProcessing))
	require.NoError(t, completed.Transition(StateCompleted))
	completedAt := *completed.CompletedAt

	canceled := newTestTransaction(t)
	require.NoError(t, canceled.Transition(StateProcessing))
	require.NoError(t, canceled.Transition(StateError))
	require.NoError(t, canceled.Transition(StateCanceled))

	for _, target := range AllStates {
		assert.ErrorIs(t, completed.Transition(target), ErrInvalidTransition)
		assert.ErrorIs(t, canceled.Transition(target), ErrInvalidTransition)
	}

	assert.Equal(t, StateCompleted, completed.State())
	assert.Equal(t, completedAt, *completed.CompletedAt)
	assert.Equal(t, StateCanceled, canceled.State())
	assert.Nil(t, canceled.CompletedAt)
}

func TestRehydrateTransaction(t *testing.T) {
	id := models.GenerateUUID()
	tx := RehydrateTransaction(id, "user-1", KindOther, decimal.NewFromInt(3), "", StateError, models.NewTimestamps(), nil, models.Version{Value: 4})

	assert.Equal(t, StateError, tx.State())
	assert.Equal(t, StatusFailed, tx.Status())
	assert.Empty(t, tx.Events())

	require.NoError(t, tx.Transition(StateCanceled))
	assert.Equal(t, 5, tx.Version.Value)
}
