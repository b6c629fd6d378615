package domain

import (
	"context"
	"time"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// TransactionKind classifies what a transaction is for
type TransactionKind string

const (
	KindDeposit            TransactionKind = "deposit"
	KindWithdrawal         TransactionKind = "withdrawal"
	KindSubscriptionCharge TransactionKind = "subscription_charge"
	KindTravelBooking      TransactionKind = "travel_booking"
	KindOther              TransactionKind = "other"
)

func NewTransactionKind(kind string) (TransactionKind, error) {
	switch k := TransactionKind(kind); k {
	case KindDeposit, KindWithdrawal, KindSubscriptionCharge, KindTravelBooking, KindOther:
		return k, nil
	}
	return "", errors.Wrapf(ErrInvalidTransaction, "unknown transaction kind %q", kind)
}

// Transaction aggregate root. The lifecycle state only changes through Transition.
type Transaction struct {
	ID          models.ID
	UserID      string
	Kind        TransactionKind
	Amount      decimal.Decimal
	Reference   string
	CompletedAt *time.Time
	Timestamps  models.Timestamps
	Version     models.Version

	state  TransactionState
	events []*events.Event
}

// NewTransaction creates a transaction in the created state
func NewTransaction(id models.ID, userID string, kind TransactionKind, amount decimal.Decimal, reference string) (*Transaction, error) {
	if userID == "" {
		return nil, errors.Wrap(ErrInvalidTransaction, "user ID is required")
	}
	if !amount.IsPositive() {
		return nil, errors.Wrap(ErrInvalidTransaction, "amount must be positive")
	}
	if _, err := NewTransactionKind(string(kind)); err != nil {
		return nil, err
	}
	if id.IsZero() {
		id = models.GenerateUUID()
	}

	tx := &Transaction{
		ID:         id,
		UserID:     userID,
		Kind:       kind,
		Amount:     amount,
		Reference:  reference,
		Timestamps: models.NewTimestamps(),
		Version:    models.NewVersion(),
		state:      StateCreated,
	}

	tx.recordEvent(tx.stateChangedEvent("", StateCreated))
	return tx, nil
}

// RehydrateTransaction rebuilds a stored transaction without recording events
func RehydrateTransaction(
	id models.ID,
	userID string,
	kind TransactionKind,
	amount decimal.Decimal,
	reference string,
	state TransactionState,
	timestamps models.Timestamps,
	completedAt *time.Time,
	version models.Version,
) *Transaction {
	return &Transaction{
		ID:          id,
		UserID:      userID,
		Kind:        kind,
		Amount:      amount,
		Reference:   reference,
		CompletedAt: completedAt,
		Timestamps:  timestamps,
		Version:     version,
		state:       state,
	}
}

func (t *Transaction) State() TransactionState {
	return t.state
}

func (t *Transaction) Status() TransactionStatus {
	return t.state.Status()
}

// Transition moves the transaction to target. An illegal pair returns a
// *TransitionError and leaves the transaction untouched.
func (t *Transaction) Transition(target TransactionState) error {
	from := t.state
	if !CanTransition(from, target) {
		return &TransitionError{From: from, To: target}
	}

	t.state = target
	if target == StateCompleted && t.CompletedAt == nil {
		completedAt := time.Now().UTC()
		t.CompletedAt = &completedAt
	}
	t.Timestamps = t.Timestamps.Update()
	t.Version = t.Version.Update()

	t.recordEvent(t.stateChangedEvent(from, target))
	return nil
}

// Events returns domain events
func (t *Transaction) Events() []*events.Event {
	return t.events
}

// ClearEvents clears domain events
func (t *Transaction) ClearEvents() {
	t.events = make([]*events.Event, 0)
}

func (t *Transaction) recordEvent(event *events.Event) {
	t.events = append(t.events, event.WithMetadata("user_id", t.UserID))
}

func (t *Transaction) stateChangedEvent(from, to TransactionState) *events.Event {
	return events.NewEvent(t.ID, StateTopic(to), TransactionStateChangedData{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Kind:          t.Kind,
		Amount:        t.Amount,
		Reference:     t.Reference,
		FromState:     from,
		ToState:       to,
		Status:        to.Status(),
		OccurredAt:    t.Timestamps.UpdatedAt,
	})
}

// StateTopic is the lifecycle event topic for entering state
func StateTopic(state TransactionState) events.Topic {
	switch state {
	case StateCreated:
		return events.TransactionCreatedEvent
	case StateProcessing:
		return events.TransactionProcessingEvent
	case StateCompleted:
		return events.TransactionCompletedEvent
	case StateError:
		return events.TransactionErrorEvent
	case StateCanceled:
		return events.TransactionCanceledEvent
	}
	return events.Topic("transaction." + state.String())
}

// Event Data Structures
type TransactionStateChangedData struct {
	TransactionID models.ID         `json:"transaction_id"`
	UserID        string            `json:"user_id"`
	Kind          TransactionKind   `json:"kind"`
	Amount        decimal.Decimal   `json:"amount"`
	Reference     string            `json:"reference,omitempty"`
	FromState     TransactionState  `json:"from_state,omitempty"`
	ToState       TransactionState  `json:"to_state"`
	Status        TransactionStatus `json:"status"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// TransitionRequestedData asks for a lifecycle transition asynchronously
type TransitionRequestedData struct {
	TransactionID models.ID        `json:"transaction_id"`
	TargetState   TransactionState `json:"target_state"`
}

// TransactionRepository persists transactions. Update is a compare-and-swap on
// the stored version; FindByID returns nil, nil when the id is unknown.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, tx *Transaction, expectedVersion int) error
	FindByID(ctx context.Context, id models.ID) (*Transaction, error)
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*Transaction, error)
}
