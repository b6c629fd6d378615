package domain

import "github.com/pkg/errors"

// TransactionState is the internal lifecycle state of a transaction
type TransactionState string

const (
	StateCreated    TransactionState = "created"
	StateProcessing TransactionState = "processing"
	StateCompleted  TransactionState = "completed"
	StateError      TransactionState = "error"
	StateCanceled   TransactionState = "canceled"
)

// TransactionStatus is the user-facing projection of TransactionState
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusCanceled   TransactionStatus = "canceled"
)

// AllStates lists every lifecycle state
var AllStates = []TransactionState{
	StateCreated,
	StateProcessing,
	StateCompleted,
	StateError,
	StateCanceled,
}

// legalTransitions is the whole lifecycle; any pair not listed is illegal
var legalTransitions = map[TransactionState][]TransactionState{
	StateCreated:    {StateProcessing},
	StateProcessing: {StateCompleted, StateError},
	StateError:      {StateProcessing, StateCanceled},
}

var statusByState = map[TransactionState]TransactionStatus{
	StateCreated:    StatusPending,
	StateProcessing: StatusProcessing,
	StateCompleted:  StatusCompleted,
	StateError:      StatusFailed,
	StateCanceled:   StatusCanceled,
}

func NewTransactionState(state string) (TransactionState, error) {
	s := TransactionState(state)
	if _, ok := statusByState[s]; !ok {
		return "", errors.Errorf("unknown transaction state %q", state)
	}
	return s, nil
}

func (s TransactionState) String() string {
	return string(s)
}

// Status projects the state to the user-facing status
func (s TransactionState) Status() TransactionStatus {
	return statusByState[s]
}

// IsTerminal reports whether no transition leaves this state
func (s TransactionState) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// CanTransition reports whether from -> to is a legal lifecycle step
func CanTransition(from, to TransactionState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
