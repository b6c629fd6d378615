package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionAlreadyExists = errors.New("transaction already exists")
	ErrInvalidTransition        = errors.New("invalid transition")
	ErrVersionConflict          = errors.New("transaction was modified concurrently")
	ErrInvalidTransaction       = errors.New("invalid transaction")
)

// TransitionError is an illegal lifecycle transition. It matches ErrInvalidTransition.
type TransitionError struct {
	From TransactionState
	To   TransactionState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
