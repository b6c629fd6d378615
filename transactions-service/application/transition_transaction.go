package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/models"
	"github.com/draftea/booking-system/shared/telemetry"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTransitionAttempts = 3

// TransitionTransactionCommand represents the command to move a transaction
// to another lifecycle state
type TransitionTransactionCommand struct {
	TransactionID string `json:"transaction_id"`
	TargetState   string `json:"target_state"`
}

// TransitionTransaction applies the lifecycle state machine to a stored
// transaction. Transitions on the same id are serialized in process by a
// keyed lock and across processes by the repository's version check.
type TransitionTransaction struct {
	transactionRepository domain.TransactionRepository
	eventPublisher        events.Publisher
	locks                 *keyedMutex
	maxAttempts           int
	logger                *slog.Logger
}

// NewTransitionTransaction creates a new TransitionTransaction use case.
// maxAttempts bounds the re-read loop on version conflicts.
func NewTransitionTransaction(
	transactionRepository domain.TransactionRepository,
	eventPublisher events.Publisher,
	maxAttempts int,
	logger *slog.Logger,
) *TransitionTransaction {
	if maxAttempts <= 0 {
		maxAttempts = defaultTransitionAttempts
	}

	return &TransitionTransaction{
		transactionRepository: transactionRepository,
		eventPublisher:        eventPublisher,
		locks:                 newKeyedMutex(),
		maxAttempts:           maxAttempts,
		logger:                logger,
	}
}

// Execute returns domain.ErrTransactionNotFound, a *domain.TransitionError or,
// once attempts are exhausted, domain.ErrVersionConflict
func (uc *TransitionTransaction) Execute(ctx context.Context, cmd *TransitionTransactionCommand) (*TransactionResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "transition_transaction",
		trace.WithAttributes(
			attribute.String("transaction_id", cmd.TransactionID),
			attribute.String("target_state", cmd.TargetState),
		),
	)
	defer span.End()

	target, err := domain.NewTransactionState(cmd.TargetState)
	if err != nil {
		return nil, errors.Wrap(domain.ErrInvalidTransaction, err.Error())
	}

	id, err := models.NewID(cmd.TransactionID)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrTransactionNotFound, "invalid transaction ID %q", cmd.TransactionID)
	}

	unlock := uc.locks.Lock(id.String())
	defer unlock()

	var (
		tx   *domain.Transaction
		from domain.TransactionState
	)
	for attempt := 1; ; attempt++ {
		tx, from, err = uc.apply(ctx, id, target)
		if err == nil || !errors.Is(err, domain.ErrVersionConflict) || attempt >= uc.maxAttempts {
			break
		}
		uc.logger.WarnContext(ctx, "transaction changed concurrently, retrying",
			"transaction_id", id.String(),
			"attempt", attempt,
		)
	}

	outcome := "success"
	if err != nil {
		outcome = transitionOutcome(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	telemetry.RecordCounter(ctx, "transaction_transitions_total", "Transaction lifecycle transitions", 1,
		attribute.String("from", from.String()),
		attribute.String("to", target.String()),
		attribute.String("status", outcome),
	)
	telemetry.RecordHistogram(ctx, "transaction_operation_duration_seconds", "Transaction operation duration", time.Since(start).Seconds(),
		attribute.String("operation", "transition_transaction"),
		attribute.String("status", outcome),
	)

	if err != nil {
		return nil, err
	}

	uc.publish(ctx, tx)

	uc.logger.InfoContext(ctx, "transaction transitioned",
		"transaction_id", tx.ID.String(),
		"from", from,
		"to", target,
		"status", tx.Status(),
	)
	return toTransactionResponse(tx), nil
}

// apply reads, validates and conditionally writes one transition
func (uc *TransitionTransaction) apply(ctx context.Context, id models.ID, target domain.TransactionState) (*domain.Transaction, domain.TransactionState, error) {
	tx, err := uc.transactionRepository.FindByID(ctx, id)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to find transaction")
	}
	if tx == nil {
		return nil, "", domain.ErrTransactionNotFound
	}

	from := tx.State()
	expectedVersion := tx.Version.Value

	if err := tx.Transition(target); err != nil {
		return nil, from, err
	}

	if err := uc.transactionRepository.Update(ctx, tx, expectedVersion); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, from, err
		}
		return nil, from, errors.Wrap(err, "failed to update transaction")
	}

	return tx, from, nil
}

func (uc *TransitionTransaction) publish(ctx context.Context, tx *domain.Transaction) {
	if err := uc.eventPublisher.Publish(ctx, tx.Events()...); err != nil {
		uc.logger.ErrorContext(ctx, "failed to publish transaction events",
			"transaction_id", tx.ID.String(),
			"error", err,
		)
	}
	tx.ClearEvents()
}

func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrTransactionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrVersionConflict):
		return "conflict"
	}
	return "error"
}
