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
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CreateTransactionCommand represents the command to create a transaction.
// TransactionID is optional; callers that need idempotency pass a stable one.
type CreateTransactionCommand struct {
	TransactionID string          `json:"transaction_id,omitempty"`
	UserID        string          `json:"user_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"reference,omitempty"`
}

// CreateTransaction use case
type CreateTransaction struct {
	transactionRepository domain.TransactionRepository
	eventPublisher        events.Publisher
	logger                *slog.Logger
}

// NewCreateTransaction creates a new CreateTransaction use case
func NewCreateTransaction(
	transactionRepository domain.TransactionRepository,
	eventPublisher events.Publisher,
	logger *slog.Logger,
) *CreateTransaction {
	return &CreateTransaction{
		transactionRepository: transactionRepository,
		eventPublisher:        eventPublisher,
		logger:                logger,
	}
}

// Execute creates the transaction in the created state
func (uc *CreateTransaction) Execute(ctx context.Context, cmd *CreateTransactionCommand) (*TransactionResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "create_transaction",
		trace.WithAttributes(
			attribute.String("user_id", cmd.UserID),
			attribute.String("kind", cmd.Kind),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		telemetry.RecordCounter(ctx, "transaction_operations_total", "Total transaction operations", 1,
			attribute.String("operation", "create_transaction"),
			attribute.String("status", status),
		)
		telemetry.RecordHistogram(ctx, "transaction_operation_duration_seconds", "Transaction operation duration", time.Since(start).Seconds(),
			attribute.String("operation", "create_transaction"),
			attribute.String("status", status),
		)
	}()

	kind, err := domain.NewTransactionKind(cmd.Kind)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var id models.ID
	if cmd.TransactionID != "" {
		id, err = models.NewID(cmd.TransactionID)
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(domain.ErrInvalidTransaction, "invalid transaction ID")
		}
	}

	tx, err := domain.NewTransaction(id, cmd.UserID, kind, cmd.Amount, cmd.Reference)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := uc.transactionRepository.Create(ctx, tx); err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrTransactionAlreadyExists) {
			status = "duplicate"
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to create transaction")
	}

	if err := uc.eventPublisher.Publish(ctx, tx.Events()...); err != nil {
		uc.logger.ErrorContext(ctx, "failed to publish transaction events",
			"transaction_id", tx.ID.String(),
			"error", err,
		)
	}
	tx.ClearEvents()

	span.SetAttributes(attribute.String("transaction_id", tx.ID.String()))
	uc.logger.InfoContext(ctx, "transaction created",
		"transaction_id", tx.ID.String(),
		"user_id", tx.UserID,
		"kind", tx.Kind,
		"amount", tx.Amount.String(),
	)

	status = "success"
	return toTransactionResponse(tx), nil
}
