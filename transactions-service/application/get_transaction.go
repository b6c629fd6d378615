package application

import (
	"context"

	"github.com/draftea/booking-system/shared/models"
	"github.com/draftea/booking-system/shared/telemetry"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetTransactionQuery represents the query to get a transaction
type GetTransactionQuery struct {
	TransactionID string `json:"transaction_id"`
}

// GetTransaction use case
type GetTransaction struct {
	transactionRepository domain.TransactionRepository
}

// NewGetTransaction creates a new GetTransaction use case
func NewGetTransaction(transactionRepository domain.TransactionRepository) *GetTransaction {
	return &GetTransaction{
		transactionRepository: transactionRepository,
	}
}

// Execute returns domain.ErrTransactionNotFound for unknown or malformed ids
func (uc *GetTransaction) Execute(ctx context.Context, query *GetTransactionQuery) (*TransactionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "get_transaction",
		trace.WithAttributes(attribute.String("transaction_id", query.TransactionID)),
	)
	defer span.End()

	id, err := models.NewID(query.TransactionID)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrTransactionNotFound, "invalid transaction ID %q", query.TransactionID)
	}

	tx, err := uc.transactionRepository.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to find transaction")
	}

	if tx == nil {
		return nil, domain.ErrTransactionNotFound
	}

	return toTransactionResponse(tx), nil
}
