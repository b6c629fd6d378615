package application

import (
	"context"
	"strings"

	"github.com/draftea/booking-system/shared/telemetry"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListUserTransactionsQuery represents the query to list a user's transactions
type ListUserTransactionsQuery struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// ListUserTransactionsResponse represents one page of a user's transactions
type ListUserTransactionsResponse struct {
	UserID       string                 `json:"user_id"`
	Transactions []*TransactionResponse `json:"transactions"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}

// ListUserTransactions use case
type ListUserTransactions struct {
	transactionRepository domain.TransactionRepository
}

// NewListUserTransactions creates a new ListUserTransactions use case
func NewListUserTransactions(transactionRepository domain.TransactionRepository) *ListUserTransactions {
	return &ListUserTransactions{
		transactionRepository: transactionRepository,
	}
}

// Execute lists the user's transactions, newest first
func (uc *ListUserTransactions) Execute(ctx context.Context, query *ListUserTransactionsQuery) (*ListUserTransactionsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "list_user_transactions",
		trace.WithAttributes(attribute.String("user_id", query.UserID)),
	)
	defer span.End()

	if strings.TrimSpace(query.UserID) == "" {
		return nil, errors.Wrap(domain.ErrInvalidTransaction, "user ID is required")
	}
	if query.Offset < 0 {
		return nil, errors.Wrap(domain.ErrInvalidTransaction, "offset must not be negative")
	}

	limit := query.Limit
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	txs, err := uc.transactionRepository.FindByUserID(ctx, query.UserID, limit, query.Offset)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list transactions")
	}

	response := &ListUserTransactionsResponse{
		UserID:       query.UserID,
		Transactions: make([]*TransactionResponse, 0, len(txs)),
		Limit:        limit,
		Offset:       query.Offset,
	}
	for _, tx := range txs {
		response.Transactions = append(response.Transactions, toTransactionResponse(tx))
	}

	span.SetAttributes(attribute.Int("transactions.count", len(txs)))
	return response, nil
}
