package application

import (
	"time"

	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/shopspring/decimal"
)

// TransactionResponse represents a transaction as returned to callers
type TransactionResponse struct {
	ID          string                   `json:"id"`
	UserID      string                   `json:"user_id"`
	Kind        domain.TransactionKind   `json:"kind"`
	Amount      decimal.Decimal          `json:"amount"`
	Reference   string                   `json:"reference,omitempty"`
	State       domain.TransactionState  `json:"state"`
	Status      domain.TransactionStatus `json:"status"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	CompletedAt *time.Time               `json:"completed_at"`
	Version     int                      `json:"version"`
}

func toTransactionResponse(tx *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:          tx.ID.String(),
		UserID:      tx.UserID,
		Kind:        tx.Kind,
		Amount:      tx.Amount,
		Reference:   tx.Reference,
		State:       tx.State(),
		Status:      tx.Status(),
		CreatedAt:   tx.Timestamps.CreatedAt,
		UpdatedAt:   tx.Timestamps.UpdatedAt,
		CompletedAt: tx.CompletedAt,
		Version:     tx.Version.Value,
	}
}
