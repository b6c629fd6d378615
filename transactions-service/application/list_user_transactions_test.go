package application

import (
	"context"
	"testing"

	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/draftea/booking-system/transactions-service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestListUserTransactions_Execute(t *testing.T) {
	tests := []struct {
		name          string
		query         *ListUserTransactionsQuery
		setupMocks    func(*mocks.MockTransactionRepository)
		expectedErr   error
		expectedLimit int
		expectedCount int
	}{
		{
			name:  "default limit",
			query: &ListUserTransactionsQuery{UserID: "user-1"},
			setupMocks: func(repo *mocks.MockTransactionRepository) {
				repo.EXPECT().FindByUserID(mock.Anything, "user-1", 50, 0).
					Return([]*domain.Transaction{storedTransaction(domain.StateCreated, 1)}, nil).Once()
			},
			expectedLimit: 50,
			expectedCount: 1,
		},
		{
			name:  "limit is capped",
			query: &ListUserTransactionsQuery{UserID: "user-1", Limit: 1000, Offset: 20},
			setupMocks: func(repo *mocks.MockTransactionRepository) {
				repo.EXPECT().FindByUserID(mock.Anything, "user-1", 200, 20).Return(nil, nil).Once()
			},
			expectedLimit: 200,
			expectedCount: 0,
		},
		{
			name:        "missing user",
			query:       &ListUserTransactionsQuery{UserID: " "},
			setupMocks:  func(repo *mocks.MockTransactionRepository) {},
			expectedErr: domain.ErrInvalidTransaction,
		},
		{
			name:        "negative offset",
			query:       &ListUserTransactionsQuery{UserID: "user-1", Offset: -1},
			setupMocks:  func(repo *mocks.MockTransactionRepository) {},
			expectedErr: domain.ErrInvalidTransaction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockTransactionRepository(t)
			tt.setupMocks(repo)

			result, err := NewListUserTransactions(repo).Execute(context.Background(), tt.query)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedLimit, result.Limit)
			assert.NotNil(t, result.Transactions)
			assert.Len(t, result.Transactions, tt.expectedCount)
		})
	}
}
