package application

import (
	"context"
	"testing"

	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/draftea/booking-system/transactions-service/mocks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetTransaction_Execute(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		setupMocks  func(*mocks.MockTransactionRepository)
		expectedErr error
	}{
		{
			name: "found",
			id:   transactionID.String(),
			setupMocks: func(repo *mocks.MockTransactionRepository) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateError, 3), nil).Once()
			},
		},
		{
			name: "not found",
			id:   transactionID.String(),
			setupMocks: func(repo *mocks.MockTransactionRepository) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(nil, nil).Once()
			},
			expectedErr: domain.ErrTransactionNotFound,
		},
		{
			name:        "malformed id",
			id:          "nope",
			setupMocks:  func(repo *mocks.MockTransactionRepository) {},
			expectedErr: domain.ErrTransactionNotFound,
		},
		{
			name: "repository failure",
			id:   transactionID.String(),
			setupMocks: func(repo *mocks.MockTransactionRepository) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(nil, errors.New("timeout")).Once()
			},
			expectedErr: errors.New("failed to find transaction: timeout"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockTransactionRepository(t)
			tt.setupMocks(repo)

			result, err := NewGetTransaction(repo).Execute(context.Background(), &GetTransactionQuery{TransactionID: tt.id})

			if tt.expectedErr != nil {
				require.Error(t, err)
				if !errors.Is(err, tt.expectedErr) {
					assert.EqualError(t, err, tt.expectedErr.Error())
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, transactionID.String(), result.ID)
			assert.Equal(t, domain.StateError, result.State)
			assert.Equal(t, domain.StatusFailed, result.Status)
			assert.Equal(t, 3, result.Version)
		})
	}
}
