package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/draftea/booking-system/shared/events"
	"github.com/draftea/booking-system/shared/logging"
	"github.com/draftea/booking-system/shared/models"
	sharedmocks "github.com/draftea/booking-system/shared/mocks"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/draftea/booking-system/transactions-service/infrastructure"
	"github.com/draftea/booking-system/transactions-service/mocks"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var transactionID = models.ID("8d3e4f7a-2b1c-4d5e-9f60-7a8b9c0d1e2f")

func storedTransaction(state domain.TransactionState, version int) *domain.Transaction {
	now := time.Now().UTC()
	return domain.RehydrateTransaction(
		transactionID,
		"user-1",
		domain.KindDeposit,
		decimal.NewFromInt(100),
		"",
		state,
		models.Timestamps{CreatedAt: now, UpdatedAt: now},
		nil,
		models.Version{Value: version},
	)
}

func eventTopic(topic events.Topic) interface{} {
	return mock.MatchedBy(func(e *events.Event) bool {
		return e.Topic == topic
	})
}

func TestTransitionTransaction_Execute(t *testing.T) {
	tests := []struct {
		name          string
		target        string
		setupMocks    func(*mocks.MockTransactionRepository, *sharedmocks.MockPublisher)
		expectedErr   error
		expectedState domain.TransactionState
		expectedStat  domain.TransactionStatus
	}{
		{
			name:   "created to processing",
			target: "processing",
			setupMocks: func(repo *mocks.MockTransactionRepository, publisher *sharedmocks.MockPublisher) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateCreated, 1), nil).Once()
				repo.EXPECT().Update(mock.Anything, mock.MatchedBy(func(tx *domain.Transaction) bool {
					return tx.State() == domain.StateProcessing && tx.Version.Value == 2
				}), 1).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, eventTopic(events.TransactionProcessingEvent)).Return(nil).Once()
			},
			expectedState: domain.StateProcessing,
			expectedStat:  domain.StatusProcessing,
		},
		{
			name:   "created to completed is rejected without writing",
			target: "completed",
			setupMocks: func(repo *mocks.MockTransactionRepository, publisher *sharedmocks.MockPublisher) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateCreated, 1), nil).Once()
			},
			expectedErr: domain.ErrInvalidTransition,
		},
		{
			name:   "error to processing retries",
			target: "processing",
			setupMocks: func(repo *mocks.MockTransactionRepository, publisher *sharedmocks.MockPublisher) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateError, 3), nil).Once()
				repo.EXPECT().Update(mock.Anything, mock.Anything, 3).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, eventTopic(events.TransactionProcessingEvent)).Return(nil).Once()
			},
			expectedState: domain.StateProcessing,
			expectedStat:  domain.StatusProcessing,
		},
		{
			name:   "processing to completed",
			target: "completed",
			setupMocks: func(repo *mocks.MockTransactionRepository, publisher *sharedmocks.MockPublisher) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateProcessing, 2), nil).Once()
				repo.EXPECT().Update(mock.Anything, mock.MatchedBy(func(tx *domain.Transaction) bool {
					return tx.CompletedAt != nil
				}), 2).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, eventTopic(events.TransactionCompletedEvent)).Return(nil).Once()
			},
			expectedState: domain.StateCompleted,
			expectedStat:  domain.StatusCompleted,
		},
		{
			name:   "canceled is terminal",
			target: "processing",
			setupMocks: func(repo *mocks.MockTransactionRepository, publisher *sharedmocks.MockPublisher) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateCanceled, 4), nil).Once()
			},
			expectedErr: domain.ErrInvalidTransition,
		},
		{
			name:   "unknown transaction",
			target: "processing",
			setupMocks: func(repo *mocks.MockTransactionRepository, publisher *sharedmocks.MockPublisher) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(nil, nil).Once()
			},
			expectedErr: domain.ErrTransactionNotFound,
		},
		{
			name:        "unknown target state",
			target:      "refunded",
			setupMocks:  func(repo *mocks.MockTransactionRepository, publisher *sharedmocks.MockPublisher) {},
			expectedErr: domain.ErrInvalidTransaction,
		},
		{
			name:   "repository failure",
			target: "processing",
			setupMocks: func(repo *mocks.MockTransactionRepository, publisher *sharedmocks.MockPublisher) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(nil, errors.New("connection reset")).Once()
			},
			expectedErr: errors.New("failed to find transaction: connection reset"),
		},
		{
			name:   "publish failure does not fail the transition",
			target: "processing",
			setupMocks: func(repo *mocks.MockTransactionRepository, publisher *sharedmocks.MockPublisher) {
				repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateCreated, 1), nil).Once()
				repo.EXPECT().Update(mock.Anything, mock.Anything, 1).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
			},
			expectedState: domain.StateProcessing,
			expectedStat:  domain.StatusProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockTransactionRepository(t)
			publisher := sharedmocks.NewMockPublisher(t)
			tt.setupMocks(repo, publisher)

			uc := NewTransitionTransaction(repo, publisher, 3, logging.Discard())
			result, err := uc.Execute(context.Background(), &TransitionTransactionCommand{
				TransactionID: transactionID.String(),
				TargetState:   tt.target,
			})

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.Nil(t, result)
				if errors.Is(err, tt.expectedErr) {
					return
				}
				assert.EqualError(t, err, tt.expectedErr.Error())
				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.expectedState, result.State)
			assert.Equal(t, tt.expectedStat, result.Status)
		})
	}
}

func TestTransitionTransaction_Execute_RejectedTransitionReportsStates(t *testing.T) {
	repo := mocks.NewMockTransactionRepository(t)
	publisher := sharedmocks.NewMockPublisher(t)
	repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateCreated, 1), nil).Once()

	uc := NewTransitionTransaction(repo, publisher, 3, logging.Discard())
	_, err := uc.Execute(context.Background(), &TransitionTransactionCommand{
		TransactionID: transactionID.String(),
		TargetState:   "completed",
	})

	var transitionErr *domain.TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.StateCreated, transitionErr.From)
	assert.Equal(t, domain.StateCompleted, transitionErr.To)
}

func TestTransitionTransaction_Execute_InvalidID(t *testing.T) {
	repo := mocks.NewMockTransactionRepository(t)
	publisher := sharedmocks.NewMockPublisher(t)

	uc := NewTransitionTransaction(repo, publisher, 3, logging.Discard())
	_, err := uc.Execute(context.Background(), &TransitionTransactionCommand{
		TransactionID: "not-a-uuid",
		TargetState:   "processing",
	})

	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestTransitionTransaction_Execute_RetriesVersionConflict(t *testing.T) {
	repo := mocks.NewMockTransactionRepository(t)
	publisher := sharedmocks.NewMockPublisher(t)

	// another writer moved the record between our read and write
	repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateProcessing, 2), nil).Once()
	repo.EXPECT().Update(mock.Anything, mock.Anything, 2).Return(domain.ErrVersionConflict).Once()
	repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateError, 3), nil).Once()
	repo.EXPECT().Update(mock.Anything, mock.Anything, 3).Return(nil).Once()
	publisher.EXPECT().Publish(mock.Anything, eventTopic(events.TransactionCanceledEvent)).Return(nil).Once()

	uc := NewTransitionTransaction(repo, publisher, 3, logging.Discard())
	result, err := uc.Execute(context.Background(), &TransitionTransactionCommand{
		TransactionID: transactionID.String(),
		TargetState:   "canceled",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StateCanceled, result.State)
	assert.Equal(t, 4, result.Version)
}

func TestTransitionTransaction_Execute_ConflictAfterRereadIsRejected(t *testing.T) {
	repo := mocks.NewMockTransactionRepository(t)
	publisher := sharedmocks.NewMockPublisher(t)

	repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateCreated, 1), nil).Once()
	repo.EXPECT().Update(mock.Anything, mock.Anything, 1).Return(domain.ErrVersionConflict).Once()
	repo.EXPECT().FindByID(mock.Anything, transactionID).Return(storedTransaction(domain.StateProcessing, 2), nil).Once()

	uc := NewTransitionTransaction(repo, publisher, 3, logging.Discard())
	_, err := uc.Execute(context.Background(), &TransitionTransactionCommand{
		TransactionID: transactionID.String(),
		TargetState:   "processing",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionTransaction_Execute_ConflictAttemptsExhausted(t *testing.T) {
	repo := mocks.NewMockTransactionRepository(t)
	publisher := sharedmocks.NewMockPublisher(t)

	repo.EXPECT().FindByID(mock.Anything, transactionID).
		RunAndReturn(func(ctx context.Context, id models.ID) (*domain.Transaction, error) {
			return storedTransaction(domain.StateCreated, 1), nil
		}).Times(2)
	repo.EXPECT().Update(mock.Anything, mock.Anything, 1).Return(domain.ErrVersionConflict).Times(2)

	uc := NewTransitionTransaction(repo, publisher, 2, logging.Discard())
	_, err := uc.Execute(context.Background(), &TransitionTransactionCommand{
		TransactionID: transactionID.String(),
		TargetState:   "processing",
	})

	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestTransitionTransaction_Execute_ConcurrentTransitions(t *testing.T) {
	tests := []struct {
		name      string
		instances int
	}{
		{name: "single instance", instances: 1},
		{name: "separate instances sharing a store", instances: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := infrastructure.NewMemoryTransactionRepository()
			publisher := sharedmocks.NewMockPublisher(t)
			publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil).Maybe()

			tx, err := domain.NewTransaction("", "user-1", domain.KindDeposit, decimal.NewFromInt(10), "")
			require.NoError(t, err)
			require.NoError(t, repo.Create(context.Background(), tx))

			useCases := make([]*TransitionTransaction, tt.instances)
			for i := range useCases {
				useCases[i] = NewTransitionTransaction(repo, publisher, 3, logging.Discard())
			}

			const callers = 8
			var (
				wg        sync.WaitGroup
				mux       sync.Mutex
				succeeded int
				rejected  int
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(uc *TransitionTransaction) {
					defer wg.Done()
					_, err := uc.Execute(context.Background(), &TransitionTransactionCommand{
						TransactionID: tx.ID.String(),
						TargetState:   "processing",
					})

					mux.Lock()
					defer mux.Unlock()
					switch {
					case err == nil:
						succeeded++
					case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrVersionConflict):
						rejected++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(useCases[i%tt.instances])
			}
			wg.Wait()

			assert.Equal(t, 1, succeeded)
			assert.Equal(t, callers-1, rejected)

			stored, err := repo.FindByID(context.Background(), tx.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StateProcessing, stored.State())
			assert.Equal(t, 2, stored.Version.Value)
		})
	}
}
