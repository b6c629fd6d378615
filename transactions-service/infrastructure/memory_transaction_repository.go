package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/draftea/booking-system/shared/models"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/pkg/errors"
)

var _ domain.TransactionRepository = (*MemoryTransactionRepository)(nil)

// MemoryTransactionRepository keeps transactions in process. Stored values are
// snapshots; callers never share a *domain.Transaction with the store.
type MemoryTransactionRepository struct {
	mux          sync.RWMutex
	transactions map[models.ID]*domain.Transaction
}

func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{
		transactions: make(map[models.ID]*domain.Transaction),
	}
}

func (r *MemoryTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if _, ok := r.transactions[tx.ID]; ok {
		return errors.Wrap(domain.ErrTransactionAlreadyExists, tx.ID.String())
	}

	r.transactions[tx.ID] = snapshot(tx)
	return nil
}

func (r *MemoryTransactionRepository) Update(ctx context.Context, tx *domain.Transaction, expectedVersion int) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	stored, ok := r.transactions[tx.ID]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if stored.Version.Value != expectedVersion {
		return errors.Wrapf(domain.ErrVersionConflict, "expected version %d, found %d", expectedVersion, stored.Version.Value)
	}

	r.transactions[tx.ID] = snapshot(tx)
	return nil
}

func (r *MemoryTransactionRepository) FindByID(ctx context.Context, id models.ID) (*domain.Transaction, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()

	stored, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	return snapshot(stored), nil
}

func (r *MemoryTransactionRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	r.mux.RLock()
	matches := make([]*domain.Transaction, 0)
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			matches = append(matches, snapshot(tx))
		}
	}
	r.mux.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].Timestamps.CreatedAt, matches[j].Timestamps.CreatedAt
		if a.Equal(b) {
			return matches[i].ID > matches[j].ID
		}
		return a.After(b)
	})

	return paginate(matches, limit, offset), nil
}

func snapshot(tx *domain.Transaction) *domain.Transaction {
	var completedAt *time.Time
	if tx.CompletedAt != nil {
		t := *tx.CompletedAt
		completedAt = &t
	}

	return domain.RehydrateTransaction(
		tx.ID,
		tx.UserID,
		tx.Kind,
		tx.Amount,
		tx.Reference,
		tx.State(),
		tx.Timestamps,
		completedAt,
		tx.Version,
	)
}

func paginate(txs []*domain.Transaction, limit, offset int) []*domain.Transaction {
	if offset >= len(txs) {
		return []*domain.Transaction{}
	}
	txs = txs[offset:]
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return txs
}
