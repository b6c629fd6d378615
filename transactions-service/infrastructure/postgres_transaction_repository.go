package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/draftea/booking-system/shared/models"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var _ domain.TransactionRepository = (*PostgresTransactionRepository)(nil)

const uniqueViolation = "23505"

// TransactionsSchema creates the transactions table used by PostgresTransactionRepository
const TransactionsSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id           UUID PRIMARY KEY,
	user_id      TEXT           NOT NULL,
	kind         TEXT           NOT NULL,
	amount       NUMERIC(20, 4) NOT NULL,
	reference    TEXT           NOT NULL DEFAULT '',
	state        TEXT           NOT NULL,
	created_at   TIMESTAMPTZ    NOT NULL,
	updated_at   TIMESTAMPTZ    NOT NULL,
	completed_at TIMESTAMPTZ,
	version      INTEGER        NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_user_idx ON transactions (user_id, created_at DESC);
`

const selectTransactionColumns = `
	SELECT id, user_id, kind, amount, reference, state,
		   created_at, updated_at, completed_at, version
	FROM transactions`

// PostgresTransactionRepository implements TransactionRepository using PostgreSQL
type PostgresTransactionRepository struct {
	db *sqlx.DB
}

// NewPostgresTransactionRepository creates a new PostgresTransactionRepository
func NewPostgresTransactionRepository(db *sqlx.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

// postgresTransaction represents transaction in database
type postgresTransaction struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	Kind        string          `db:"kind"`
	Amount      decimal.Decimal `db:"amount"`
	Reference   string          `db:"reference"`
	State       string          `db:"state"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at"`
	Version     int             `db:"version"`
}

// EnsureSchema creates the table if missing
func (r *PostgresTransactionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, TransactionsSchema); err != nil {
		return errors.Wrap(err, "failed to create transactions schema")
	}
	return nil
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, user_id, kind, amount, reference, state,
			created_at, updated_at, completed_at, version
		) VALUES (
			:id, :user_id, :kind, :amount, :reference, :state,
			:created_at, :updated_at, :completed_at, :version
		)`

	_, err := r.db.NamedExecContext(ctx, query, toPostgresTransaction(tx))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errors.Wrap(domain.ErrTransactionAlreadyExists, tx.ID.String())
		}
		return errors.Wrap(err, "failed to insert transaction")
	}

	return nil
}

// Update writes tx only if the stored row is still at expectedVersion
func (r *PostgresTransactionRepository) Update(ctx context.Context, tx *domain.Transaction, expectedVersion int) error {
	query := `
		UPDATE transactions
		SET state = :state, updated_at = :updated_at, completed_at = :completed_at, version = :version
		WHERE id = :id AND version = :expected_version`

	row := toPostgresTransaction(tx)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               row.ID,
		"state":            row.State,
		"updated_at":       row.UpdatedAt,
		"completed_at":     row.CompletedAt,
		"version":          row.Version,
		"expected_version": expectedVersion,
	})
	if err != nil {
		return errors.Wrap(err, "failed to update transaction")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, row.ID); err != nil {
		return errors.Wrap(err, "failed to check transaction")
	}
	if !exists {
		return domain.ErrTransactionNotFound
	}
	return errors.Wrapf(domain.ErrVersionConflict, "transaction %s is no longer at version %d", row.ID, expectedVersion)
}

func (r *PostgresTransactionRepository) FindByID(ctx context.Context, id models.ID) (*domain.Transaction, error) {
	var row postgresTransaction
	err := r.db.GetContext(ctx, &row, selectTransactionColumns+` WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find transaction")
	}

	return row.toDomain(), nil
}

func (r *PostgresTransactionRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	var rows []postgresTransaction
	err := r.db.SelectContext(ctx, &rows,
		selectTransactionColumns+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find transactions by user ID")
	}

	txs := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		txs = append(txs, rows[i].toDomain())
	}
	return txs, nil
}

func toPostgresTransaction(tx *domain.Transaction) *postgresTransaction {
	return &postgresTransaction{
		ID:          tx.ID.String(),
		UserID:      tx.UserID,
		Kind:        string(tx.Kind),
		Amount:      tx.Amount,
		Reference:   tx.Reference,
		State:       tx.State().String(),
		CreatedAt:   tx.Timestamps.CreatedAt,
		UpdatedAt:   tx.Timestamps.UpdatedAt,
		CompletedAt: tx.CompletedAt,
		Version:     tx.Version.Value,
	}
}

func (p *postgresTransaction) toDomain() *domain.Transaction {
	return domain.RehydrateTransaction(
		models.ID(p.ID),
		p.UserID,
		domain.TransactionKind(p.Kind),
		p.Amount,
		p.Reference,
		domain.TransactionState(p.State),
		models.Timestamps{CreatedAt: p.CreatedAt.UTC(), UpdatedAt: p.UpdatedAt.UTC()},
		p.CompletedAt,
		models.Version{Value: p.Version},
	)
}
