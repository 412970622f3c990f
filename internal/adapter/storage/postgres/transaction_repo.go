package postgres

import (
	"context"
	"fmt"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const insertTransaction = `INSERT INTO transactions (id, user_id, amount, type, description,
		counterparty_name, recipient_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Create inserts a ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, userID uuid.UUID, t *domain.Transaction) error {
	_, err := tx.Exec(ctx, insertTransaction,
		t.ID, userID, t.Amount, t.Type, t.Description,
		t.CounterpartyName, t.RecipientUserID, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Append inserts a client-created entry within a database transaction.
// Replays of the same id are ignored.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, userID uuid.UUID, t *domain.Transaction) (bool, error) {
	tag, err := tx.Exec(ctx, insertTransaction+` ON CONFLICT (id) DO NOTHING`,
		t.ID, userID, t.Amount, t.Type, t.Description,
		t.CounterpartyName, t.RecipientUserID, t.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("append transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns a user's ledger, newest first. limit <= 0 means no limit.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	query := `SELECT id, amount, type, description, counterparty_name, recipient_user_id, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0)
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.Amount, &t.Type, &t.Description,
			&t.CounterpartyName, &t.RecipientUserID, &t.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// DeleteByUser removes a user's whole ledger within a database transaction.
func (r *TransactionRepo) DeleteByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	return nil
}
