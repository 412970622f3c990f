package postgres

import (
	"context"
	"testing"
	"time"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:               uuid.New(),
		Amount:           decimal.NewFromInt(2500),
		Type:             domain.TransactionTypeDebit,
		Description:      "Loan EMI Payment",
		CounterpartyName: "Bank",
		Timestamp:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

func transactionColumns() []string {
	return []string{"id", "amount", "type", "description", "counterparty_name", "recipient_user_id", "created_at"}
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	userID := uuid.New()
	txn := newTestTransaction()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, userID, txn.Amount, txn.Type, txn.Description,
			txn.CounterpartyName, txn.RecipientUserID, txn.Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, userID, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Append(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantCreated  bool
	}{
		{"new entry", 1, true},
		{"replayed id", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewTransactionRepo(mock)
			userID := uuid.New()
			txn := newTestTransaction()

			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO transactions .+ ON CONFLICT \\(id\\) DO NOTHING").
				WithArgs(txn.ID, userID, txn.Amount, txn.Type, txn.Description,
					txn.CounterpartyName, txn.RecipientUserID, txn.Timestamp).
				WillReturnResult(pgxmock.NewResult("INSERT", tt.rowsAffected))

			tx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			created, err := repo.Append(context.Background(), tx, userID, txn)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, created)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransactionRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	userID := uuid.New()
	newer := newTestTransaction()
	newer.Type = domain.TransactionTypeCredit
	older := newTestTransaction()
	older.Timestamp = newer.Timestamp.Add(-time.Minute)

	rows := pgxmock.NewRows(transactionColumns()).
		AddRow(newer.ID, newer.Amount, newer.Type, newer.Description, newer.CounterpartyName, newer.RecipientUserID, newer.Timestamp).
		AddRow(older.ID, older.Amount, older.Type, older.Description, older.CounterpartyName, older.RecipientUserID, older.Timestamp)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE user_id = \\$1 ORDER BY created_at DESC").
		WithArgs(userID).
		WillReturnRows(rows)

	txns, err := repo.ListByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, newer.ID, txns[0].ID)
	assert.Equal(t, domain.TransactionTypeCredit, txns[0].Type)
	assert.Equal(t, older.ID, txns[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByUser_WithLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions .+ LIMIT \\$2").
		WithArgs(userID, 50).
		WillReturnRows(pgxmock.NewRows(transactionColumns()))

	txns, err := repo.ListByUser(context.Background(), userID, 50)
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.NotNil(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_DeleteByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM transactions WHERE user_id = \\$1").
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByUser(context.Background(), tx, userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
