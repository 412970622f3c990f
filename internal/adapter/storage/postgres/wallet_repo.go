package postgres

import (
	"context"
	"errors"
	"fmt"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `user_id, balance, pin_hash, created_at, updated_at`

// GetByUserID fetches a user's wallet (without locking).
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.WalletRecord, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by user id: %w", err)
	}
	return w, nil
}

// GetByUserIDForUpdate fetches a wallet with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.WalletRecord, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// UpsertBalance overwrites the balance, creating the wallet if needed.
func (r *WalletRepo) UpsertBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	query := `INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, userID, balance); err != nil {
		return fmt.Errorf("upsert wallet balance: %w", err)
	}
	return nil
}

// UpsertPIN stores the PIN hash. A wallet created here starts at the default seed.
func (r *WalletRepo) UpsertPIN(ctx context.Context, userID uuid.UUID, pinHash string) error {
	query := `INSERT INTO wallets (user_id, balance, pin_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET pin_hash = EXCLUDED.pin_hash, updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, userID, domain.DefaultSeedBalance, pinHash); err != nil {
		return fmt.Errorf("upsert wallet pin: %w", err)
	}
	return nil
}

// UpdateBalance updates a locked wallet's balance within a transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2`

	tag, err := tx.Exec(ctx, query, balance, userID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", userID)
	}
	return nil
}

// Insert creates a wallet within a transaction. An existing row is left as is.
func (r *WalletRepo) Insert(ctx context.Context, tx pgx.Tx, userID uuid.UUID, balance decimal.Decimal) error {
	query := `INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, userID, balance); err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// scanWallet returns nil, nil when the row does not exist.
func scanWallet(row pgx.Row) (*domain.WalletRecord, error) {
	w := &domain.WalletRecord{}
	err := row.Scan(&w.UserID, &w.Balance, &w.PINHash, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
