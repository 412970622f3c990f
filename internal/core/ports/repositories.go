package ports

import (
	"context"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories.go -package=mocks

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.WalletRecord, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.WalletRecord, error)
	UpsertBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error
	UpsertPIN(ctx context.Context, userID uuid.UUID, pinHash string) error
	UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, balance decimal.Decimal) error
	// Insert creates the wallet unless it already exists.
	Insert(ctx context.Context, tx pgx.Tx, userID uuid.UUID, balance decimal.Decimal) error
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, userID uuid.UUID, t *domain.Transaction) error
	// Append inserts t unless an entry with the same id exists.
	// Returns false when the entry was already present.
	Append(ctx context.Context, tx pgx.Tx, userID uuid.UUID, t *domain.Transaction) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
	DeleteByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}

// ContactRepository defines persistence operations for address-book entries.
type ContactRepository interface {
	Append(ctx context.Context, userID uuid.UUID, c *domain.Contact) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Contact, error)
	DeleteByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}

// AchievementRepository defines persistence for gamification stats.
type AchievementRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.AchievementRecord, error)
	Upsert(ctx context.Context, rec *domain.AchievementRecord) error
}

// OTPRepository defines persistence for issued passcodes.
type OTPRepository interface {
	Create(ctx context.Context, rec *domain.OTPRecord) error
	// FindUnverified returns the newest unverified record matching the code,
	// regardless of expiry. Returns nil, nil when nothing matches.
	FindUnverified(ctx context.Context, userID uuid.UUID, phone, code string) (*domain.OTPRecord, error)
	// MarkVerified flips the record to verified. Returns false when another
	// caller already did.
	MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// ProfileRepository defines persistence for user profiles.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	SetVerifiedPhone(ctx context.Context, tx pgx.Tx, userID uuid.UUID, phone string) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
