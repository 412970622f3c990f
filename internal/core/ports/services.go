package ports

import (
	"context"
	"time"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

// HashService handles credential hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, name string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Name   string
}

// OTPThrottle limits how often a user may request a passcode.
type OTPThrottle interface {
	// Acquire atomically claims the send slot for userID.
	// Returns false if a code was already sent within interval.
	Acquire(ctx context.Context, userID string, interval time.Duration) (bool, error)
	Release(ctx context.Context, userID string) error
}

// SMSSender delivers a text message through the upstream gateway.
type SMSSender interface {
	Send(ctx context.Context, phone string, message string) error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the authoritative wallet, ledger and contact store.
type LedgerService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletRecord, error)
	UpdateBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error
	UpdatePIN(ctx context.Context, userID uuid.UUID, pinHash string) error
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	AddTransaction(ctx context.Context, userID uuid.UUID, t domain.Transaction) (*domain.Transaction, error)
	ListContacts(ctx context.Context, userID uuid.UUID) ([]domain.Contact, error)
	AddContact(ctx context.Context, userID uuid.UUID, c domain.Contact) (*domain.Contact, error)
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
	ResetWallet(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error
}

// AchievementService is the authoritative gamification stats store.
type AchievementService interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.AchievementRecord, error)
	Update(ctx context.Context, userID uuid.UUID, stats domain.Stats, unlocked []string) error
}

// OTPService issues and verifies phone passcodes.
type OTPService interface {
	Send(ctx context.Context, userID uuid.UUID, phone string) (*OTPIssued, error)
	Verify(ctx context.Context, userID uuid.UUID, phone, code string) (string, error) // normalized phone
}

// OTPIssued describes a passcode that was delivered.
type OTPIssued struct {
	ExpiresAt time.Time
}
