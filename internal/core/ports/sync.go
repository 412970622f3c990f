package ports

import (
	"context"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=sync.go -destination=mocks/sync.go -package=mocks

// RemoteStore is the client's view of the authoritative backend.
// Every call requires a signed-in identity bound to userID.
type RemoteStore interface {
	// GetWallet returns nil, nil when the user has no wallet yet.
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletRecord, error)
	UpdateWalletBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error
	UpdateWalletPIN(ctx context.Context, userID uuid.UUID, pinHash string) error
	GetTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	AddTransaction(ctx context.Context, userID uuid.UUID, t domain.Transaction) (*domain.Transaction, error)
	GetContacts(ctx context.Context, userID uuid.UUID) ([]domain.Contact, error)
	AddContact(ctx context.Context, userID uuid.UUID, c domain.Contact) (*domain.Contact, error)
	TransferToUser(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
	// ResetWallet clears the ledger and contacts and sets the balance in one step.
	ResetWallet(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error
	GetOrCreateAchievementStats(ctx context.Context, userID uuid.UUID) (*domain.AchievementRecord, error)
	UpdateAchievementStats(ctx context.Context, userID uuid.UUID, stats domain.Stats, unlocked []string) error
}

// LocalCache keys, one JSON snapshot each.
const (
	KeyBalance          = "balance"
	KeyTransactions     = "transactions"
	KeyContacts         = "contacts"
	KeyPIN              = "pin"
	KeyStats            = "stats"
	KeyUnlocked         = "unlocked-achievements"
	KeyStreak           = "streak"
	KeySelectedLanguage = "selected-language"
)

// LocalCache is device-local persistent storage holding one JSON snapshot
// per (scope, key). Scope is the owning identity's cache namespace.
type LocalCache interface {
	// Load decodes the snapshot into dest. Returns false if nothing is stored.
	Load(ctx context.Context, scope, key string, dest any) (bool, error)
	Store(ctx context.Context, scope, key string, value any) error
	Delete(ctx context.Context, scope, key string) error
}

// IdentityProvider supplies the signed-in user and its bearer token.
type IdentityProvider interface {
	Current() domain.Identity
	SignIn(ctx context.Context, token string) (domain.Identity, error)
	SignOut(ctx context.Context) error
}
