package statesync_test

import (
	"context"
	"fmt"
	"sync"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.WalletRecord
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.WalletRecord)}
}

func (r *inMemoryWalletRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.WalletRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByUserIDForUpdate(ctx context.Context, _ pgx.Tx, userID uuid.UUID) (*domain.WalletRecord, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *inMemoryWalletRepo) UpsertBalance(_ context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.row(userID).Balance = balance
	return nil
}

func (r *inMemoryWalletRepo) UpsertPIN(_ context.Context, userID uuid.UUID, pinHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := pinHash
	if _, ok := r.wallets[userID]; !ok {
		r.row(userID).Balance = domain.DefaultSeedBalance
	}
	r.row(userID).PINHash = &h
	return nil
}

func (r *inMemoryWalletRepo) UpdateBalance(_ context.Context, _ pgx.Tx, userID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Balance = balance
	return nil
}

func (r *inMemoryWalletRepo) Insert(_ context.Context, _ pgx.Tx, userID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[userID]; !ok {
		r.row(userID).Balance = balance
	}
	return nil
}

// row returns the wallet of userID, creating it. Caller holds mu.
func (r *inMemoryWalletRepo) row(userID uuid.UUID) *domain.WalletRecord {
	w, ok := r.wallets[userID]
	if !ok {
		w = &domain.WalletRecord{UserID: userID}
		r.wallets[userID] = w
	}
	return w
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu     sync.RWMutex
	ledger map[uuid.UUID][]domain.Transaction // newest first
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{ledger: make(map[uuid.UUID][]domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(_ context.Context, _ pgx.Tx, userID uuid.UUID, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger[userID] = append([]domain.Transaction{*t}, r.ledger[userID]...)
	return nil
}

func (r *inMemoryTransactionRepo) Append(_ context.Context, _ pgx.Tx, userID uuid.UUID, t *domain.Transaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.ledger[userID] {
		if existing.ID == t.ID {
			return false, nil
		}
	}
	r.ledger[userID] = append([]domain.Transaction{*t}, r.ledger[userID]...)
	return true, nil
}

func (r *inMemoryTransactionRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	txns := r.ledger[userID]
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return append([]domain.Transaction(nil), txns...), nil
}

func (r *inMemoryTransactionRepo) DeleteByUser(_ context.Context, _ pgx.Tx, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ledger, userID)
	return nil
}

// --- In-Memory Contact Repo ---

type inMemoryContactRepo struct {
	mu       sync.RWMutex
	contacts map[uuid.UUID][]domain.Contact
}

func newInMemoryContactRepo() *inMemoryContactRepo {
	return &inMemoryContactRepo{contacts: make(map[uuid.UUID][]domain.Contact)}
}

func (r *inMemoryContactRepo) Append(_ context.Context, userID uuid.UUID, c *domain.Contact) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.contacts[userID] {
		if existing.ID == c.ID {
			return false, nil
		}
	}
	r.contacts[userID] = append(r.contacts[userID], *c)
	return true, nil
}

func (r *inMemoryContactRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Contact(nil), r.contacts[userID]...), nil
}

func (r *inMemoryContactRepo) DeleteByUser(_ context.Context, _ pgx.Tx, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contacts, userID)
	return nil
}

// --- In-Memory Achievement Repo ---

type inMemoryAchievementRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.AchievementRecord
}

func newInMemoryAchievementRepo() *inMemoryAchievementRepo {
	return &inMemoryAchievementRepo{rows: make(map[uuid.UUID]domain.AchievementRecord)}
}

func (r *inMemoryAchievementRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.AchievementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rows[userID]
	if !ok {
		return nil, nil
	}
	rec.Stats = rec.Stats.Clone()
	rec.Unlocked = append([]string(nil), rec.Unlocked...)
	return &rec, nil
}

func (r *inMemoryAchievementRepo) Upsert(_ context.Context, rec *domain.AchievementRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	cp.Stats = rec.Stats.Clone()
	cp.Unlocked = append([]string(nil), rec.Unlocked...)
	r.rows[rec.UserID] = cp
	return nil
}

// --- In-Memory OTP and Profile Repos ---

type inMemoryOTPRepo struct {
	mu      sync.Mutex
	records []*domain.OTPRecord
}

func (r *inMemoryOTPRepo) Create(_ context.Context, rec *domain.OTPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *inMemoryOTPRepo) FindUnverified(_ context.Context, userID uuid.UUID, phone, code string) (*domain.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.UserID == userID && rec.Phone == phone && rec.Code == code && !rec.Verified {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryOTPRepo) MarkVerified(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			if rec.Verified {
				return false, nil
			}
			rec.Verified = true
			return true, nil
		}
	}
	return false, fmt.Errorf("otp %s not found", id)
}

type inMemoryProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]domain.Profile
}

func newInMemoryProfileRepo() *inMemoryProfileRepo {
	return &inMemoryProfileRepo{profiles: make(map[uuid.UUID]domain.Profile)}
}

func (r *inMemoryProfileRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *inMemoryProfileRepo) SetVerifiedPhone(_ context.Context, _ pgx.Tx, userID uuid.UUID, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[userID] = domain.Profile{UserID: userID, Phone: phone, PhoneVerified: true}
	return nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transactions with one mutex, standing in for
// the row locks PostgreSQL takes on SELECT ... FOR UPDATE.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func (t *inMemoryTransactor) Begin(_ context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &lockedTx{release: t.mu.Unlock}, nil
}

// lockedTx holds the transactor lock until Commit or Rollback.
type lockedTx struct {
	once    sync.Once
	release func()
}

func (t *lockedTx) done() { t.once.Do(t.release) }

func (t *lockedTx) Begin(_ context.Context) (pgx.Tx, error) { return t, nil }
func (t *lockedTx) Commit(_ context.Context) error          { t.done(); return nil }
func (t *lockedTx) Rollback(_ context.Context) error        { t.done(); return nil }
func (t *lockedTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockedTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockedTx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *lockedTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockedTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockedTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockedTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return nil
}
func (t *lockedTx) Conn() *pgx.Conn { return nil }
