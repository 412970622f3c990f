package statesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"payquest/internal/adapter/identity"
	"payquest/internal/adapter/storage/redis"
	"payquest/internal/core/domain"
	"payquest/internal/service"
	"payquest/pkg/apperror"
	"payquest/pkg/clock"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testNow    = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	errOffline = apperror.ErrRemoteUnavailable(errors.New("dial tcp: connection refused"))
)

// fakeRemote is an in-memory remote store that records every write.
type fakeRemote struct {
	mu sync.Mutex

	wallet   *domain.WalletRecord
	txns     []domain.Transaction
	contacts []domain.Contact
	stats    *domain.AchievementRecord

	err         error
	transferErr error
	addTxErr    error

	balanceWrites []decimal.Decimal
	resets        []decimal.Decimal
	pinWrites     []string
	statsWrites   []domain.Stats
	addedTxns     []domain.Transaction
	addedContacts []domain.Contact
	transfers     []domain.TransferRequest
}

func (f *fakeRemote) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeRemote) GetWallet(_ context.Context, _ uuid.UUID) (*domain.WalletRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.wallet == nil {
		return nil, nil
	}
	w := *f.wallet
	return &w, nil
}

func (f *fakeRemote) UpdateWalletBalance(_ context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.balanceWrites = append(f.balanceWrites, balance)
	if f.wallet == nil {
		f.wallet = &domain.WalletRecord{UserID: userID}
	}
	f.wallet.Balance = balance
	return nil
}

func (f *fakeRemote) UpdateWalletPIN(_ context.Context, userID uuid.UUID, pinHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pinWrites = append(f.pinWrites, pinHash)
	if f.wallet == nil {
		f.wallet = &domain.WalletRecord{UserID: userID}
	}
	f.wallet.PINHash = &pinHash
	return nil
}

func (f *fakeRemote) GetTransactions(_ context.Context, _ uuid.UUID) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Transaction(nil), f.txns...), nil
}

func (f *fakeRemote) AddTransaction(_ context.Context, userID uuid.UUID, t domain.Transaction) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.addTxErr != nil {
		return nil, f.addTxErr
	}
	f.addedTxns = append(f.addedTxns, t)
	for _, existing := range f.txns {
		if existing.ID == t.ID {
			return &t, nil
		}
	}
	if f.wallet == nil {
		f.wallet = &domain.WalletRecord{UserID: userID, Balance: domain.DefaultSeedBalance}
	}
	f.wallet.Balance = f.wallet.Balance.Add(t.Signed())
	f.txns = append([]domain.Transaction{t}, f.txns...)
	return &t, nil
}

func (f *fakeRemote) ResetWallet(_ context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.resets = append(f.resets, balance)
	if f.wallet == nil {
		f.wallet = &domain.WalletRecord{UserID: userID}
	}
	f.wallet.Balance = balance
	f.txns = nil
	f.contacts = nil
	return nil
}

func (f *fakeRemote) GetContacts(_ context.Context, _ uuid.UUID) ([]domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Contact(nil), f.contacts...), nil
}

func (f *fakeRemote) AddContact(_ context.Context, _ uuid.UUID, c domain.Contact) (*domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.addedContacts = append(f.addedContacts, c)
	f.contacts = append(f.contacts, c)
	return &c, nil
}

func (f *fakeRemote) TransferToUser(_ context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	if f.wallet == nil || f.wallet.Balance.LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}
	f.transfers = append(f.transfers, req)
	debit := domain.Transaction{
		ID:               req.TransactionID,
		Amount:           req.Amount,
		Type:             domain.TransactionTypeDebit,
		Description:      service.TransferDebitDescription(req.RecipientName),
		CounterpartyName: req.RecipientName,
		Timestamp:        testNow,
		RecipientUserID:  &req.RecipientID,
	}
	f.wallet.Balance = f.wallet.Balance.Sub(req.Amount)
	f.txns = append([]domain.Transaction{debit}, f.txns...)
	return &domain.TransferResult{Success: true, SenderNewBalance: f.wallet.Balance, Transaction: debit}, nil
}

func (f *fakeRemote) GetOrCreateAchievementStats(_ context.Context, userID uuid.UUID) (*domain.AchievementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.stats == nil {
		f.stats = &domain.AchievementRecord{UserID: userID, Stats: domain.NewStats(), Unlocked: []string{}}
	}
	rec := *f.stats
	rec.Stats = f.stats.Stats.Clone()
	rec.Unlocked = append([]string(nil), f.stats.Unlocked...)
	return &rec, nil
}

func (f *fakeRemote) UpdateAchievementStats(_ context.Context, userID uuid.UUID, stats domain.Stats, unlocked []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statsWrites = append(f.statsWrites, stats.Clone())
	f.stats = &domain.AchievementRecord{UserID: userID, Stats: stats.Clone(), Unlocked: append([]string(nil), unlocked...)}
	return nil
}

func (f *fakeRemote) counts() (balances, txns, contacts, stats int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.balanceWrites), len(f.addedTxns), len(f.addedContacts), len(f.statsWrites)
}

// balance is the remote wallet balance, zero when no wallet exists.
func (f *fakeRemote) balance() decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wallet == nil {
		return decimal.Zero
	}
	return f.wallet.Balance
}

// seedWallet gives the remote store a wallet at balance whose ledger agrees
// with it: one earlier debit or credit against the default seed.
func (f *fakeRemote) seedWallet(userID uuid.UUID, balance decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallet = &domain.WalletRecord{UserID: userID, Balance: balance}
	f.txns = nil
	diff := balance.Sub(domain.DefaultSeedBalance)
	if diff.IsZero() {
		return
	}
	t := domain.Transaction{ID: uuid.New(), Amount: diff.Abs(), Type: domain.TransactionTypeCredit,
		Description: "Opening adjustment", Timestamp: testNow.Add(-time.Hour)}
	if diff.IsNegative() {
		t.Type = domain.TransactionTypeDebit
	}
	f.txns = []domain.Transaction{t}
}

// testEnv bundles the collaborators shared by manager tests.
type testEnv struct {
	remote *fakeRemote
	cache  *redis.SnapshotCache
	ids    *identity.TokenIdentity
	clock  *clock.ManualClock
	opts   Options
	userID uuid.UUID
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	opts := DefaultOptions()
	opts.DebounceWindow = time.Hour // flushed explicitly unless a test shortens it
	opts.RemoteTimeout = time.Second
	opts.NotificationTTL = time.Hour
	opts.Location = time.UTC

	userID := uuid.New()
	token, _, err := service.NewJWTTokenService("secret", time.Hour, "payquest").Generate(userID, "Asha")
	require.NoError(t, err)

	return &testEnv{
		remote: &fakeRemote{},
		cache:  redis.NewSnapshotCache(client, "pq-test"),
		ids:    identity.New(zerolog.Nop()),
		clock:  clock.NewManual(testNow),
		opts:   opts,
		userID: userID,
		token:  token,
	}
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	_, err := e.ids.SignIn(context.Background(), e.token)
	require.NoError(t, err)
}

func (e *testEnv) wallet() *WalletManager {
	hasher := service.NewArgon2HashServiceWithParams(service.Argon2Params{Time: 1, Memory: 1024, Threads: 1})
	return NewWalletManager(e.remote, e.cache, e.ids, hasher, e.clock, e.opts, zerolog.Nop())
}

func (e *testEnv) achievements(options ...AchievementOption) *AchievementManager {
	return NewAchievementManager(e.remote, e.cache, e.ids, e.clock, e.opts, zerolog.Nop(), options...)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperror.CodeOf(err), "got %v", err)
}
