package statesync

import (
	"context"
	"testing"
	"time"

	"payquest/internal/core/domain"
	"payquest/internal/core/ports"
	"payquest/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletManager_EndToEndScenario(t *testing.T) {
	env := newTestEnv(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	assert.True(t, m.Snapshot().Balance.Equal(dec(10000)))

	_, err := m.Debit(ctx, dec(2500), "Loan EMI Payment", "Bank")
	require.NoError(t, err)

	s := m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(7500)))
	require.Len(t, s.Transactions, 1)
	assert.True(t, s.Transactions[0].Amount.Equal(dec(2500)))
	assert.Equal(t, domain.TransactionTypeDebit, s.Transactions[0].Type)

	_, err = m.Credit(ctx, dec(2500), "Loan Disbursement", "Bank")
	require.NoError(t, err)

	s = m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(10000)))
	require.Len(t, s.Transactions, 2)
	assert.Equal(t, domain.TransactionTypeCredit, s.Transactions[0].Type)
	assert.Equal(t, "Loan Disbursement", s.Transactions[0].Description)
	assert.Equal(t, domain.TransactionTypeDebit, s.Transactions[1].Type)
}

func TestWalletManager_LedgerConsistency(t *testing.T) {
	env := newTestEnv(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	ops := []struct {
		credit bool
		amount string
	}{
		{false, "120.50"},
		{true, "99.99"},
		{false, "1000"},
		{true, "0.01"},
		{false, "333.33"},
		{true, "2500"},
	}

	want := domain.DefaultSeedBalance
	var ids []uuid.UUID
	for _, op := range ops {
		amount := decimal.RequireFromString(op.amount)
		var tx domain.Transaction
		var err error
		if op.credit {
			tx, err = m.Credit(ctx, amount, "in", "someone")
			want = want.Add(amount)
		} else {
			tx, err = m.Debit(ctx, amount, "out", "someone")
			want = want.Sub(amount)
		}
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}

	s := m.Snapshot()
	assert.True(t, want.Equal(s.Balance), "want %s got %s", want, s.Balance)
	assert.True(t, domain.LedgerBalance(domain.DefaultSeedBalance, s.Transactions).Equal(s.Balance))
	require.Len(t, s.Transactions, len(ops))
	for i, tx := range s.Transactions {
		assert.Equal(t, ids[len(ids)-1-i], tx.ID, "transactions must be newest first")
	}
}

func TestWalletManager_RejectsNonPositiveAmounts(t *testing.T) {
	env := newTestEnv(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	for _, amount := range []decimal.Decimal{decimal.Zero, dec(-5)} {
		_, err := m.Debit(ctx, amount, "x", "y")
		assertAppError(t, err, apperror.CodeInvalidAmount)
		_, err = m.Credit(ctx, amount, "x", "y")
		assertAppError(t, err, apperror.CodeInvalidAmount)
	}

	s := m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(10000)))
	assert.Empty(t, s.Transactions)
}

func TestWalletManager_DebitCannotOverdraw(t *testing.T) {
	env := newTestEnv(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	_, err := m.Debit(ctx, dec(10001), "too much", "Shop")
	assertAppError(t, err, apperror.CodeInsufficientFunds)
	assert.True(t, m.Snapshot().Balance.Equal(dec(10000)))
	assert.Empty(t, m.Snapshot().Transactions)
}

func TestWalletManager_TransferInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	env.remote.seedWallet(env.userID, dec(100))
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	_, err := m.TransferToRegisteredUser(ctx, uuid.New(), "Ravi", dec(500))
	assertAppError(t, err, apperror.CodeInsufficientFunds)

	s := m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(100)))
	assert.Empty(t, s.Transactions)
	assert.Empty(t, env.remote.transfers)
}

func TestWalletManager_TransferSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	env.remote.seedWallet(env.userID, dec(5000))
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)
	contactsBefore := len(m.Snapshot().Contacts)

	recipient := uuid.New()
	tx, err := m.TransferToRegisteredUser(ctx, recipient, "Ravi", dec(1200))
	require.NoError(t, err)

	s := m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(3800)))
	require.Len(t, s.Transactions, 2)
	assert.Equal(t, tx.ID, s.Transactions[0].ID)
	require.NotNil(t, s.Transactions[0].RecipientUserID)
	assert.Equal(t, recipient, *s.Transactions[0].RecipientUserID)

	require.Len(t, s.Contacts, contactsBefore+1)
	c, ok := s.FindContactByUser(recipient)
	require.True(t, ok)
	assert.Equal(t, "Ravi", c.Name)

	require.Len(t, env.remote.transfers, 1)
	assert.Equal(t, env.userID, env.remote.transfers[0].SenderID)
	assert.Equal(t, "Asha", env.remote.transfers[0].SenderName)

	require.True(t, m.Flush())
	_, txns, contacts, _ := env.remote.counts()
	assert.Zero(t, txns, "transfer entry is already recorded remotely")
	assert.Equal(t, 1, contacts)
	assert.True(t, env.remote.balance().Equal(dec(3800)))

	// paying the same user again does not add another contact
	_, err = m.TransferToRegisteredUser(ctx, recipient, "Ravi", dec(100))
	require.NoError(t, err)
	assert.Len(t, m.Snapshot().Contacts, contactsBefore+1)
}

func TestWalletManager_TransferRemoteFailureLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	env.remote.seedWallet(env.userID, dec(5000))
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)
	before := m.Snapshot()

	env.remote.transferErr = apperror.ErrNotFound("recipient")
	_, err := m.TransferToRegisteredUser(ctx, uuid.New(), "Ghost", dec(10))
	assertAppError(t, err, apperror.CodeNotFound)

	env.remote.transferErr = nil
	env.remote.setErr(errOffline)
	_, err = m.TransferToRegisteredUser(ctx, uuid.New(), "Ravi", dec(10))
	assertAppError(t, err, apperror.CodeRemoteUnavailable)

	after := m.Snapshot()
	assert.True(t, before.Balance.Equal(after.Balance))
	assert.Equal(t, before.Transactions, after.Transactions)
	assert.Equal(t, before.Contacts, after.Contacts)
}

func TestWalletManager_TransferSendsQueuedEntriesFirst(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	credit, err := m.Credit(ctx, dec(5000), "Salary", "Employer")
	require.NoError(t, err)
	require.True(t, m.HasPendingWrites())

	// above the remote balance until the credit reaches it
	_, err = m.TransferToRegisteredUser(ctx, uuid.New(), "Ravi", dec(12000))
	require.NoError(t, err)

	require.Len(t, env.remote.addedTxns, 1)
	assert.Equal(t, credit.ID, env.remote.addedTxns[0].ID)
	require.Len(t, env.remote.transfers, 1)
	assert.True(t, env.remote.balance().Equal(dec(3000)))
	assert.True(t, m.Snapshot().Balance.Equal(dec(3000)))

	// the credit is not sent twice
	m.Flush()
	assert.Len(t, env.remote.addedTxns, 1)
}

func TestWalletManager_TransferAbortsWhenQueuedEntriesFail(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	_, err := m.Credit(ctx, dec(5000), "Salary", "Employer")
	require.NoError(t, err)

	env.remote.mu.Lock()
	env.remote.addTxErr = errOffline
	env.remote.mu.Unlock()

	_, err = m.TransferToRegisteredUser(ctx, uuid.New(), "Ravi", dec(12000))
	assertAppError(t, err, apperror.CodeRemoteUnavailable)
	assert.Empty(t, env.remote.transfers)
	assert.True(t, m.Snapshot().Balance.Equal(dec(15000)))
	assert.True(t, m.HasPendingWrites(), "the credit stays queued")

	env.remote.mu.Lock()
	env.remote.addTxErr = nil
	env.remote.mu.Unlock()

	require.True(t, m.Flush())
	assert.Len(t, env.remote.addedTxns, 1)
	assert.True(t, env.remote.balance().Equal(dec(15000)))
}

func TestWalletManager_RejectedEntryIsDropped(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	env.remote.mu.Lock()
	env.remote.addTxErr = apperror.ErrInsufficientFunds()
	env.remote.mu.Unlock()

	_, err := m.Debit(ctx, dec(100), "tea", "Stall")
	require.NoError(t, err)
	require.True(t, m.Flush())

	env.remote.mu.Lock()
	env.remote.addTxErr = nil
	env.remote.mu.Unlock()

	_, err = m.AddContact(ctx, "Neha", "", nil, nil, nil)
	require.NoError(t, err)
	require.True(t, m.Flush())
	assert.Empty(t, env.remote.addedTxns, "a rejected entry is not resent")
	assert.Len(t, env.remote.addedContacts, 1)
}

func TestWalletManager_TransferRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	_, err := m.TransferToRegisteredUser(ctx, uuid.New(), "Ravi", dec(10))
	assertAppError(t, err, apperror.CodeUnauthenticated)
	assert.Empty(t, env.remote.transfers)
}

func TestWalletManager_DebounceCoalescing(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	env.remote.wallet = &domain.WalletRecord{UserID: env.userID, Balance: dec(10000)}
	env.opts.DebounceWindow = 40 * time.Millisecond
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	for i := 0; i < 5; i++ {
		_, err := m.Debit(ctx, dec(100), "snack", "Canteen")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		_, n, _, _ := env.remote.counts()
		return n == 5
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	balances, txns, _, _ := env.remote.counts()
	assert.Zero(t, balances, "entries carry the balance change")
	assert.Equal(t, 5, txns, "each entry is sent exactly once")
	assert.True(t, env.remote.balance().Equal(dec(9500)))
	assert.False(t, m.HasPendingWrites())
	assert.False(t, m.Syncing())
}

func TestWalletManager_FailedWriteIsResentNextCycle(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	env.remote.wallet = &domain.WalletRecord{UserID: env.userID, Balance: dec(10000)}
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	env.remote.setErr(errOffline)
	first, err := m.Debit(ctx, dec(100), "bus", "Transit")
	require.NoError(t, err)
	require.True(t, m.Flush())

	// local state stays authoritative
	assert.True(t, m.Snapshot().Balance.Equal(dec(9900)))

	env.remote.setErr(nil)
	second, err := m.Credit(ctx, dec(50), "refund", "Transit")
	require.NoError(t, err)
	require.True(t, m.Flush())

	require.Len(t, env.remote.addedTxns, 2)
	assert.Equal(t, first.ID, env.remote.addedTxns[0].ID)
	assert.Equal(t, second.ID, env.remote.addedTxns[1].ID)
	assert.True(t, env.remote.balance().Equal(dec(9950)))

	// nothing left to send
	_, err = m.Credit(ctx, dec(1), "tip", "Transit")
	require.NoError(t, err)
	require.True(t, m.Flush())
	assert.Len(t, env.remote.addedTxns, 3)
}

func TestWalletManager_GuestNeverWritesRemote(t *testing.T) {
	env := newTestEnv(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	_, err := m.Debit(ctx, dec(100), "tea", "Stall")
	require.NoError(t, err)
	require.True(t, m.Flush())

	b, tx, _, _ := env.remote.counts()
	assert.Zero(t, b)
	assert.Zero(t, tx)
}

func TestWalletManager_LoadFallsBackToCache(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	ctx := context.Background()

	cached := []domain.Transaction{{ID: uuid.New(), Amount: dec(700), Type: domain.TransactionTypeDebit, Timestamp: testNow}}
	require.NoError(t, env.cache.Store(ctx, env.userID.String(), ports.KeyBalance, dec(9300)))
	require.NoError(t, env.cache.Store(ctx, env.userID.String(), ports.KeyTransactions, cached))

	env.remote.setErr(errOffline)
	m := env.wallet()
	m.Load(ctx)

	s := m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(9300)))
	require.Len(t, s.Transactions, 1)
	assert.Equal(t, cached[0].ID, s.Transactions[0].ID)
	assert.Len(t, s.Contacts, len(domain.DefaultContacts()))
	assert.False(t, m.Syncing())
}

func TestWalletManager_LoadPrefersRemote(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	ctx := context.Background()
	hash := "$argon2id$remote"
	linked := uuid.New()
	env.remote.wallet = &domain.WalletRecord{UserID: env.userID, Balance: dec(4200), PINHash: &hash}
	env.remote.txns = []domain.Transaction{{ID: uuid.New(), Amount: dec(5800), Type: domain.TransactionTypeDebit}}
	env.remote.contacts = []domain.Contact{{ID: uuid.New(), Name: "Ravi", LinkedUserID: &linked}}
	require.NoError(t, env.cache.Store(ctx, env.userID.String(), ports.KeyBalance, dec(1)))

	m := env.wallet()
	m.Load(ctx)

	s := m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(4200)))
	assert.Len(t, s.Transactions, 1)
	require.Len(t, s.Contacts, 1)
	assert.True(t, s.HasPIN())

	// the winning state is mirrored locally
	var cachedBalance decimal.Decimal
	ok, err := env.cache.Load(ctx, env.userID.String(), ports.KeyBalance, &cachedBalance)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cachedBalance.Equal(dec(4200)))
}

func TestWalletManager_LoadDerivesBalanceFromLedger(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	received := uuid.New()
	// stored balance went stale while a transfer was credited
	env.remote.wallet = &domain.WalletRecord{UserID: env.userID, Balance: dec(9700)}
	env.remote.txns = []domain.Transaction{
		{ID: received, Amount: dec(1200), Type: domain.TransactionTypeCredit, Description: "Received from Ravi"},
		{ID: uuid.New(), Amount: dec(300), Type: domain.TransactionTypeDebit, Description: "Lunch"},
	}

	m := env.wallet()
	m.Load(context.Background())

	s := m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(10900)), "got %s", s.Balance)
	assert.True(t, domain.LedgerBalance(env.opts.SeedBalance, s.Transactions).Equal(s.Balance))
}

func TestWalletManager_LoadCreatesMissingRemoteWallet(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	m := env.wallet()
	m.Load(context.Background())

	assert.True(t, m.Snapshot().Balance.Equal(dec(10000)))
	require.Len(t, env.remote.balanceWrites, 1)
	assert.True(t, env.remote.balanceWrites[0].Equal(dec(10000)))
}

func TestWalletManager_SurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.wallet()
	m.Load(ctx)
	_, err := m.Debit(ctx, dec(2500), "Loan EMI Payment", "Bank")
	require.NoError(t, err)
	_, err = m.AddContact(ctx, "Neha", "9000000000", nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.SetPIN(ctx, "4321"))
	m.Close()

	restarted := env.wallet()
	restarted.Load(ctx)

	s := restarted.Snapshot()
	assert.True(t, s.Balance.Equal(dec(7500)))
	require.Len(t, s.Transactions, 1)
	assert.Equal(t, "Loan EMI Payment", s.Transactions[0].Description)
	assert.Equal(t, "Neha", s.Contacts[len(s.Contacts)-1].Name)
	assert.True(t, restarted.VerifyPIN("4321"))
	assert.False(t, restarted.VerifyPIN("1234"))
}

func TestWalletManager_PIN(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	assert.True(t, m.VerifyPIN("anything"), "no PIN set accepts any input")

	assertAppError(t, m.SetPIN(ctx, "12a4"), apperror.CodeInvalidPIN)
	assertAppError(t, m.SetPIN(ctx, "12345"), apperror.CodeInvalidPIN)

	require.NoError(t, m.SetPIN(ctx, "1234"))
	s := m.Snapshot()
	require.True(t, s.HasPIN())
	assert.NotEqual(t, "1234", *s.PINHash)
	assert.True(t, m.VerifyPIN("1234"))
	assert.False(t, m.VerifyPIN("0000"))

	assertAppError(t, m.ChangePIN(ctx, "0000", "5678"), apperror.CodeIncorrectPIN)
	assertAppError(t, m.ChangePIN(ctx, "1234", "56"), apperror.CodeInvalidPIN)
	require.NoError(t, m.ChangePIN(ctx, "1234", "5678"))
	assert.True(t, m.VerifyPIN("5678"))

	require.True(t, m.Flush())
	require.Len(t, env.remote.pinWrites, 1)
	assert.Equal(t, *m.Snapshot().PINHash, env.remote.pinWrites[0])

	// an unchanged PIN is not re-sent
	_, err := m.Credit(ctx, dec(1), "x", "y")
	require.NoError(t, err)
	require.True(t, m.Flush())
	assert.Len(t, env.remote.pinWrites, 1)
}

func TestWalletManager_AddContact(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	_, err := m.AddContact(ctx, "  ", "1", nil, nil, nil)
	assertAppError(t, err, apperror.CodeValidation)

	email := "neha@example.com"
	linked := uuid.New()
	c, err := m.AddContact(ctx, " Neha ", "9000000000", &email, nil, &linked)
	require.NoError(t, err)
	assert.Equal(t, "Neha", c.Name)
	assert.True(t, c.IsUser())

	require.True(t, m.Flush())
	require.Len(t, env.remote.addedContacts, 1)
	assert.Equal(t, c.ID, env.remote.addedContacts[0].ID)
}

func TestWalletManager_Reset(t *testing.T) {
	env := newTestEnv(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)
	require.NoError(t, m.SetPIN(ctx, "1234"))
	_, err := m.Debit(ctx, dec(300), "x", "y")
	require.NoError(t, err)
	_, err = m.AddContact(ctx, "Temp", "", nil, nil, nil)
	require.NoError(t, err)

	m.Reset(ctx)

	s := m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(10000)))
	assert.Empty(t, s.Transactions)
	assert.Equal(t, domain.DefaultContacts(), s.Contacts)
	assert.True(t, s.HasPIN())
}

func TestWalletManager_ResetClearsRemoteLedger(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	_, err := m.Debit(ctx, dec(300), "x", "y")
	require.NoError(t, err)
	_, err = m.AddContact(ctx, "Temp", "", nil, nil, nil)
	require.NoError(t, err)
	require.True(t, m.Flush())
	require.Len(t, env.remote.txns, 1)

	m.Reset(ctx)
	// recorded after the reset, so it must survive it remotely
	_, err = m.Debit(ctx, dec(100), "bus", "Transit")
	require.NoError(t, err)
	require.True(t, m.Flush())

	require.Len(t, env.remote.resets, 1)
	assert.True(t, env.remote.resets[0].Equal(dec(10000)))
	assert.True(t, env.remote.balance().Equal(dec(9900)))

	reloaded := env.wallet()
	reloaded.Load(ctx)
	s := reloaded.Snapshot()
	assert.True(t, s.Balance.Equal(dec(9900)))
	require.Len(t, s.Transactions, 1)
	assert.Equal(t, "bus", s.Transactions[0].Description)
	assert.Equal(t, domain.DefaultContacts(), s.Contacts)

	// a flushed reset is not repeated
	_, err = m.Credit(ctx, dec(1), "tip", "Transit")
	require.NoError(t, err)
	require.True(t, m.Flush())
	assert.Len(t, env.remote.resets, 1)
}

func TestWalletManager_Subscribe(t *testing.T) {
	env := newTestEnv(t)
	m := env.wallet()
	ctx := context.Background()
	m.Load(ctx)

	var seen []decimal.Decimal
	cancel := m.Subscribe(func(s domain.WalletState) { seen = append(seen, s.Balance) })

	_, err := m.Debit(ctx, dec(100), "a", "b")
	require.NoError(t, err)
	_, err = m.Debit(ctx, dec(200), "a", "b")
	require.NoError(t, err)
	cancel()
	_, err = m.Debit(ctx, dec(300), "a", "b")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Equal(dec(9900)))
	assert.True(t, seen[1].Equal(dec(9700)))
}

func TestWalletManager_IdentitySwitchScopesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.wallet()
	m.Load(ctx)

	_, err := m.Debit(ctx, dec(1000), "guest spend", "Shop")
	require.NoError(t, err)

	env.signIn(t)
	env.remote.setErr(errOffline)
	m.Load(ctx)

	// the signed-in user has nothing cached yet, so gets defaults, not the guest's state
	s := m.Snapshot()
	assert.True(t, s.Balance.Equal(dec(10000)))
	assert.Empty(t, s.Transactions)
	assert.Equal(t, env.userID, m.Owner().UserID)

	require.NoError(t, env.ids.SignOut(ctx))
	m.Load(ctx)
	assert.True(t, m.Snapshot().Balance.Equal(dec(9000)))
}
