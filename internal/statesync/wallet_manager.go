package statesync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"payquest/internal/core/domain"
	"payquest/internal/core/ports"
	"payquest/internal/metrics"
	"payquest/pkg/apperror"
	"payquest/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// walletWrite is the snapshot handed to the debouncer. The remote store
// derives the balance from the entries it accepts, so none is sent.
type walletWrite struct {
	owner    domain.Identity
	resetGen uint64 // non-zero: wipe the remote wallet before the entries
	txns     []domain.Transaction
	contacts []domain.Contact
	pinHash  *string
}

func (w walletWrite) dirty() bool {
	return w.resetGen != 0 || len(w.txns) > 0 || len(w.contacts) > 0 || w.pinHash != nil
}

// WalletManager owns the balance, ledger, contacts and PIN of the signed-in
// user. Mutations apply locally, mirror to the cache, then reach the remote
// store through a debounced write.
type WalletManager struct {
	remote   ports.RemoteStore
	cache    ports.LocalCache
	identity ports.IdentityProvider
	hasher   ports.HashService
	clock    clock.Clock
	opts     Options
	log      zerolog.Logger

	mu    sync.Mutex
	owner domain.Identity
	state domain.WalletState
	// not yet accepted by the remote store, oldest first
	pendingTx       []domain.Transaction
	pendingContacts []domain.Contact
	pinDirty        bool
	// a reset is owed to the remote store while resetGen > resetSent
	resetGen  uint64
	resetSent uint64

	// serializes pushes from the debouncer and from transfers
	pushMu sync.Mutex

	inflight  atomic.Int32
	subMu     sync.Mutex
	subs      map[uint64]func(domain.WalletState)
	nextSub   uint64
	debouncer *Debouncer[walletWrite]
}

// NewWalletManager creates a WalletManager holding default state until Load.
func NewWalletManager(
	remote ports.RemoteStore,
	cache ports.LocalCache,
	identity ports.IdentityProvider,
	hasher ports.HashService,
	clk clock.Clock,
	opts Options,
	log zerolog.Logger,
) *WalletManager {
	m := &WalletManager{
		remote:   remote,
		cache:    cache,
		identity: identity,
		hasher:   hasher,
		clock:    clk,
		opts:     opts,
		log:      log.With().Str("entity", entityWallet).Logger(),
		subs:     make(map[uint64]func(domain.WalletState)),
	}
	m.state = m.defaultState()
	m.debouncer = NewDebouncer(opts.DebounceWindow, m.writeThrough)
	return m
}

func (m *WalletManager) defaultState() domain.WalletState {
	return domain.WalletState{
		Balance:      m.opts.SeedBalance,
		Transactions: []domain.Transaction{},
		Contacts:     domain.DefaultContacts(),
	}
}

// Load replaces in-memory state with the current identity's state: remote
// first, then the local cache, then defaults. Remote failures are logged.
func (m *WalletManager) Load(ctx context.Context) {
	id := m.identity.Current()
	// pending writes still belong to the previous owner
	m.debouncer.Flush()

	m.inflight.Add(1)
	state, ok := m.loadRemote(ctx, id)
	m.inflight.Add(-1)

	source := metrics.SourceRemote
	if !ok {
		state, source = m.loadCache(ctx, id.Scope())
	}

	m.mu.Lock()
	m.owner = id
	m.state = state
	m.pendingTx = nil
	m.pendingContacts = nil
	m.pinDirty = false
	m.resetSent = m.resetGen
	m.mirrorLocked(ctx, ports.KeyBalance, ports.KeyTransactions, ports.KeyContacts, ports.KeyPIN)
	snap := m.state.Clone()
	m.mu.Unlock()

	metrics.RecordSyncLoad(entityWallet, source)
	m.log.Debug().Str("user_id", id.Scope()).Str("source", source).Msg("wallet loaded")
	m.notify(snap)
}

func (m *WalletManager) loadRemote(ctx context.Context, id domain.Identity) (domain.WalletState, bool) {
	if !id.Authenticated() {
		return domain.WalletState{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.RemoteTimeout)
	defer cancel()

	rec, err := m.remote.GetWallet(ctx, id.UserID)
	if err != nil {
		m.warn(id, "get wallet", err)
		return domain.WalletState{}, false
	}
	if rec == nil {
		st := m.defaultState()
		if err := m.remote.UpdateWalletBalance(ctx, id.UserID, st.Balance); err != nil {
			m.warn(id, "create wallet", err)
		}
		return st, true
	}

	txns, err := m.remote.GetTransactions(ctx, id.UserID)
	if err != nil {
		m.warn(id, "get transactions", err)
		return domain.WalletState{}, false
	}
	contacts, err := m.remote.GetContacts(ctx, id.UserID)
	if err != nil {
		m.warn(id, "get contacts", err)
		return domain.WalletState{}, false
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	if len(contacts) == 0 {
		contacts = domain.DefaultContacts()
	}

	// the ledger is authoritative; a stored balance that disagrees with it
	// predates delta-applied entries
	balance := domain.LedgerBalance(m.opts.SeedBalance, txns)
	if !balance.Equal(rec.Balance) {
		m.log.Warn().
			Str("user_id", id.UserID.String()).
			Str("stored", rec.Balance.String()).
			Str("ledger", balance.String()).
			Msg("remote balance disagrees with ledger")
	}

	return domain.WalletState{
		Balance:      balance,
		Transactions: txns,
		Contacts:     contacts,
		PINHash:      rec.PINHash,
	}, true
}

func (m *WalletManager) loadCache(ctx context.Context, scope string) (domain.WalletState, string) {
	st := m.defaultState()

	var balance decimal.Decimal
	found, err := m.cache.Load(ctx, scope, ports.KeyBalance, &balance)
	if err != nil {
		m.log.Warn().Err(err).Str("scope", scope).Msg("reading cached balance")
	}
	if !found {
		return st, metrics.SourceDefault
	}
	st.Balance = balance

	var txns []domain.Transaction
	if ok, err := m.cache.Load(ctx, scope, ports.KeyTransactions, &txns); err == nil && ok && txns != nil {
		st.Transactions = txns
	}
	var contacts []domain.Contact
	if ok, err := m.cache.Load(ctx, scope, ports.KeyContacts, &contacts); err == nil && ok {
		st.Contacts = contacts
	}
	var pin string
	if ok, err := m.cache.Load(ctx, scope, ports.KeyPIN, &pin); err == nil && ok && pin != "" {
		st.PINHash = &pin
	}
	return st, metrics.SourceCache
}

// Debit records an outgoing payment.
func (m *WalletManager) Debit(ctx context.Context, amount decimal.Decimal, description, counterparty string) (domain.Transaction, error) {
	return m.apply(ctx, domain.TransactionTypeDebit, amount, description, counterparty)
}

// Credit records an incoming payment.
func (m *WalletManager) Credit(ctx context.Context, amount decimal.Decimal, description, counterparty string) (domain.Transaction, error) {
	return m.apply(ctx, domain.TransactionTypeCredit, amount, description, counterparty)
}

func (m *WalletManager) apply(ctx context.Context, typ domain.TransactionType, amount decimal.Decimal, description, counterparty string) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, apperror.ErrInvalidAmount()
	}

	m.mu.Lock()
	if typ == domain.TransactionTypeDebit && m.state.Balance.LessThan(amount) {
		m.mu.Unlock()
		return domain.Transaction{}, apperror.ErrInsufficientFunds()
	}

	tx := domain.Transaction{
		ID:               uuid.New(),
		Amount:           amount,
		Type:             typ,
		Description:      description,
		CounterpartyName: counterparty,
		Timestamp:        m.clock.Now(),
	}
	m.state.Balance = m.state.Balance.Add(tx.Signed())
	m.state.Transactions = prepend(m.state.Transactions, tx)
	m.pendingTx = append(m.pendingTx, tx)
	m.mirrorLocked(ctx, ports.KeyBalance, ports.KeyTransactions)
	w, snap := m.writeLocked(), m.state.Clone()
	m.mu.Unlock()

	m.notify(snap)
	m.debouncer.Schedule(w)
	return tx, nil
}

// TransferToRegisteredUser moves amount to another registered user. Unlike
// Debit it needs the remote store to accept the transfer first; on failure
// local state is left untouched and the error is returned. Queued writes are
// pushed before the transfer so the remote balance includes them.
func (m *WalletManager) TransferToRegisteredUser(ctx context.Context, recipientID uuid.UUID, recipientName string, amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, apperror.ErrInvalidAmount()
	}

	m.mu.Lock()
	owner, balance := m.owner, m.state.Balance
	m.mu.Unlock()

	if !owner.Authenticated() {
		return domain.Transaction{}, apperror.ErrUnauthenticated()
	}
	if recipientID == owner.UserID {
		return domain.Transaction{}, apperror.Validation("cannot transfer to yourself")
	}
	if balance.LessThan(amount) {
		metrics.RecordTransfer(apperror.ErrInsufficientFunds())
		return domain.Transaction{}, apperror.ErrInsufficientFunds()
	}
	if err := m.syncPending(ctx); err != nil {
		metrics.RecordTransfer(err)
		m.warn(owner, "sync before transfer", err)
		return domain.Transaction{}, err
	}

	req := domain.TransferRequest{
		SenderID:      owner.UserID,
		SenderName:    owner.Name,
		RecipientID:   recipientID,
		RecipientName: recipientName,
		Amount:        amount,
		TransactionID: uuid.New(),
	}

	m.inflight.Add(1)
	rctx, cancel := context.WithTimeout(ctx, m.opts.RemoteTimeout)
	res, err := m.remote.TransferToUser(rctx, req)
	cancel()
	m.inflight.Add(-1)
	metrics.RecordTransfer(err)
	if err != nil {
		m.warn(owner, "transfer", err)
		return domain.Transaction{}, err
	}

	tx := res.Transaction
	if tx.ID == uuid.Nil {
		tx = domain.Transaction{
			ID:               req.TransactionID,
			Amount:           amount,
			Type:             domain.TransactionTypeDebit,
			Description:      "Sent to " + recipientName,
			CounterpartyName: recipientName,
			Timestamp:        m.clock.Now(),
			RecipientUserID:  &recipientID,
		}
	}

	m.mu.Lock()
	if m.owner.UserID != owner.UserID {
		// identity switched while the call was in flight; the remote ledger has it
		m.mu.Unlock()
		return tx, nil
	}
	m.state.Balance = m.state.Balance.Sub(amount)
	m.state.Transactions = prepend(m.state.Transactions, tx)
	keys := []string{ports.KeyBalance, ports.KeyTransactions}
	if _, seen := m.state.FindContactByUser(recipientID); !seen {
		c := domain.Contact{
			ID:           uuid.New(),
			Name:         recipientName,
			LinkedUserID: &recipientID,
			CreatedAt:    m.clock.Now(),
		}
		m.state.Contacts = append(m.state.Contacts, c)
		m.pendingContacts = append(m.pendingContacts, c)
		keys = append(keys, ports.KeyContacts)
	}
	m.mirrorLocked(ctx, keys...)
	w, snap := m.writeLocked(), m.state.Clone()
	m.mu.Unlock()

	m.log.Info().
		Str("user_id", owner.UserID.String()).
		Str("recipient_id", recipientID.String()).
		Str("amount", amount.String()).
		Msg("transfer completed")

	m.notify(snap)
	m.debouncer.Schedule(w)
	return tx, nil
}

// AddContact appends an address-book entry.
func (m *WalletManager) AddContact(ctx context.Context, name, phone string, email, picture *string, linkedUserID *uuid.UUID) (domain.Contact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Contact{}, apperror.Validation("contact name is required")
	}

	c := domain.Contact{
		ID:           uuid.New(),
		Name:         name,
		Phone:        strings.TrimSpace(phone),
		Email:        email,
		Picture:      picture,
		LinkedUserID: linkedUserID,
		CreatedAt:    m.clock.Now(),
	}

	m.mu.Lock()
	m.state.Contacts = append(m.state.Contacts, c)
	m.pendingContacts = append(m.pendingContacts, c)
	m.mirrorLocked(ctx, ports.KeyContacts)
	w, snap := m.writeLocked(), m.state.Clone()
	m.mu.Unlock()

	m.notify(snap)
	m.debouncer.Schedule(w)
	return c, nil
}

// SetPIN replaces the PIN. Only its Argon2id hash is kept.
func (m *WalletManager) SetPIN(ctx context.Context, pin string) error {
	if !domain.ValidPIN(pin) {
		return apperror.ErrInvalidPIN()
	}
	hash, err := m.hasher.Hash(pin)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash pin: %w", err))
	}

	m.mu.Lock()
	m.state.PINHash = &hash
	m.pinDirty = true
	m.mirrorLocked(ctx, ports.KeyPIN)
	w, snap := m.writeLocked(), m.state.Clone()
	m.mu.Unlock()

	m.notify(snap)
	m.debouncer.Schedule(w)
	return nil
}

// VerifyPIN checks candidate against the PIN. True when no PIN is set.
func (m *WalletManager) VerifyPIN(candidate string) bool {
	m.mu.Lock()
	hash := m.state.PINHash
	m.mu.Unlock()

	if hash == nil || *hash == "" {
		return true
	}
	ok, err := m.hasher.Verify(candidate, *hash)
	if err != nil {
		m.log.Warn().Err(err).Msg("verifying pin")
		return false
	}
	return ok
}

// ChangePIN replaces the PIN after checking the current one.
func (m *WalletManager) ChangePIN(ctx context.Context, oldPIN, newPIN string) error {
	if !domain.ValidPIN(newPIN) {
		return apperror.ErrInvalidPIN()
	}
	if !m.VerifyPIN(oldPIN) {
		return apperror.ErrIncorrectPIN()
	}
	return m.SetPIN(ctx, newPIN)
}

// Reset restores the seed balance and default contacts and clears the
// ledger, locally and then remotely in one call. The PIN is kept.
func (m *WalletManager) Reset(ctx context.Context) {
	m.mu.Lock()
	m.state.Balance = m.opts.SeedBalance
	m.state.Transactions = []domain.Transaction{}
	m.state.Contacts = domain.DefaultContacts()
	m.pendingTx = nil
	m.pendingContacts = nil
	m.resetGen++
	m.mirrorLocked(ctx, ports.KeyBalance, ports.KeyTransactions, ports.KeyContacts)
	w, snap := m.writeLocked(), m.state.Clone()
	m.mu.Unlock()

	m.notify(snap)
	m.debouncer.Schedule(w)
}

// Snapshot returns a copy of the current state.
func (m *WalletManager) Snapshot() domain.WalletState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Owner returns the identity the current state belongs to.
func (m *WalletManager) Owner() domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Syncing reports whether a remote call is in flight.
func (m *WalletManager) Syncing() bool {
	return m.inflight.Load() > 0
}

// Subscribe registers fn to receive every new state. Call the returned
// function to unsubscribe.
func (m *WalletManager) Subscribe(fn func(domain.WalletState)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

// HasPendingWrites reports whether a debounced write is waiting to be sent.
func (m *WalletManager) HasPendingWrites() bool {
	return m.debouncer.Pending()
}

// Flush sends any pending write now. Returns false if nothing was pending.
func (m *WalletManager) Flush() bool {
	return m.debouncer.Flush()
}

// Close flushes pending writes.
func (m *WalletManager) Close() {
	m.debouncer.Flush()
}

func (m *WalletManager) notify(s domain.WalletState) {
	m.subMu.Lock()
	fns := make([]func(domain.WalletState), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(s.Clone())
	}
}

// writeLocked captures what the next flush must send. Caller holds mu.
func (m *WalletManager) writeLocked() walletWrite {
	w := walletWrite{
		owner:    m.owner,
		txns:     append([]domain.Transaction(nil), m.pendingTx...),
		contacts: append([]domain.Contact(nil), m.pendingContacts...),
	}
	if m.resetGen > m.resetSent {
		w.resetGen = m.resetGen
	}
	if m.pinDirty && m.state.PINHash != nil {
		h := *m.state.PINHash
		w.pinHash = &h
	}
	return w
}

// mirrorLocked writes the given keys to the local cache. Caller holds mu.
func (m *WalletManager) mirrorLocked(ctx context.Context, keys ...string) {
	scope := m.owner.Scope()
	for _, key := range keys {
		var err error
		switch key {
		case ports.KeyBalance:
			err = m.cache.Store(ctx, scope, key, m.state.Balance)
		case ports.KeyTransactions:
			err = m.cache.Store(ctx, scope, key, m.state.Transactions)
		case ports.KeyContacts:
			err = m.cache.Store(ctx, scope, key, m.state.Contacts)
		case ports.KeyPIN:
			if m.state.HasPIN() {
				err = m.cache.Store(ctx, scope, key, *m.state.PINHash)
			} else {
				err = m.cache.Delete(ctx, scope, key)
			}
		}
		if err != nil {
			m.log.Warn().Err(err).Str("scope", scope).Str("key", key).Msg("mirroring to local cache")
		}
	}
}

// writeThrough is the debounced flush. Failures are logged; unsent items
// stay queued for the next cycle.
func (m *WalletManager) writeThrough(w walletWrite) {
	if !w.owner.Authenticated() {
		return
	}

	m.inflight.Add(1)
	defer m.inflight.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.RemoteTimeout)
	defer cancel()

	err := m.push(ctx, w)
	metrics.RecordSyncWrite(entityWallet, err)
	if err != nil {
		m.warn(w.owner, "write-through", err)
		return
	}
	m.log.Debug().
		Str("user_id", w.owner.UserID.String()).
		Bool("reset", w.resetGen != 0).
		Int("transactions", len(w.txns)).
		Int("contacts", len(w.contacts)).
		Msg("wallet synced")
}

// syncPending pushes queued writes synchronously, in place of the debounced
// flush. On failure the write is queued again and the error returned.
func (m *WalletManager) syncPending(ctx context.Context) error {
	m.debouncer.Cancel()

	m.mu.Lock()
	w := m.writeLocked()
	m.mu.Unlock()
	if !w.dirty() {
		return nil
	}

	m.inflight.Add(1)
	defer m.inflight.Add(-1)

	rctx, cancel := context.WithTimeout(ctx, m.opts.RemoteTimeout)
	defer cancel()

	err := m.push(rctx, w)
	metrics.RecordSyncWrite(entityWallet, err)
	if err != nil {
		m.mu.Lock()
		retry := m.writeLocked()
		m.mu.Unlock()
		m.debouncer.Schedule(retry)
		return err
	}
	return nil
}

func (m *WalletManager) push(ctx context.Context, w walletWrite) error {
	m.pushMu.Lock()
	defer m.pushMu.Unlock()

	userID := w.owner.UserID
	if w.resetGen != 0 {
		if err := m.remote.ResetWallet(ctx, userID, m.opts.SeedBalance); err != nil {
			return fmt.Errorf("reset wallet: %w", err)
		}
		m.ack(userID, func() {
			if w.resetGen > m.resetSent {
				m.resetSent = w.resetGen
			}
		})
	}
	for _, t := range w.txns {
		if _, err := m.remote.AddTransaction(ctx, userID, t); err != nil {
			if !rejected(err) {
				return fmt.Errorf("add transaction %s: %w", t.ID, err)
			}
			// resending cannot succeed; the next Load adopts the remote ledger
			m.log.Warn().Err(err).
				Str("user_id", userID.String()).
				Str("tx_id", t.ID.String()).
				Msg("remote store rejected transaction, dropping it")
		}
		m.ack(userID, func() { m.pendingTx = removeTx(m.pendingTx, t.ID) })
	}
	for _, c := range w.contacts {
		if _, err := m.remote.AddContact(ctx, userID, c); err != nil {
			return fmt.Errorf("add contact %s: %w", c.ID, err)
		}
		m.ack(userID, func() { m.pendingContacts = removeContact(m.pendingContacts, c.ID) })
	}
	if w.pinHash != nil {
		if err := m.remote.UpdateWalletPIN(ctx, userID, *w.pinHash); err != nil {
			return fmt.Errorf("update pin: %w", err)
		}
		m.ack(userID, func() {
			if m.state.PINHash != nil && *m.state.PINHash == *w.pinHash {
				m.pinDirty = false
			}
		})
	}
	return nil
}

// ack applies fn if userID still owns the state.
func (m *WalletManager) ack(userID uuid.UUID, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner.UserID == userID {
		fn()
	}
}

func (m *WalletManager) warn(id domain.Identity, op string, err error) {
	m.log.Warn().Err(err).Str("user_id", id.UserID.String()).Str("op", op).Msg("remote store call failed")
}

// rejected reports whether the remote store refused an entry on its merits.
func rejected(err error) bool {
	switch apperror.CodeOf(err) {
	case apperror.CodeInsufficientFunds, apperror.CodeInvalidAmount, apperror.CodeValidation:
		return true
	}
	return false
}

func prepend(txns []domain.Transaction, t domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txns)+1)
	out = append(out, t)
	return append(out, txns...)
}

func removeTx(txns []domain.Transaction, id uuid.UUID) []domain.Transaction {
	out := txns[:0]
	for _, t := range txns {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func removeContact(contacts []domain.Contact, id uuid.UUID) []domain.Contact {
	out := contacts[:0]
	for _, c := range contacts {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
