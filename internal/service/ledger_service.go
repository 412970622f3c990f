package service

import (
	"context"
	"fmt"
	"strings"

	"payquest/internal/core/domain"
	"payquest/internal/core/ports"
	"payquest/pkg/apperror"
	"payquest/pkg/clock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	walletRepo  ports.WalletRepository
	txRepo      ports.TransactionRepository
	contactRepo ports.ContactRepository
	transactor  ports.DBTransactor
	clock       clock.Clock
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	contactRepo ports.ContactRepository,
	transactor ports.DBTransactor,
	clk clock.Clock,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo:  walletRepo,
		txRepo:      txRepo,
		contactRepo: contactRepo,
		transactor:  transactor,
		clock:       clk,
		log:         log,
	}
}

// GetWallet returns the wallet row, or NF_001 when the user has none yet.
func (s *LedgerServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletRecord, error) {
	w, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w, nil
}

// UpdateBalance overwrites the stored balance, creating the wallet if needed.
// Ledger entries adjust the balance on their own; this is for seeding and
// repairing a wallet.
func (s *LedgerServiceImpl) UpdateBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return apperror.Validation("balance must not be negative")
	}
	if err := s.walletRepo.UpsertBalance(ctx, userID, balance); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("upsert balance: %w", err))
	}
	return nil
}

// UpdatePIN stores the PIN credential hash, creating the wallet if needed.
func (s *LedgerServiceImpl) UpdatePIN(ctx context.Context, userID uuid.UUID, pinHash string) error {
	if strings.TrimSpace(pinHash) == "" {
		return apperror.Validation("pin is required")
	}
	if err := s.walletRepo.UpsertPIN(ctx, userID, pinHash); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("upsert pin: %w", err))
	}
	return nil
}

// ListTransactions returns the full ledger, newest first.
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	txns, err := s.txRepo.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	return txns, nil
}

// AddTransaction records a client-created ledger entry and applies its
// signed amount to the balance in the same database transaction. Re-sending
// an entry with a known id is accepted and leaves ledger and balance
// unchanged. A missing wallet is created at the seed balance first.
func (s *LedgerServiceImpl) AddTransaction(ctx context.Context, userID uuid.UUID, t domain.Transaction) (*domain.Transaction, error) {
	if !t.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !t.Type.Valid() {
		return nil, apperror.Validation("type must be DEBIT or CREDIT")
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = s.clock.Now().UTC()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.lockOrCreate(ctx, dbTx, userID, domain.DefaultSeedBalance)
	if err != nil {
		return nil, err
	}
	balance := w.Balance.Add(t.Signed())
	if balance.IsNegative() {
		return nil, apperror.ErrInsufficientFunds()
	}

	inserted, err := s.txRepo.Append(ctx, dbTx, userID, &t)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("append transaction: %w", err))
	}
	if !inserted {
		s.log.Debug().Str("user_id", userID.String()).Str("tx_id", t.ID.String()).Msg("transaction already recorded")
		return &t, nil
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, userID, balance); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("apply transaction: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return &t, nil
}

// ResetWallet wipes the ledger and address book and sets the balance, all in
// one database transaction.
func (s *LedgerServiceImpl) ResetWallet(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return apperror.Validation("balance must not be negative")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.lockOrCreate(ctx, dbTx, userID, balance); err != nil {
		return err
	}
	if err := s.txRepo.DeleteByUser(ctx, dbTx, userID); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("clear ledger: %w", err))
	}
	if err := s.contactRepo.DeleteByUser(ctx, dbTx, userID); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("clear contacts: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, userID, balance); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("reset balance: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("user_id", userID.String()).Str("balance", balance.String()).Msg("wallet reset")
	return nil
}

// lockOrCreate locks the user's wallet row, inserting it at seed first when
// it does not exist yet.
func (s *LedgerServiceImpl) lockOrCreate(ctx context.Context, dbTx pgx.Tx, userID uuid.UUID, seed decimal.Decimal) (*domain.WalletRecord, error) {
	w, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if w != nil {
		return w, nil
	}
	if err := s.walletRepo.Insert(ctx, dbTx, userID, seed); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}
	w, err = s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w, nil
}

// ListContacts returns the user's address book.
func (s *LedgerServiceImpl) ListContacts(ctx context.Context, userID uuid.UUID) ([]domain.Contact, error) {
	contacts, err := s.contactRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list contacts: %w", err))
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	return contacts, nil
}

// AddContact records an address-book entry, idempotent on id.
func (s *LedgerServiceImpl) AddContact(ctx context.Context, userID uuid.UUID, c domain.Contact) (*domain.Contact, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, apperror.Validation("name is required")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.clock.Now().UTC()
	}

	if _, err := s.contactRepo.Append(ctx, userID, &c); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("append contact: %w", err))
	}
	return &c, nil
}

// Transfer moves value between two ledgers in one database transaction.
// Both wallets are locked in user-id order so concurrent opposite transfers
// cannot deadlock.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.SenderID == req.RecipientID {
		return nil, apperror.Validation("cannot transfer to yourself")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	lockOrder := []uuid.UUID{req.SenderID, req.RecipientID}
	if req.SenderID.String() > req.RecipientID.String() {
		lockOrder[0], lockOrder[1] = lockOrder[1], lockOrder[0]
	}
	locked := make(map[uuid.UUID]*domain.WalletRecord, 2)
	for _, id := range lockOrder {
		w, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		locked[id] = w
	}

	sender, recipient := locked[req.SenderID], locked[req.RecipientID]
	if sender == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if recipient == nil {
		return nil, apperror.ErrNotFound("recipient")
	}

	// Business rule: sufficient funds
	if sender.Balance.LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	senderBalance := sender.Balance.Sub(req.Amount)
	recipientBalance := recipient.Balance.Add(req.Amount)

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, req.SenderID, senderBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update sender balance: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, req.RecipientID, recipientBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update recipient balance: %w", err))
	}

	now := s.clock.Now().UTC()
	debitID := req.TransactionID
	if debitID == uuid.Nil {
		debitID = uuid.New()
	}
	recipientID := req.RecipientID

	debit := domain.Transaction{
		ID:               debitID,
		Amount:           req.Amount,
		Type:             domain.TransactionTypeDebit,
		Description:      TransferDebitDescription(req.RecipientName),
		CounterpartyName: req.RecipientName,
		Timestamp:        now,
		RecipientUserID:  &recipientID,
	}
	credit := domain.Transaction{
		ID:               uuid.New(),
		Amount:           req.Amount,
		Type:             domain.TransactionTypeCredit,
		Description:      TransferCreditDescription(req.SenderName),
		CounterpartyName: req.SenderName,
		Timestamp:        now,
	}

	if err := s.txRepo.Create(ctx, dbTx, req.SenderID, &debit); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create debit entry: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, req.RecipientID, &credit); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create credit entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", debit.ID.String()).
		Str("sender_id", req.SenderID.String()).
		Str("recipient_id", req.RecipientID.String()).
		Str("amount", req.Amount.String()).
		Msg("transfer completed")

	return &domain.TransferResult{
		Success:          true,
		SenderNewBalance: senderBalance,
		Transaction:      debit,
	}, nil
}

// TransferDebitDescription is the sender-side ledger text of a transfer.
func TransferDebitDescription(recipientName string) string {
	return "Sent to " + recipientName
}

// TransferCreditDescription is the recipient-side ledger text of a transfer.
func TransferCreditDescription(senderName string) string {
	return "Received from " + senderName
}
