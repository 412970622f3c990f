package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a ledger entry.
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "DEBIT"
	TransactionTypeCredit TransactionType = "CREDIT"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeDebit || t == TransactionTypeCredit
}

// Transaction is an immutable ledger entry. Entries are only ever appended.
type Transaction struct {
	ID               uuid.UUID       `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	Type             TransactionType `json:"type"`
	Description      string          `json:"description"`
	CounterpartyName string          `json:"counterparty_name"`
	Timestamp        time.Time       `json:"timestamp"`
	RecipientUserID  *uuid.UUID      `json:"recipient_user_id,omitempty"`
}

// Signed returns the balance delta of the entry: negative for debits.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// LedgerBalance replays txns on top of seed.
func LedgerBalance(seed decimal.Decimal, txns []Transaction) decimal.Decimal {
	balance := seed
	for _, t := range txns {
		balance = balance.Add(t.Signed())
	}
	return balance
}
