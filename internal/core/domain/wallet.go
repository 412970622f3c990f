package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultSeedBalance is the play-money balance given to first-time and offline users.
var DefaultSeedBalance = decimal.NewFromInt(10000)

var pinRe = regexp.MustCompile(`^[0-9]{4}$`)

// ValidPIN reports whether pin is exactly four digits.
func ValidPIN(pin string) bool {
	return pinRe.MatchString(pin)
}

// Contact is an address-book entry. LinkedUserID is set when the contact is a
// registered user who can receive transfers.
type Contact struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone,omitempty"`
	Email        *string    `json:"email,omitempty"`
	Picture      *string    `json:"picture,omitempty"`
	LinkedUserID *uuid.UUID `json:"linked_user_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsUser returns true if the contact references a registered user.
func (c Contact) IsUser() bool {
	return c.LinkedUserID != nil && *c.LinkedUserID != uuid.Nil
}

// DefaultContacts returns the demo address book restored on reset.
func DefaultContacts() []Contact {
	return []Contact{
		{ID: uuid.MustParse("7b0c1c0e-2f55-4f1e-9d1a-5e8d3f0a0001"), Name: "Mom", Phone: "9876543210"},
		{ID: uuid.MustParse("7b0c1c0e-2f55-4f1e-9d1a-5e8d3f0a0002"), Name: "Ravi Kumar", Phone: "9123456780"},
		{ID: uuid.MustParse("7b0c1c0e-2f55-4f1e-9d1a-5e8d3f0a0003"), Name: "Priya Sharma", Phone: "9988776655"},
		{ID: uuid.MustParse("7b0c1c0e-2f55-4f1e-9d1a-5e8d3f0a0004"), Name: "Local Grocery", Phone: "8012345678"},
	}
}

// WalletState is the client-side view of a user's wallet.
type WalletState struct {
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Transaction   `json:"transactions"` // newest first
	Contacts     []Contact       `json:"contacts"`
	PINHash      *string         `json:"-"`
}

// HasPIN returns true if a PIN credential is set.
func (s WalletState) HasPIN() bool {
	return s.PINHash != nil && *s.PINHash != ""
}

// Clone returns a copy that shares no slices with s.
func (s WalletState) Clone() WalletState {
	out := WalletState{Balance: s.Balance}
	out.Transactions = append([]Transaction(nil), s.Transactions...)
	out.Contacts = append([]Contact(nil), s.Contacts...)
	if s.PINHash != nil {
		h := *s.PINHash
		out.PINHash = &h
	}
	return out
}

// FindContactByUser returns the contact linked to userID, if any.
func (s WalletState) FindContactByUser(userID uuid.UUID) (Contact, bool) {
	for _, c := range s.Contacts {
		if c.LinkedUserID != nil && *c.LinkedUserID == userID {
			return c, true
		}
	}
	return Contact{}, false
}

// WalletRecord is the authoritative wallet row held by the backend.
type WalletRecord struct {
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	PINHash   *string         `json:"pin_hash,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TransferRequest moves value between two users' ledgers.
type TransferRequest struct {
	SenderID      uuid.UUID       `json:"sender_id"`
	SenderName    string          `json:"sender_name"`
	RecipientID   uuid.UUID       `json:"recipient_id"`
	RecipientName string          `json:"recipient_name"`
	Amount        decimal.Decimal `json:"amount"`
	// TransactionID is the client-generated id of the sender's debit entry.
	TransactionID uuid.UUID `json:"transaction_id"`
}

// TransferResult is returned by a successful transfer.
type TransferResult struct {
	Success          bool            `json:"success"`
	SenderNewBalance decimal.Decimal `json:"sender_new_balance"`
	Transaction      Transaction     `json:"transaction"`
}
