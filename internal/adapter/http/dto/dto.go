package dto

import (
	"time"

	"payquest/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletResponse is the response body for a wallet query.
type WalletResponse struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	PIN       *string         `json:"pin,omitempty"` // credential hash
	UpdatedAt string          `json:"updated_at"`
}

// NewWalletResponse maps a wallet row to its wire form.
func NewWalletResponse(w *domain.WalletRecord) WalletResponse {
	return WalletResponse{
		UserID:    w.UserID.String(),
		Balance:   w.Balance,
		PIN:       w.PINHash,
		UpdatedAt: w.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// UpdateBalanceRequest is the request body for overwriting a balance.
type UpdateBalanceRequest struct {
	Balance *decimal.Decimal `json:"balance" binding:"required,gte=0"`
}

// UpdatePINRequest carries the PIN credential hash, never the PIN itself.
type UpdatePINRequest struct {
	PIN string `json:"pin" binding:"required,max=256"`
}

// TransactionRequest is the request body for appending a ledger entry.
type TransactionRequest struct {
	ID               uuid.UUID       `json:"id"`
	Amount           decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Type             string          `json:"type" binding:"required,oneof=DEBIT CREDIT"`
	Description      string          `json:"description" binding:"max=200"`
	CounterpartyName string          `json:"counterparty_name" binding:"max=100"`
	Timestamp        time.Time       `json:"timestamp"`
	RecipientUserID  *uuid.UUID      `json:"recipient_user_id,omitempty"`
}

// ToDomain converts the request into a ledger entry.
func (r TransactionRequest) ToDomain() domain.Transaction {
	return domain.Transaction{
		ID:               r.ID,
		Amount:           r.Amount,
		Type:             domain.TransactionType(r.Type),
		Description:      r.Description,
		CounterpartyName: r.CounterpartyName,
		Timestamp:        r.Timestamp,
		RecipientUserID:  r.RecipientUserID,
	}
}

// ContactRequest is the request body for adding an address-book entry.
type ContactRequest struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name" binding:"required,max=100"`
	Phone        string     `json:"phone" binding:"max=20"`
	Email        *string    `json:"email,omitempty" binding:"omitempty,email"`
	Picture      *string    `json:"picture,omitempty" binding:"omitempty,web_url"`
	LinkedUserID *uuid.UUID `json:"linked_user_id,omitempty"`
}

// ToDomain converts the request into a contact.
func (r ContactRequest) ToDomain() domain.Contact {
	return domain.Contact{
		ID:           r.ID,
		Name:         r.Name,
		Phone:        r.Phone,
		Email:        r.Email,
		Picture:      r.Picture,
		LinkedUserID: r.LinkedUserID,
	}
}

// TransferRequest is the request body for a cross-ledger transfer.
// The sender is the user in the request path.
type TransferRequest struct {
	SenderName    string          `json:"sender_name" binding:"max=100"`
	RecipientID   uuid.UUID       `json:"recipient_id" binding:"required"`
	RecipientName string          `json:"recipient_name" binding:"required,max=100"`
	Amount        decimal.Decimal `json:"amount" binding:"required,gt=0"`
	TransactionID uuid.UUID       `json:"transaction_id"`
}

// AchievementStatsRequest replaces the stored stats snapshot.
type AchievementStatsRequest struct {
	Stats    domain.Stats `json:"stats"`
	Unlocked []string     `json:"unlocked" binding:"dive,achievement_id"`
}

// SendOTPRequest is the request body for /send-otp.
type SendOTPRequest struct {
	Phone string `json:"phone" binding:"required,max=20"`
}

// SendOTPResponse is the response body for /send-otp.
type SendOTPResponse struct {
	Success   bool   `json:"success"`
	ExpiresAt string `json:"expires_at"`
}

// VerifyOTPRequest is the request body for /verify-otp.
type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required,max=20"`
	Code  string `json:"code" binding:"required,numeric,max=10"`
}

// VerifyOTPResponse is the response body for /verify-otp.
type VerifyOTPResponse struct {
	Success bool   `json:"success"`
	Phone   string `json:"phone"`
}
