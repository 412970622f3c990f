package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OTPRecord is an issued one-time passcode.
type OTPRecord struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Phone     string    `json:"phone"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired returns true if the code is no longer usable at now.
func (r *OTPRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// Profile holds per-user account details owned by the backend.
type Profile struct {
	UserID        uuid.UUID `json:"user_id"`
	Phone         string    `json:"phone"`
	PhoneVerified bool      `json:"phone_verified"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NormalizePhone strips every non-digit and then any leading zeros.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}
