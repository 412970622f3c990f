package dto

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := ContactRequest{
		Name:  "  Neha Gupta  ",
		Phone: " 9000000001 ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "Neha Gupta", req.Name)
	assert.Equal(t, "9000000001", req.Phone)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := TransactionRequest{
		Description: "Bill <script>alert('x')</script>",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Description, "&lt;script&gt;")
	assert.NotContains(t, req.Description, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	pic := "  https://example.com/p.png  "
	req := ContactRequest{Name: "bob", Picture: &pic}
	SanitizeStruct(&req)

	assert.Equal(t, "https://example.com/p.png", *req.Picture)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := ContactRequest{Name: "carol", Email: nil}
	SanitizeStruct(&req)
	assert.Nil(t, req.Email)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestAchievementIDPattern(t *testing.T) {
	for _, id := range []string{"first_transaction", "scam-buster", "streak.7", "QR10"} {
		assert.True(t, achievementIDPattern.MatchString(id), id)
	}
	for _, id := range []string{"first transaction", "id<1>", "x;DROP", "", "a\nb", ".hidden", strings.Repeat("a", 65)} {
		assert.False(t, achievementIDPattern.MatchString(id), id)
	}
}

func TestSanitizeStruct_DropsControlCharacters(t *testing.T) {
	req := TransferRequest{RecipientName: "Ravi\u0000 Kumar\t"}
	SanitizeStruct(&req)
	assert.Equal(t, "Ravi Kumar", req.RecipientName)
}

func TestSanitizeStruct_CleansStringSlices(t *testing.T) {
	req := AchievementStatsRequest{Unlocked: []string{"  streak.7 ", "qr-10"}}
	SanitizeStruct(&req)
	assert.Equal(t, []string{"streak.7", "qr-10"}, req.Unlocked)
}

func TestBinding_DecimalAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
		valid  bool
	}{
		{"positive", decimal.RequireFromString("2500"), true},
		{"fractional", decimal.RequireFromString("0.50"), true},
		{"zero", decimal.Zero, false},
		{"negative", decimal.NewFromInt(-1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := TransactionRequest{Amount: tt.amount, Type: "DEBIT"}
			err := binding.Validator.ValidateStruct(&req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestBinding_BalanceAllowsZero(t *testing.T) {
	zero := decimal.Zero
	assert.NoError(t, binding.Validator.ValidateStruct(&UpdateBalanceRequest{Balance: &zero}))

	neg := decimal.NewFromInt(-10)
	assert.Error(t, binding.Validator.ValidateStruct(&UpdateBalanceRequest{Balance: &neg}))

	assert.Error(t, binding.Validator.ValidateStruct(&UpdateBalanceRequest{}), "balance is required")
}

func TestBinding_TransactionType(t *testing.T) {
	req := TransactionRequest{Amount: decimal.NewFromInt(1), Type: "REFUND"}
	assert.Error(t, binding.Validator.ValidateStruct(&req))
}

func TestBinding_TransferRequiresRecipient(t *testing.T) {
	req := TransferRequest{RecipientName: "Ravi", Amount: decimal.NewFromInt(10)}
	assert.Error(t, binding.Validator.ValidateStruct(&req))

	req.RecipientID = uuid.New()
	assert.NoError(t, binding.Validator.ValidateStruct(&req))
}

func TestBinding_ContactPictureURL(t *testing.T) {
	for _, raw := range []string{"javascript:alert(1)", "https://", "/relative/a.png"} {
		bad := raw
		req := ContactRequest{Name: "x", Picture: &bad}
		assert.Error(t, binding.Validator.ValidateStruct(&req), raw)
	}

	req := ContactRequest{Name: "x"}

	good := "https://cdn.example.com/a.png"
	req.Picture = &good
	assert.NoError(t, binding.Validator.ValidateStruct(&req))
}

func TestBinding_UnlockedIDs(t *testing.T) {
	req := AchievementStatsRequest{Unlocked: []string{"first_transaction", "bad id"}}
	assert.Error(t, binding.Validator.ValidateStruct(&req))
}
