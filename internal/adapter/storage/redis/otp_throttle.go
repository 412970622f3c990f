package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const otpSentPrefix = "otp:sent:"

// OTPThrottle implements ports.OTPThrottle. A send slot is a key that lives
// for the resend interval; whoever creates it may send.
type OTPThrottle struct {
	client goredis.UniversalClient
}

func NewOTPThrottle(client goredis.UniversalClient) *OTPThrottle {
	return &OTPThrottle{client: client}
}

// Acquire reports whether userID may be sent a code now, holding the slot for
// interval when it may.
func (t *OTPThrottle) Acquire(ctx context.Context, userID string, interval time.Duration) (bool, error) {
	won, err := t.client.SetNX(ctx, otpSentPrefix+userID, time.Now().Unix(), interval).Result()
	if err != nil {
		return false, fmt.Errorf("claiming otp slot for %s: %w", userID, err)
	}
	return won, nil
}

// Release gives the slot back after a failed delivery.
func (t *OTPThrottle) Release(ctx context.Context, userID string) error {
	if err := t.client.Del(ctx, otpSentPrefix+userID).Err(); err != nil {
		return fmt.Errorf("releasing otp slot for %s: %w", userID, err)
	}
	return nil
}
