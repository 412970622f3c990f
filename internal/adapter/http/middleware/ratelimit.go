package middleware

import (
	"context"
	"strconv"
	"time"

	redisStore "payquest/internal/adapter/storage/redis"
	"payquest/internal/metrics"
	"payquest/pkg/apperror"
	"payquest/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule is the budget of one route group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the per-group API limits. Transfers and OTP
// sends are the expensive calls, so they get the tightest budgets.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"ledger":     {Limit: 120, Window: time.Minute},
		"transfers":  {Limit: 30, Window: time.Minute},
		"otp_send":   {Limit: 10, Window: time.Hour},
		"otp_verify": {Limit: 10, Window: time.Minute},
	}
}

// Limiter counts hits per key; *redis.RateLimitStore implements it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimiter enforces rule for one route group, keyed by the authenticated
// user (or client IP before authentication). If the limiter is unreachable
// the request goes through.
func RateLimiter(limiter Limiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.Allow(c.Request.Context(), group+":"+rateLimitSubject(c), rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limiter unavailable, request not counted")
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if result.Allowed {
			c.Next()
			return
		}

		wait := max(result.ResetAt-time.Now().Unix(), 1)
		h.Set("Retry-After", strconv.FormatInt(wait, 10))
		metrics.RecordRateLimited(group)
		response.Error(c, apperror.ErrRateLimitExceeded())
		c.Abort()
	}
}

func rateLimitSubject(c *gin.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + id.String()
	}
	return "ip:" + c.ClientIP()
}
