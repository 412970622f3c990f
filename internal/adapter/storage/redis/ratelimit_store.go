package redis

import (
	"context"
	"fmt"
	"time"

	"payquest/pkg/clock"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimitStore keeps fixed-window request counters in Redis, shared by
// every API replica.
type RateLimitStore struct {
	client goredis.UniversalClient
	prefix string
	clock  clock.Clock
}

// RateLimitOption customizes a RateLimitStore.
type RateLimitOption func(*RateLimitStore)

// WithRateLimitClock replaces the wall clock used to pick windows.
func WithRateLimitClock(c clock.Clock) RateLimitOption {
	return func(s *RateLimitStore) { s.clock = c }
}

func NewRateLimitStore(client goredis.UniversalClient, opts ...RateLimitOption) *RateLimitStore {
	s := &RateLimitStore{client: client, prefix: "ratelimit:", clock: clock.NewReal()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix seconds at which the window rolls over
}

// Allow counts one hit against key in the current window. Windows are
// aligned to multiples of the window size; the increment and its expiry are
// sent in one MULTI so a counter never outlives its window by more than a second.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	size := int64(window / time.Second)
	if size < 1 {
		size = 1
	}
	now := s.clock.Now()
	start := now.Unix() / size * size
	end := time.Unix(start+size, 0)
	redisKey := fmt.Sprintf("%s%s:%d", s.prefix, key, start)

	var hits *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		hits = p.Incr(ctx, redisKey)
		p.PExpire(ctx, redisKey, end.Sub(now)+time.Second)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := hits.Val()
	return &RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   end.Unix(),
	}, nil
}
