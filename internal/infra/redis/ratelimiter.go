package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/armorlens/api/pkg/crypto"
	"github.com/armorlens/api/pkg/logger"
)

// allowScript trims the window, then records the request if under limit.
// Returns {allowed, remaining, reset_or_retry_ms}.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local window_ms = tonumber(ARGV[3])
	local limit = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1, now + window_ms}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_at = oldest[2] and (tonumber(oldest[2]) + window_ms) or (now + window_ms)
	return {0, 0, retry_at}
`)

// RateLimiter is a sliding-window log limiter shared by every replica. The
// dataset service uses it to cap how often one upstream source is fetched.
type RateLimiter struct {
	client    *Client
	keyPrefix string
	limit     int
	window    time.Duration
	logger    *logger.Logger
}

// RateLimitResult is the outcome of one Allow call.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	// RetryAt is when the oldest entry leaves the window. Set only when
	// Allowed is false.
	RetryAt time.Time
}

// NewRateLimiter creates a limiter allowing limit events per window per key.
func NewRateLimiter(client *Client, prefix string, limit int, window time.Duration, log *logger.Logger) (*RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	return &RateLimiter{
		client:    client,
		keyPrefix: prefix,
		limit:     limit,
		window:    window,
		logger:    log,
	}, nil
}

// buildKey hashes the caller's key so URLs never appear in Redis keys.
func (rl *RateLimiter) buildKey(key string) string {
	return rl.keyPrefix + ":" + crypto.HashKey(key, 12)
}

// Allow consumes one slot for key if available.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}

	done := Timed("ratelimit_allow")
	now := time.Now()
	res, err := allowScript.Run(ctx, rl.client.client, []string{rl.buildKey(key)},
		now.UnixMilli(),
		now.Add(-rl.window).UnixMilli(),
		rl.window.Milliseconds(),
		rl.limit,
		uuid.NewString(),
	).Int64Slice()
	done(err)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit check: unexpected reply length %d", len(res))
	}

	result := &RateLimitResult{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
	}
	DefaultMetrics.RecordRateLimitResult(rl.keyPrefix, result.Allowed)

	if !result.Allowed {
		result.RetryAt = time.UnixMilli(res[2])
		rl.logger.Debug("fetch rate limit exceeded", "retry_at", result.RetryAt)
	}
	return result, nil
}
