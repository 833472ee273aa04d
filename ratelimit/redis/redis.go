// Package redis provides a distributed sliding-window rate limiter backed by Redis.
// Each check runs as a single Lua script so concurrent instances stay consistent.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis limiter configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "goexplain:")
	KeyPrefix string

	// Limit is the number of requests allowed per window (required)
	Limit int

	// Window is the sliding window length (default: 1 minute)
	Window time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "goexplain:",
		Limit:     60,
		Window:    time.Minute,
	}
}

// Limiter implements a sliding-window rate limit using sorted sets.
type Limiter struct {
	client redis.UniversalClient
	config Config
	script *redis.Script
	now    func() time.Time
}

// Sliding window over a sorted set scored by millisecond timestamps.
// Returns {allowed, remaining, resetAtMillis}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

	local count = redis.call('ZCARD', key)
	local allowed = 0
	local remaining = 0

	if count < limit then
		redis.call('ZADD', key, now, member)
		allowed = 1
		remaining = limit - count - 1
	end

	local resetAt = now + window
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if oldest and #oldest >= 2 then
		resetAt = tonumber(oldest[2]) + window
	end

	redis.call('PEXPIRE', key, window * 2)

	return {allowed, remaining, resetAt}
`)

// New creates a new Redis rate limiter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Limiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "goexplain:"
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &Limiter{
		client: client,
		config: config,
		script: slidingWindow,
		now:    time.Now,
	}, nil
}

// Allow implements api.Limiter.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, _, _, err := l.Check(ctx, key)
	return allowed, err
}

// Check records a request for key and reports whether it is within the limit,
// how many requests remain and when the oldest request leaves the window.
//
//nolint:gocritic // Named return values would reduce readability here
func (l *Limiter) Check(ctx context.Context, key string) (bool, int, time.Time, error) {
	nowMillis := l.now().UnixMilli()

	result, err := l.script.Run(
		ctx,
		l.client,
		[]string{l.key(key)},
		nowMillis,
		l.config.Limit,
		l.config.Window.Milliseconds(),
		uuid.NewString(),
	).Result()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit script: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected result from rate limit script: %v", result)
	}

	allowed, ok := values[0].(int64)
	if !ok {
		return false, 0, time.Time{}, fmt.Errorf("invalid allowed value")
	}
	remaining, ok := values[1].(int64)
	if !ok {
		return false, 0, time.Time{}, fmt.Errorf("invalid remaining value")
	}
	resetAt, ok := values[2].(int64)
	if !ok {
		return false, 0, time.Time{}, fmt.Errorf("invalid reset time value")
	}

	return allowed == 1, int(remaining), time.UnixMilli(resetAt).UTC(), nil
}

// Ping checks connectivity to Redis.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Limiter) key(key string) string {
	return fmt.Sprintf("%sratelimit:%s", l.config.KeyPrefix, key)
}
