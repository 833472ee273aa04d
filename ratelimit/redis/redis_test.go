package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, limit int, window time.Duration) *Limiter {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	prefix := fmt.Sprintf("goexplain-test:%s:", uuid.NewString())
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
	})

	l, err := New(client, Config{KeyPrefix: prefix, Limit: limit, Window: window})
	require.NoError(t, err)
	return l
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	_, err = New(client, Config{Limit: 0})
	assert.Error(t, err)

	l, err := New(client, Config{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, "goexplain:", l.config.KeyPrefix)
	assert.Equal(t, time.Minute, l.config.Window)
	assert.Equal(t, "goexplain:ratelimit:10.0.0.1", l.key("10.0.0.1"))
}

func TestLimiter_Allow(t *testing.T) {
	l := setupLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "client")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := l.Allow(ctx, "client")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_Check_Remaining(t *testing.T) {
	l := setupLimiter(t, 2, time.Minute)
	ctx := context.Background()

	allowed, remaining, resetAt, err := l.Check(ctx, "client")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
	assert.True(t, resetAt.After(time.Now()))

	_, remaining, _, err = l.Check(ctx, "client")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	allowed, remaining, _, err = l.Check(ctx, "client")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestLimiter_SlidingWindowExpires(t *testing.T) {
	l := setupLimiter(t, 1, time.Minute)
	ctx := context.Background()

	base := time.Now()
	l.now = func() time.Time { return base }

	ok, err := l.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = l.Allow(ctx, "client")
	assert.False(t, ok)

	l.now = func() time.Time { return base.Add(time.Minute + time.Millisecond) }
	ok, err = l.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_SameMillisecondRequestsCountSeparately(t *testing.T) {
	l := setupLimiter(t, 5, time.Minute)
	ctx := context.Background()

	fixed := time.Now()
	l.now = func() time.Time { return fixed }

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "client")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "client")
	assert.False(t, ok)
}
