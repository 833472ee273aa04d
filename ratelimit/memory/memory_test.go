package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(limit, window)
	l.now = clock.Now
	return l, clock
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "keys are independent")
}

func TestLimiter_WindowResets(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter(1, time.Second)

	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.False(t, ok)

	clock.Advance(time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestLimiter_CleanupPreventsMemoryLeak(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter(10, time.Second)

	for i := 0; i < 150; i++ {
		_, _ = l.Allow(ctx, fmt.Sprintf("192.168.1.%d", i))
	}
	assert.Equal(t, 150, l.Len())

	clock.Advance(2 * time.Second)
	l.Cleanup()
	assert.Zero(t, l.Len())
}

func TestLimiter_CleanupOnSize(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter(10, time.Second)

	for i := 0; i < 201; i++ {
		_, _ = l.Allow(ctx, fmt.Sprintf("a-%d", i))
	}
	clock.Advance(2 * time.Second)

	// the map is over cleanupAtSize, so the next request sweeps expired keys
	_, _ = l.Allow(ctx, "fresh")
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_Concurrent(t *testing.T) {
	ctx := context.Background()
	l := New(50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow(ctx, "shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
