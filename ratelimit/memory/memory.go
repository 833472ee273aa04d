// Package memory provides an in-process fixed-window rate limiter.
package memory

import (
	"context"
	"sync"
	"time"
)

// Limiter limits requests per key within a fixed window.
// Expired buckets are swept every cleanupEvery requests or when the map grows past cleanupAtSize.
type Limiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	limit         int
	window        time.Duration
	now           func() time.Time
	requestCount  int
	cleanupEvery  int
	cleanupAtSize int
}

type bucket struct {
	count   int
	resetAt time.Time
}

// New creates a limiter allowing limit requests per key per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		buckets:       make(map[string]*bucket),
		limit:         limit,
		window:        window,
		now:           time.Now,
		cleanupEvery:  100,
		cleanupAtSize: 200,
	}
}

// Allow reports whether key may proceed. It never returns an error.
func (l *Limiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	l.requestCount++
	if l.requestCount%l.cleanupEvery == 0 || len(l.buckets) > l.cleanupAtSize {
		l.cleanupExpired(now)
		if l.requestCount >= l.cleanupEvery*10 {
			l.requestCount = 0
		}
	}

	b, exists := l.buckets[key]
	if !exists || !now.Before(b.resetAt) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return true, nil
	}

	if b.count >= l.limit {
		return false, nil
	}
	b.count++
	return true, nil
}

func (l *Limiter) cleanupExpired(now time.Time) {
	for key, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}

// Cleanup removes all expired buckets.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanupExpired(l.now())
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
