package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter shields the HTTP edge from bursty clients. Pacing of
// saves and comment submissions inside a reading session is a separate
// concern handled by pkg/throttle; these limiters only answer "may
// this request enter at all".
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter allows at most `limit` requests per key within
// a rolling window. Request timestamps are kept per key and pruned on
// each check; idle keys are dropped by a janitor so one-off readers do
// not accumulate forever.
type SlidingWindowLimiter struct {
	limit      int
	windowSize time.Duration

	mu      sync.Mutex
	entries map[string]*windowEntry

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

type windowEntry struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
}

// NewSlidingWindowLimiter creates a limiter and starts its janitor
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		limit:       limit,
		windowSize:  windowSize,
		entries:     make(map[string]*windowEntry),
		stopJanitor: make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Allow records the request and reports whether it fits in the window
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &windowEntry{}
		l.entries[key] = entry
	}
	l.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.lastSeen = now

	// Stamps are appended in order, so everything before the first
	// in-window stamp can be cut in one slice
	cutoff := now.Add(-l.windowSize)
	firstValid := len(entry.stamps)
	for i, stamp := range entry.stamps {
		if stamp.After(cutoff) {
			firstValid = i
			break
		}
	}
	entry.stamps = entry.stamps[firstValid:]

	if len(entry.stamps) >= l.limit {
		return false, nil
	}

	entry.stamps = append(entry.stamps, now)
	return true, nil
}

// Reset forgets a key entirely
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}

// Stop ends the janitor goroutine
func (l *SlidingWindowLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopJanitor) })
}

func (l *SlidingWindowLimiter) janitor() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stopJanitor:
			return
		}
	}
}

func (l *SlidingWindowLimiter) evictIdle() {
	cutoff := time.Now().Add(-time.Hour)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.entries {
		entry.mu.Lock()
		idle := entry.lastSeen.Before(cutoff)
		entry.mu.Unlock()
		if idle {
			delete(l.entries, key)
		}
	}
}

// IPRateLimiter limits anonymous traffic per source address
type IPRateLimiter struct {
	limiter RateLimiter
}

// NewIPRateLimiter creates a per-IP limiter with a one-minute window
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	return &IPRateLimiter{
		limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute),
	}
}

// Allow checks whether a request from the address may proceed
func (l *IPRateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	return l.limiter.Allow(ctx, "ip:"+ip)
}

// UserRateLimiter limits authenticated traffic per reader/author.
// Authenticated users get a higher budget than raw IPs since several
// readers can share an address.
type UserRateLimiter struct {
	limiter RateLimiter
}

// NewUserRateLimiter creates a per-user limiter with a one-minute window
func NewUserRateLimiter(requestsPerMinute int) *UserRateLimiter {
	return &UserRateLimiter{
		limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute),
	}
}

// Allow checks whether a request from the user may proceed
func (l *UserRateLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	return l.limiter.Allow(ctx, "user:"+userID)
}
