package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowLimiterEnforcesLimit(t *testing.T) {
	l := NewSlidingWindowLimiter(3, time.Minute)
	defer l.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "reader-1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := l.Allow(ctx, "reader-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestSlidingWindowLimiterKeysAreIndependent(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Minute)
	defer l.Stop()
	ctx := context.Background()

	allowed, _ := l.Allow(ctx, "reader-1")
	require.True(t, allowed)
	allowed, _ = l.Allow(ctx, "reader-1")
	require.False(t, allowed)

	allowed, _ = l.Allow(ctx, "reader-2")
	assert.True(t, allowed)
}

func TestSlidingWindowLimiterExpiresOldRequests(t *testing.T) {
	l := NewSlidingWindowLimiter(1, 20*time.Millisecond)
	defer l.Stop()
	ctx := context.Background()

	allowed, _ := l.Allow(ctx, "reader-1")
	require.True(t, allowed)
	allowed, _ = l.Allow(ctx, "reader-1")
	require.False(t, allowed)

	time.Sleep(30 * time.Millisecond)

	allowed, _ = l.Allow(ctx, "reader-1")
	assert.True(t, allowed)
}

func TestSlidingWindowLimiterResetForgetsKey(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Minute)
	defer l.Stop()
	ctx := context.Background()

	allowed, _ := l.Allow(ctx, "reader-1")
	require.True(t, allowed)
	allowed, _ = l.Allow(ctx, "reader-1")
	require.False(t, allowed)

	require.NoError(t, l.Reset(ctx, "reader-1"))

	allowed, _ = l.Allow(ctx, "reader-1")
	assert.True(t, allowed)
}

func TestIPAndUserLimitersUseDistinctKeySpaces(t *testing.T) {
	ctx := context.Background()
	ip := NewIPRateLimiter(1)
	user := NewUserRateLimiter(1)

	allowed, _ := ip.Allow(ctx, "10.0.0.1")
	require.True(t, allowed)
	allowed, _ = ip.Allow(ctx, "10.0.0.1")
	require.False(t, allowed)

	allowed, _ = user.Allow(ctx, "10.0.0.1")
	assert.True(t, allowed)
}
