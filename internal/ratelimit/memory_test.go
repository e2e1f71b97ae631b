package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterBurst(t *testing.T) {
	// Negligible refill so the burst dominates.
	m := NewMemoryLimiter(0.001, 3)
	defer func() { _ = m.Close() }()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst should pass", i+1)
	}

	ok, err := m.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, ok, "request beyond burst should be limited")
}

func TestMemoryLimiterKeysIndependent(t *testing.T) {
	m := NewMemoryLimiter(0.001, 1)
	defer func() { _ = m.Close() }()

	ctx := context.Background()
	ok, err := m.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different key gets its own bucket.
	ok, err = m.Allow(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	m := NewMemoryLimiter(1, 1)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestNoopLimiter(t *testing.T) {
	var l Limiter = NoopLimiter{}
	for i := 0; i < 100; i++ {
		ok, err := l.Allow(context.Background(), "any")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	require.NoError(t, l.Close())
}
