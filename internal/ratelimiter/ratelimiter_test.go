package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinBurst(t *testing.T) {
	rl := New(10, 5)

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow(), "request %d should be admitted", i)
	}
	assert.False(t, rl.Allow(), "burst exhausted, request should be rejected")
}

func TestZeroRateIsUnlimited(t *testing.T) {
	rl := New(0, 0)

	for i := 0; i < 1000; i++ {
		require.True(t, rl.Allow())
	}
}

func TestTokensReplenish(t *testing.T) {
	rl := New(100, 1)

	require.True(t, rl.Allow())
	require.False(t, rl.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.Allow(), "token should replenish at 100/s")
}

func TestWaitRespectsCancellation(t *testing.T) {
	rl := New(1, 1)
	require.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.Error(t, err)
}

func TestDefaultBurstMatchesRate(t *testing.T) {
	rl := New(3, 0)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow())
	}
	assert.False(t, rl.Allow())
}
