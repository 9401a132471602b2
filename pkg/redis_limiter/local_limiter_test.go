package redis_limiter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLimiter(2)

	require.NoError(t, l.Acquire(ctx, "processing"))
	require.NoError(t, l.Acquire(ctx, "processing"))

	err := l.Acquire(ctx, "processing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLimitReached))

	// 不同 key 互不影响
	require.NoError(t, l.Acquire(ctx, "other"))

	current, err := l.GetCurrent(ctx, "processing")
	require.NoError(t, err)
	assert.Equal(t, 2, current)

	l.Release(ctx, "processing")
	require.NoError(t, l.Acquire(ctx, "processing"))
}

func TestLocalLimiter_ReleaseWithoutAcquire(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLimiter(0)
	assert.Equal(t, 1, l.GetMaxConcurrent())

	l.Release(ctx, "processing")
	current, _ := l.GetCurrent(ctx, "processing")
	assert.Equal(t, 0, current)
	require.NoError(t, l.Acquire(ctx, "processing"))
}

func TestLocalLimiter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLocalLimiter(1)
	assert.ErrorIs(t, l.Acquire(ctx, "processing"), context.Canceled)
}
