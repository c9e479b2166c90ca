package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLock()
	l.nowFn = func() time.Time { return now }

	tokenA, ok, err := l.Acquire(ctx, "payroll:sender:a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, tokenA)

	// 同一个 key 不能重复获取
	_, ok, err = l.Acquire(ctx, "payroll:sender:a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 不同 key 互不影响
	tokenB, ok, err := l.Acquire(ctx, "payroll:sender:b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "payroll:sender:a", tokenA))
	_, ok, err = l.Acquire(ctx, "payroll:sender:a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// TTL 过期后自动失效，旧 token 不能再续期
	now = now.Add(2 * time.Minute)
	_, ok, err = l.Acquire(ctx, "payroll:sender:b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Refresh(ctx, "payroll:sender:b", tokenB, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalLockRefreshExtendsExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLock()
	l.nowFn = func() time.Time { return now }

	token, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(50 * time.Second)
	ok, err = l.Refresh(ctx, "k", token, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// 超过最初的 TTL 仍然被持有
	now = now.Add(30 * time.Second)
	_, ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalLockReleaseIgnoresStaleToken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLock()
	l.nowFn = func() time.Time { return now }

	stale, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// 过期持有者的释放不能删掉新持有者的锁
	require.NoError(t, l.Release(ctx, "k", stale))
	_, ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalLockCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewLocalLock().Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
