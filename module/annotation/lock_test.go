package annotation

import (
	"context"
	"testing"
	"time"

	"CareChat/tools/clock"
	"CareChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerExpiresAndChecksToken(t *testing.T) {
	ctx := context.Background()
	fc := clock.Fake(t0)
	l := NewMemoryLocker(10*time.Second, fc)

	tok, ok, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.Acquire(ctx, "k")
	assert.False(t, ok)

	fc.Advance(11 * time.Second)
	tok2, ok, _ := l.Acquire(ctx, "k")
	require.True(t, ok)

	// 旧持有者释放不影响新持有者
	require.NoError(t, l.Release(ctx, "k", tok))
	assert.True(t, l.Held("k"))
	require.NoError(t, l.Release(ctx, "k", tok2))
	assert.False(t, l.Held("k"))
}

// ctxLocker 记录释放时 ctx 是否仍可用
type ctxLocker struct {
	*MemoryLocker
	releaseCtxErr error
	released      bool
}

func (l *ctxLocker) Release(ctx context.Context, key, token string) error {
	l.released = true
	l.releaseCtxErr = ctx.Err()
	return l.MemoryLocker.Release(ctx, key, token)
}

func TestGuardReleasesOnPanic(t *testing.T) {
	l := NewMemoryLocker(time.Minute, nil)
	g := Guard{Locker: l}
	assert.Panics(t, func() {
		_ = g.WithLock(context.Background(), "m1", func(context.Context) error { panic("boom") })
	})
	assert.False(t, l.Held("m1"))
}

func TestGuardReleasesWithLiveContextAfterCancel(t *testing.T) {
	l := &ctxLocker{MemoryLocker: NewMemoryLocker(time.Minute, nil)}
	g := Guard{Locker: l}
	ctx, cancel := context.WithCancel(context.Background())

	err := g.WithLock(ctx, "m1", func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, l.released)
	assert.NoError(t, l.releaseCtxErr)
	assert.False(t, l.Held("m1"))
}

func TestGuardContended(t *testing.T) {
	l := NewMemoryLocker(time.Minute, nil)
	_, ok, _ := l.Acquire(context.Background(), "m1")
	require.True(t, ok)

	called := false
	err := Guard{Locker: l}.WithLock(context.Background(), "m1", func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, errs.ErrLocked.Is(err))
	assert.False(t, called)
}

func TestGuardHoldBoundsCriticalSection(t *testing.T) {
	l := NewMemoryLocker(time.Minute, nil)
	g := Guard{Locker: l, Hold: 20 * time.Millisecond}

	err := g.WithLock(context.Background(), "m1", func(ctx context.Context) error {
		dl, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), dl, 20*time.Millisecond)
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, l.Held("m1"))
}
