package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"CareChat/tools/clock"
	"CareChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeRetrier() (*Retrier, *clock.FakeClock) {
	fc := clock.Fake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New("test", errs.IsTransient).WithClock(fc), fc
}

func TestRetrySucceedsAfterContention(t *testing.T) {
	r, fc := newFakeRetrier()
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errs.ErrLocked.Wrap()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fc.Waits())
}

func TestRetryExhaustsSchedule(t *testing.T) {
	r, fc := newFakeRetrier()
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errs.ErrLocked.Wrap()
	})
	require.Error(t, err)
	assert.True(t, errs.ErrLocked.Is(err))
	assert.Equal(t, 4, calls)
	assert.Equal(t, DefaultDelays, fc.Waits())
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	r, fc := newFakeRetrier()
	boom := errors.New("boom")
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, fc.Waits())
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	r, _ := newFakeRetrier()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Do(ctx, func(context.Context) error {
		return errs.ErrLocked.Wrap()
	})
	assert.ErrorIs(t, err, context.Canceled)
}
