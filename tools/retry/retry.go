package retry

import (
	"context"
	"time"

	"CareChat/logger"
	"CareChat/tools/clock"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DefaultDelays is the wait before each retry: three retries after the
// first attempt, 1s then 2s then 3s.
var DefaultDelays = []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}

// Retrier re-runs an operation on a fixed delay schedule while the returned
// error is classified as retryable. Anything else stops immediately.
type Retrier struct {
	Name      string
	Delays    []time.Duration
	Retryable func(error) bool
	Clock     clock.Clock
}

func New(name string, retryable func(error) bool, delays ...time.Duration) *Retrier {
	if len(delays) == 0 {
		delays = DefaultDelays
	}
	return &Retrier{Name: name, Delays: delays, Retryable: retryable, Clock: clock.Real()}
}

func (r *Retrier) WithClock(c clock.Clock) *Retrier {
	cp := *r
	cp.Clock = c
	return &cp
}

func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if r.Retryable == nil || !r.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		logger.Debug("retrying",
			zap.String("op", r.Name),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err))
	}

	b := backoff.WithContext(&schedule{delays: r.Delays}, ctx)
	return backoff.RetryNotifyWithTimer(operation, b, notify, &clockTimer{clock: r.clockOrReal()})
}

func (r *Retrier) clockOrReal() clock.Clock {
	if r.Clock == nil {
		return clock.Real()
	}
	return r.Clock
}

// schedule is a backoff.BackOff that walks a fixed list of delays.
type schedule struct {
	delays []time.Duration
	next   int
}

func (s *schedule) NextBackOff() time.Duration {
	if s.next >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.next]
	s.next++
	return d
}

func (s *schedule) Reset() { s.next = 0 }

type clockTimer struct {
	clock clock.Clock
	c     <-chan time.Time
}

func (t *clockTimer) Start(d time.Duration) { t.c = t.clock.After(d) }
func (t *clockTimer) Stop()                 {}
func (t *clockTimer) C() <-chan time.Time   { return t.c }
