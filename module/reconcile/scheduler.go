package reconcile

import (
	"context"
	"time"

	"CareChat/logger"
	"CareChat/tools/clock"

	"go.uber.org/zap"
)

// Lease 集群内单实例执行的租约，annotation.RedisLocker 即满足
type Lease interface {
	Acquire(ctx context.Context, key string) (token string, acquired bool, err error)
	Release(ctx context.Context, key, token string) error
}

type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler 按间隔执行任务；拿到租约的实例才执行本轮
type Scheduler struct {
	lease    Lease
	key      string
	interval func() time.Duration
	clock    clock.Clock
	jobs     []Job
}

func NewScheduler(lease Lease, key string, interval func() time.Duration, c clock.Clock, jobs ...Job) *Scheduler {
	if c == nil {
		c = clock.Real()
	}
	return &Scheduler{lease: lease, key: key, interval: interval, clock: c, jobs: jobs}
}

// Run 阻塞直到 ctx 结束
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.interval()):
		}
		s.Tick(ctx)
	}
}

// Tick 执行一轮，返回是否拿到了租约
func (s *Scheduler) Tick(ctx context.Context) bool {
	token, ok, err := s.lease.Acquire(ctx, s.key)
	if err != nil {
		logger.Warn("sweep lease unavailable", zap.String("key", s.key), zap.Error(err))
		return false
	}
	if !ok {
		logger.Debug("sweep lease held elsewhere", zap.String("key", s.key))
		return false
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := s.lease.Release(rctx, s.key, token); err != nil {
			logger.Warn("release sweep lease failed", zap.Error(err))
		}
	}()
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			return true
		}
		if err := j.Run(ctx); err != nil {
			logger.Error("scheduled job failed", zap.String("job", j.Name), zap.Error(err))
		}
	}
	return true
}
