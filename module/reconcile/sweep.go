package reconcile

import (
	"context"
	"sync/atomic"

	"CareChat/logger"
	"CareChat/module/chat/model"
	"CareChat/tools/errs"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ForEach 以有限并发对每个会话执行 fn，错误与 panic 都只计数和记日志，返回失败数
func ForEach(ctx context.Context, name string, limit int, convs []model.Conversation, fn func(ctx context.Context, conv *model.Conversation) error) int {
	if limit <= 0 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	var failed atomic.Int64
	for i := range convs {
		if ctx.Err() != nil {
			break
		}
		conv := &convs[i]
		g.Go(func() error {
			if err := isolate(ctx, conv, fn); err != nil {
				failed.Add(1)
				logger.Warn(name+" failed", zap.String("conversation", conv.VendorID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load())
}

func isolate(ctx context.Context, conv *model.Conversation, fn func(ctx context.Context, conv *model.Conversation) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.ErrPanic(r)
		}
	}()
	return fn(ctx, conv)
}
