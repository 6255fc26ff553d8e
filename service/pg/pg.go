package pg

import (
	"context"
	"time"

	"CareChat/logger"
	"CareChat/tools/errs"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Config struct {
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// NewPool 建连接池并 ping，启动期短暂不可用时指数退避重试
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("postgres dsn", "err", err.Error())
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errs.WrapMsg(err, "postgres pool")
	}

	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 30 * time.Second
	err = backoff.RetryNotify(func() error {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return pool.Ping(pctx)
	}, backoff.WithContext(eb, ctx), func(err error, next time.Duration) {
		logger.Warn("postgres ping failed", zap.Error(err), zap.Duration("retry_in", next))
	})
	if err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "postgres ping")
	}
	logger.Info("postgres ready", zap.String("host", pc.ConnConfig.Host), zap.String("database", pc.ConnConfig.Database))
	return pool, nil
}
