package global

import (
	"context"
	"time"

	"CareChat/global/config"
	"CareChat/logger"
	"CareChat/service/kafka"
	mgoSrv "CareChat/service/mgo"
	"CareChat/service/natsx"
	"CareChat/service/pg"
	redis "CareChat/service/storage/redis"
	"CareChat/tools/errs"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Infra infra 后端启动后的连接句柄
type Infra struct {
	Mongo *mongo.Database
	Pg    *pgxpool.Pool
}

// ConfigAll 依次连接 redis / mongo / postgres / kafka / nats，任何一步失败即返回
func ConfigAll(ctx context.Context, cfg *config.AppConfig) (*Infra, error) {
	if err := ConfigRedis(cfg.Redis); err != nil {
		return nil, err
	}
	db, err := ConfigMgo(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pg.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if err := kafka.Init(cfg.Kafka.Config, cfg.Kafka.NotificationTopic); err != nil {
		pool.Close()
		return nil, err
	}
	if err := natsx.StartNats(cfg.Nats); err != nil {
		pool.Close()
		return nil, err
	}
	return &Infra{Mongo: db, Pg: pool}, nil
}

func ConfigRedis(c redis.Config) error {
	return redis.InitRedis(c)
}

// ConfigMgo 后台连接并保持重连；这里最多等 30s 首次就绪
func ConfigMgo(ctx context.Context, cfg *config.AppConfig) (*mongo.Database, error) {
	mgoSrv.StartAsync(ctx, &cfg.Mongo)
	wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mgoSrv.WaitReady(wctx, mgoSrv.Manager()); err != nil {
		return nil, errs.WrapMsg(err, "mongo not ready", "last", mgoSrv.Err())
	}
	return mgoSrv.GetDB(), nil
}

// Close 逆序释放
func (i *Infra) Close() {
	if err := natsx.StopNats(); err != nil {
		logger.Warn("stop nats", zap.Error(err))
	}
	if err := kafka.Close(); err != nil {
		logger.Warn("close kafka", zap.Error(err))
	}
	if i.Pg != nil {
		i.Pg.Close()
	}
	if err := redis.CloseRedis(); err != nil {
		logger.Warn("close redis", zap.Error(err))
	}
}
