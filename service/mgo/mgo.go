package mgo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	mgo "CareChat/data/database/mgo/mongoutil"
	"CareChat/logger"
	"CareChat/tools/errs"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type MongoManager struct {
	mu        sync.RWMutex
	client    *mgo.Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once

	lastErr atomic.Value // error
}

var globalMgr = MongoManager{readyCh: make(chan struct{})}

const (
	healthEvery = 10 * time.Second // 健康检查周期
	failThresh  = 3                // 连续失败告警阈值
)

// StartAsync 一直运行到 ctx.Done()；首次连上时 close readyCh。
// 连上之后不再替换 client：驱动自带连接池重连，调用方持有的 *mongo.Database 始终有效
func StartAsync(ctx context.Context, cfg *mgo.Config) {
	go func() {
		if !connect(ctx, cfg) {
			return
		}
		watchHealth(ctx)
	}()
}

// connect 带指数退避地重试直到成功；ctx 结束返回 false
func connect(ctx context.Context, cfg *mgo.Config) bool {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxInterval = 5 * time.Second
	eb.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		cli, err := mgo.NewMongoDB(ctx, cfg)
		if err != nil {
			return err
		}
		globalMgr.mu.Lock()
		globalMgr.client = cli
		globalMgr.mu.Unlock()
		globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
		logger.Info("mongo ready", zap.String("database", cfg.Database))
		return nil
	}, backoff.WithContext(eb, ctx), func(err error, next time.Duration) {
		globalMgr.lastErr.Store(err)
		logger.Warn("mongo connect failed", zap.Error(err), zap.Duration("retry_in", next))
	})
	return err == nil
}

// watchHealth 周期 ping，连续失败只告警；ctx 结束时断开
func watchHealth(ctx context.Context) {
	fail := 0
	ticker := time.NewTicker(healthEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			disconnect()
			return
		case <-ticker.C:
			globalMgr.mu.RLock()
			c := globalMgr.client
			globalMgr.mu.RUnlock()
			if c == nil {
				return
			}
			if err := c.GetDB().Client().Ping(ctx, nil); err != nil {
				fail++
				globalMgr.lastErr.Store(err)
				if fail == failThresh {
					logger.Error("mongo unhealthy", zap.Error(err), zap.Int("failures", fail))
				}
				continue
			}
			if fail >= failThresh {
				logger.Info("mongo recovered")
			}
			fail = 0
		}
	}
}

func disconnect() {
	globalMgr.mu.Lock()
	defer globalMgr.mu.Unlock()
	if globalMgr.client != nil {
		_ = globalMgr.client.Disconnect(context.Background())
		globalMgr.client = nil
	}
}

// Ready 首次连接成功时会 close；可 select 等待
func Ready() <-chan struct{} {
	return globalMgr.readyCh
}

func Manager() *MongoManager {
	return &globalMgr
}

// Err 最近一次错误
func Err() error {
	if v := globalMgr.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func GetDB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		panic("Mongo not ready: wait Ready() or use TryGetDB()")
	}
	return globalMgr.client.GetDB()
}

func TryGetDB() (*mongo.Database, bool) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		return nil, false
	}
	return globalMgr.client.GetDB(), true
}

func WaitReady(ctx context.Context, m *MongoManager) error {
	m.mu.RLock()
	readyCh := m.readyCh
	clientNil := m.client == nil
	m.mu.RUnlock()

	if !clientNil {
		return nil
	}
	if readyCh == nil {
		return errs.New("mongo manager not started").Wrap()
	}

	select {
	case <-readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
