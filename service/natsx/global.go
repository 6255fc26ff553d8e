package natsx

import (
	"context"
	"sync"

	"CareChat/logger"
	"CareChat/tools/errs"

	"go.uber.org/zap"
)

var (
	mu            sync.Mutex
	global        *NatsxClient
	pendingRoutes = make(map[string]NatsxRoute) // 启动前注册的路由
)

var errNotStarted = errs.New("nats not started")

// StartNats 连接并应用启动前缓存的路由；重复调用无副作用
func StartNats(cfg NatsxConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		return nil
	}
	c, err := NewNatsxClient(cfg)
	if err != nil {
		return err
	}
	for biz, r := range pendingRoutes {
		if err := c.RegisterRoute(r); err != nil {
			logger.Error("register route failed", zap.String("biz", biz), zap.Error(err))
		}
	}
	pendingRoutes = make(map[string]NatsxRoute)
	global = c
	logger.Info("nats started", zap.Strings("servers", cfg.Servers))
	return nil
}

func StopNats() error {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		return nil
	}
	err := global.Close()
	global = nil
	return err
}

// RegisterRoute 未启动时先缓存，启动后立即生效
func RegisterRoute(r NatsxRoute) error {
	if r.Biz == "" || r.Subject == "" {
		return errs.ErrArgs.WrapMsg("invalid route", "biz", r.Biz, "subject", r.Subject)
	}
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		pendingRoutes[r.Biz] = r
		return nil
	}
	return global.RegisterRoute(r)
}

func current() (*NatsxClient, error) {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		return nil, errNotStarted.Wrap()
	}
	return global, nil
}

func Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	c, err := current()
	if err != nil {
		return err
	}
	return c.Publish(ctx, biz, data, hdr)
}

// PublishOnce 带 Nats-Msg-Id 去重
func PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	c, err := current()
	if err != nil {
		return err
	}
	return c.PublishOnce(ctx, biz, data, hdr, msgID)
}
