package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	nacoswatch "CareChat/config"
	"CareChat/global/config"
	"CareChat/logger"
	"CareChat/tools/clock"
	"CareChat/tools/ids"
	"CareChat/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		cfgPath = pflag.StringP("config", "c", "config/carechat.yaml", "config file path")
		backend = pflag.String("backend", "", "override backend: infra | memory")
	)
	pflag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", zap.String("path", *cfgPath), zap.Error(err))
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	logger.SetLevel(cfg.Log.Level)
	ids.SetNodeID(cfg.NodeID)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, newVendors(cfg), clock.Real())
	if err != nil {
		logger.Error("bootstrap", zap.String("backend", cfg.Backend), zap.Error(err))
		os.Exit(1)
	}
	defer a.close()

	if cfg.Nacos.Enabled {
		watchPolicy(cfg, a)
	}
	if cfg.Scheduler.Enabled {
		safe.Go("scheduler", func() { a.scheduler.Run(ctx) })
	}

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: newRouter(cfg, a)}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr), zap.String("backend", cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("bye")
}

// watchPolicy 远端策略热更新；Nacos 不可用时沿用本地配置
func watchPolicy(cfg *config.AppConfig, a *app) {
	cli, err := nacoswatch.NewNacosClient(cfg.Nacos)
	if err != nil {
		logger.Warn("nacos disabled", zap.Error(err))
		return
	}
	w := nacoswatch.NewWatcher(cli, cfg.Nacos.DataID, cfg.Nacos.Group, a.policy.Update)
	if err := w.Start(); err != nil {
		logger.Warn("nacos watch failed, using local policy", zap.Error(err))
	}
}
