package main

import (
	"CareChat/global"
	"CareChat/global/config"
	"CareChat/middleware"
	"CareChat/middleware/security"
	"CareChat/module/annotation"
	"CareChat/module/index"
	"CareChat/module/notify"
	"CareChat/module/reconcile"
	sec "CareChat/tools/security"

	"github.com/gin-gonic/gin"
)

func newRouter(cfg *config.AppConfig, a *app) *gin.Engine {
	middleware.Manager().Add("request_id", middleware.RequestID())
	middleware.Auth = security.Middleware(&security.Options{
		JWT: sec.Options{
			Secret: []byte(cfg.Auth.JWTSecret),
			Alg:    cfg.Auth.Alg,
			TTL:    cfg.Auth.TTL,
			Issuer: cfg.Auth.Issuer,
		},
		Clock:       a.clock,
		HeaderToken: "Authorization",
	})

	r := gin.New()
	r.Use(middleware.Manager().Use(), middleware.Recovery(), middleware.AccessLog())

	r.GET("/healthz", func(c *gin.Context) {
		global.Success(c, gin.H{"status": "ok", "backend": cfg.Backend})
	})
	a.webhook().Register(r, security.SharedSecret(cfg.Vendor.WebhookHeader, cfg.Vendor.WebhookSecret))

	v1 := r.Group("/v1")
	annotation.NewHandler(a.annotation).Register(v1)
	index.NewHandler(a.tracker).Register(v1)
	reconcile.NewHandler(a.reconciler).Register(v1)
	notify.NewHandler(a.checker).Register(v1)
	return r
}
