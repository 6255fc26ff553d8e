package middleware

import (
	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	IsAuth bool
}

// Auth 需要鉴权的路由使用的中间件，由 router 启动时设置
var Auth gin.HandlerFunc

func handlers(h gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if opt.IsAuth {
		if Auth == nil {
			panic("middleware.Auth not configured")
		}
		return []gin.HandlerFunc{Auth, h}
	}
	return []gin.HandlerFunc{h}
}

func POST(r gin.IRoutes, path string, h gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, handlers(h, opt)...)
}

func GET(r gin.IRoutes, path string, h gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, handlers(h, opt)...)
}

func PUT(r gin.IRoutes, path string, h gin.HandlerFunc, opt RouteOpt) {
	r.PUT(path, handlers(h, opt)...)
}

func DELETE(r gin.IRoutes, path string, h gin.HandlerFunc, opt RouteOpt) {
	r.DELETE(path, handlers(h, opt)...)
}
