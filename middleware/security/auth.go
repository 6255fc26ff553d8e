package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"CareChat/tools/clock"
	"CareChat/tools/errs"
	sec "CareChat/tools/security"

	"github.com/gin-gonic/gin"
)

// context key，后续 handler 统一用它读取操作用户
const (
	CtxUserIDKey = "userID"
	CtxClaimsKey = "claims"
)

type Options struct {
	JWT   sec.Options
	Clock clock.Clock
	// 读取哪个请求头，默认 Authorization: Bearer xxx
	HeaderToken string
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		JWT:         sec.DefaultOptions(secret),
		Clock:       clock.Real(),
		HeaderToken: "Authorization",
	}
}

// Middleware 校验 Bearer JWT，sub 写入 context
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader(opts.HeaderToken))
		if token == "" {
			abort(c, http.StatusUnauthorized, errs.ErrTokenInvalid.WithDetail("missing bearer token"))
			return
		}
		claims, err := sec.Verify(opts.JWT, token, opts.Clock.Now())
		if err != nil {
			ce := errs.AsCodeError(err)
			abort(c, http.StatusUnauthorized, *ce)
			return
		}
		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// SharedSecret 供应商 webhook 使用的共享密钥校验
func SharedSecret(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abort(c, http.StatusUnauthorized, errs.ErrNoPermission.WithDetail("bad webhook secret"))
			return
		}
		c.Next()
	}
}

// UserID 当前操作用户
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

func bearer(h string) string {
	h = strings.TrimSpace(h)
	if len(h) > len("bearer ") && strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return ""
}

func abort(c *gin.Context, status int, ce errs.CodeError) {
	c.AbortWithStatusJSON(status, ce)
}
