package global

import (
	"net/http"

	"CareChat/logger"
	"CareChat/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Msg struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, &Msg{Code: 0, Msg: "ok", Data: data})
}

// Fail CodeError 原样返回 code/msg/detail，HTTP 状态按错误类别映射
func Fail(c *gin.Context, err error) {
	ce := errs.AsCodeError(err)
	status := HTTPStatus(ce.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, &Msg{Code: ce.Code, Msg: ce.Msg, Detail: ce.Detail})
}

func HTTPStatus(code int) int {
	switch {
	case code == errs.ArgsError:
		return http.StatusBadRequest
	case code == errs.ConversationTypeError:
		return http.StatusUnprocessableEntity
	case code == errs.NoPermissionError:
		return http.StatusForbidden
	case code == errs.TokenExpiredError || code == errs.TokenInvalidError:
		return http.StatusUnauthorized
	case code == errs.RecordNotFoundError || errs.DefaultCodeRelation.Is(errs.RecordNotFoundError, code):
		return http.StatusNotFound
	case code == errs.AnnotationLockedError:
		return http.StatusConflict
	case code == errs.LockUnavailableError || code == errs.VendorUnavailableError:
		return http.StatusServiceUnavailable
	case code == errs.NotificationPublishError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// BindJSON 解析失败直接回 400
func BindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		Fail(c, errs.ErrArgs.WrapMsg("bad request body", "err", err.Error()))
		return false
	}
	return true
}
