package notify

import (
	"CareChat/global"
	"CareChat/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	c *Checker
}

func NewHandler(c *Checker) *Handler { return &Handler{c: c} }

func (h *Handler) Register(r gin.IRouter) {
	middleware.POST(r, "/conversations/:conversationId/unread-check", h.check, middleware.RouteOpt{IsAuth: true})
}

func (h *Handler) check(c *gin.Context) {
	created, err := h.c.CheckConversation(c.Request.Context(), c.Param("conversationId"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, gin.H{"created": created})
}
