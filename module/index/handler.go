package index

import (
	"time"

	"CareChat/global"
	"CareChat/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	tr *Tracker
}

func NewHandler(tr *Tracker) *Handler { return &Handler{tr: tr} }

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/conversations/:conversationId")
	auth := middleware.RouteOpt{IsAuth: true}
	middleware.PUT(g, "/read-index", h.updateReadIndex, auth)
	middleware.PUT(g, "/sent-index", h.updateSentIndex, auth)
}

type readIndexBody struct {
	Identity string `json:"identity" binding:"required"`
	Index    *int64 `json:"index" binding:"required"`
}

// updateReadIndex 会话不存在或序号越界时 data 为空
func (h *Handler) updateReadIndex(c *gin.Context) {
	var body readIndexBody
	if !global.BindJSON(c, &body) {
		return
	}
	row, err := h.tr.UpdateReadIndex(c.Request.Context(), c.Param("conversationId"), body.Identity, *body.Index)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, row)
}

type sentIndexBody struct {
	Identity  string    `json:"identity" binding:"required"`
	Index     *int64    `json:"index" binding:"required"`
	Timestamp time.Time `json:"timestamp" binding:"required"`
}

func (h *Handler) updateSentIndex(c *gin.Context) {
	var body sentIndexBody
	if !global.BindJSON(c, &body) {
		return
	}
	changed, err := h.tr.RecordSent(c.Request.Context(), c.Param("conversationId"), body.Identity, body.Timestamp, *body.Index)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, gin.H{"updated": changed})
}
