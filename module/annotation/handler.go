package annotation

import (
	"CareChat/global"
	"CareChat/middleware"
	"CareChat/middleware/security"
	"CareChat/tools/errs"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Register 挂在 /v1 下，全部需要登录
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/conversations/:conversationId/messages/:messageId")
	auth := middleware.RouteOpt{IsAuth: true}
	middleware.POST(g, "/interactions", h.addInteraction, auth)
	middleware.POST(g, "/reactions", h.addReaction, auth)
	middleware.DELETE(g, "/reactions/:reactionId", h.removeReaction, auth)
	middleware.POST(g, "/alerts", h.createAlert, auth)
	middleware.POST(g, "/alerts/:alertId/reactions", h.reactToAlert, auth)
	middleware.POST(g, "/deletion", h.deleteMessage, auth)
}

func bindRef(c *gin.Context) (MessageRef, bool) {
	var ref MessageRef
	if err := c.ShouldBindUri(&ref); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg("bad path", "err", err.Error()))
		return ref, false
	}
	return ref, true
}

func (h *Handler) addInteraction(c *gin.Context) {
	var cmd AddInteractionCmd
	ref, ok := bindRef(c)
	if !ok {
		return
	}
	// 先填路径参数，JSON 绑定后的校验才能通过
	cmd.MessageRef = ref
	if !global.BindJSON(c, &cmd) {
		return
	}
	cmd.Actor = security.UserID(c)
	out, err := h.svc.AddInteraction(c.Request.Context(), cmd)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, out)
}

func (h *Handler) addReaction(c *gin.Context) {
	var cmd AddReactionCmd
	ref, ok := bindRef(c)
	if !ok {
		return
	}
	cmd.MessageRef = ref
	if !global.BindJSON(c, &cmd) {
		return
	}
	cmd.Actor = security.UserID(c)
	out, err := h.svc.AddReaction(c.Request.Context(), cmd)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, out)
}

func (h *Handler) removeReaction(c *gin.Context) {
	ref, ok := bindRef(c)
	if !ok {
		return
	}
	out, err := h.svc.RemoveReaction(c.Request.Context(), RemoveReactionCmd{
		MessageRef: ref,
		ReactionID: c.Param("reactionId"),
		Actor:      security.UserID(c),
	})
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, out)
}

func (h *Handler) createAlert(c *gin.Context) {
	var cmd CreateAlertCmd
	ref, ok := bindRef(c)
	if !ok {
		return
	}
	cmd.MessageRef = ref
	if !global.BindJSON(c, &cmd) {
		return
	}
	cmd.Actor = security.UserID(c)
	out, err := h.svc.CreateAlert(c.Request.Context(), cmd)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, out)
}

type alertReactionBody struct {
	Type    string `json:"type" binding:"required"`
	Comment string `json:"comment"`
}

func (h *Handler) reactToAlert(c *gin.Context) {
	var body alertReactionBody
	ref, ok := bindRef(c)
	if !ok || !global.BindJSON(c, &body) {
		return
	}
	out, err := h.svc.ReactToAlert(c.Request.Context(), ReactToAlertCmd{
		MessageRef: ref,
		AlertID:    c.Param("alertId"),
		Type:       body.Type,
		Comment:    body.Comment,
		Actor:      security.UserID(c),
	})
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, out)
}

func (h *Handler) deleteMessage(c *gin.Context) {
	var cmd DeleteMessageCmd
	ref, ok := bindRef(c)
	if !ok {
		return
	}
	cmd.MessageRef = ref
	if c.Request.ContentLength != 0 && !global.BindJSON(c, &cmd) {
		return
	}
	cmd.Actor = security.UserID(c)
	out, err := h.svc.DeleteMessage(c.Request.Context(), cmd)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, out)
}
