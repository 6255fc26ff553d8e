package reconcile

import (
	"CareChat/global"
	"CareChat/middleware"
	"CareChat/tools/errs"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	r *Reconciler
}

func NewHandler(r *Reconciler) *Handler { return &Handler{r: r} }

func (h *Handler) Register(r gin.IRouter) {
	middleware.POST(r, "/conversations/:conversationId/reconcile", h.reconcile, middleware.RouteOpt{IsAuth: true})
}

func (h *Handler) reconcile(c *gin.Context) {
	conv, err := h.r.ReconcileByVendorID(c.Request.Context(), c.Param("conversationId"))
	if conv == nil && err == nil {
		global.Fail(c, errs.ErrRecordNotFound.WrapMsg("conversation", "id", c.Param("conversationId")))
		return
	}
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, gin.H{"conversationId": conv.VendorID, "index": conv.Index, "hasMessages": conv.HasMessages})
}
