// Package webhook 供应商回调入口：新消息、参与者已读变化、参与者移除。
package webhook

import (
	"context"
	"time"

	"CareChat/global"
	"CareChat/logger"
	"CareChat/module/chat/model"
	"CareChat/module/reconcile"
	"CareChat/service/convo"
	"CareChat/tools/decode"
	"CareChat/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	EventMessageAdded       = "onMessageAdded"
	EventParticipantUpdated = "onParticipantUpdated"
	EventParticipantRemoved = "onParticipantRemoved"
)

// Event 供应商以表单 POST 过来的字段
type Event struct {
	EventType            string    `json:"EventType"`
	ConversationSid      string    `json:"ConversationSid"`
	MessageSid           string    `json:"MessageSid"`
	Index                int64     `json:"Index"`
	Author               string    `json:"Author"`
	Body                 string    `json:"Body"`
	Attributes           string    `json:"Attributes"`
	DateCreated          time.Time `json:"DateCreated"`
	ParticipantSid       string    `json:"ParticipantSid"`
	Identity             string    `json:"Identity"`
	LastReadMessageIndex *int64    `json:"LastReadMessageIndex"`
}

type ReadTracker interface {
	OnMessageAdded(ctx context.Context, m convo.Message) error
	UpdateReadIndex(ctx context.Context, conversationVendorID, identity string, candidate int64) (*model.ParticipantReadIndex, error)
}

type ConversationFinder interface {
	GetConversationByVendorID(ctx context.Context, vendorID string) (*model.Conversation, error)
}

type Handler struct {
	tracker ReadTracker
	convs   ConversationFinder
	remover reconcile.ParticipantRemover
}

func NewHandler(tracker ReadTracker, convs ConversationFinder, remover reconcile.ParticipantRemover) *Handler {
	return &Handler{tracker: tracker, convs: convs, remover: remover}
}

// Register guard 为共享密钥校验
func (h *Handler) Register(r gin.IRouter, guard gin.HandlerFunc) {
	r.POST("/webhooks/vendor", guard, h.receive)
}

// ParseForm 表单 -> Event，空值字段忽略
func ParseForm(c *gin.Context) (*Event, error) {
	if err := c.Request.ParseForm(); err != nil {
		return nil, errs.ErrArgs.WrapMsg("bad form", "err", err.Error())
	}
	m := make(map[string]any, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 && v[0] != "" {
			m[k] = v[0]
		}
	}
	return decode.Decode[Event](m, decode.JSONTagOptions())
}

func (h *Handler) receive(c *gin.Context) {
	ev, err := ParseForm(c)
	if err != nil {
		global.Fail(c, err)
		return
	}
	if err := h.Dispatch(c.Request.Context(), ev); err != nil {
		global.Fail(c, err)
		return
	}
	global.Success(c, nil)
}

// Dispatch 未知事件类型直接忽略
func (h *Handler) Dispatch(ctx context.Context, ev *Event) error {
	if ev.ConversationSid == "" {
		return errs.ErrArgs.WrapMsg("missing ConversationSid")
	}
	switch ev.EventType {
	case EventMessageAdded:
		return h.tracker.OnMessageAdded(ctx, convo.Message{
			Sid:             ev.MessageSid,
			ConversationSid: ev.ConversationSid,
			Author:          ev.Author,
			Body:            ev.Body,
			Attributes:      ev.Attributes,
			Index:           ev.Index,
			DateCreated:     ev.DateCreated,
		})
	case EventParticipantUpdated:
		if ev.LastReadMessageIndex == nil || ev.Identity == "" {
			return nil
		}
		_, err := h.tracker.UpdateReadIndex(ctx, ev.ConversationSid, ev.Identity, *ev.LastReadMessageIndex)
		return err
	case EventParticipantRemoved:
		return h.participantRemoved(ctx, ev)
	default:
		logger.Debug("ignored webhook", zap.String("type", ev.EventType))
		return nil
	}
}

func (h *Handler) participantRemoved(ctx context.Context, ev *Event) error {
	conv, err := h.convs.GetConversationByVendorID(ctx, ev.ConversationSid)
	if err != nil || conv == nil {
		return err
	}
	p, ok := conv.FindByVendorParticipantID(ev.ParticipantSid)
	if !ok && ev.Identity != "" {
		p, ok = conv.FindByIdentity(ev.Identity)
	}
	if !ok || !p.Present() {
		return nil
	}
	return h.remover.RemoveParticipant(ctx, conv, p)
}
