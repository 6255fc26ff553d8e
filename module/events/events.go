// Package events 分析事件出口。发布是尽力而为：失败只记日志，不影响业务写入。
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"CareChat/logger"
	"CareChat/service/natsx"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	InteractionAdded   = "ai.interaction.added"
	ResponseReacted    = "ai.response.reacted"
	AlertCreated       = "alert.created"
	AlertReacted       = "alert.reacted"
	MessageDeleted     = "message.deleted"
	ParticipantRemoved = "participant.removed"
)

// Names 所有事件名，启动时据此注册 NATS 路由
var Names = []string{InteractionAdded, ResponseReacted, AlertCreated, AlertReacted, MessageDeleted, ParticipantRemoved}

type Event struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	ConversationID string         `json:"conversationId"`
	MessageID      string         `json:"messageId,omitempty"`
	Actor          string         `json:"actor,omitempty"`
	At             time.Time      `json:"at"`
	Data           map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Subject 事件名对应的 NATS subject
func Subject(name string) string { return "carechat.events." + name }

// RegisterRoutes 每个事件名一条 Core 路由
func RegisterRoutes() error {
	for _, n := range Names {
		if err := natsx.RegisterRoute(natsx.NatsxRoute{Biz: n, Subject: Subject(n), Mode: natsx.Core}); err != nil {
			return err
		}
	}
	return nil
}

type publishFunc func(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error

// NatsPublisher 经 natsx 全局管理器发布；事件 ID 作为 Nats-Msg-Id
type NatsPublisher struct {
	publish publishFunc
	timeout time.Duration
}

func NewNatsPublisher() *NatsPublisher {
	return &NatsPublisher{publish: natsx.PublishOnce, timeout: 2 * time.Second}
}

func (p *NatsPublisher) Publish(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	data, err := json.Marshal(e)
	if err != nil {
		logger.Warn("encode event failed", zap.String("event", e.Name), zap.Error(err))
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	hdr := map[string]string{"Event-Name": e.Name}
	if err := p.publish(pctx, e.Name, data, hdr, e.ID); err != nil {
		logger.Warn("publish event failed", zap.String("event", e.Name), zap.String("conversation", e.ConversationID), zap.Error(err))
	}
}

// LogPublisher 单机模式只打日志
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) {
	logger.Info("event", zap.String("event", e.Name), zap.String("conversation", e.ConversationID),
		zap.String("message", e.MessageID), zap.Any("data", e.Data))
}

// Recorder 记录发布过的事件，测试用
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named 按事件名过滤
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
