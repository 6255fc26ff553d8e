package annotation

import (
	"context"
	"fmt"
	"time"

	"CareChat/global/config"
	"CareChat/logger"
	"CareChat/module/chat/model"
	"CareChat/module/events"
	"CareChat/service/convo"
	"CareChat/tools/clock"
	"CareChat/tools/errs"
	"CareChat/tools/retry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationFinder 由会话 sid 找到所属诊所
type ConversationFinder interface {
	GetConversationByVendorID(ctx context.Context, vendorID string) (*model.Conversation, error)
}

type MessageRef struct {
	ConversationID string `json:"-" uri:"conversationId" binding:"required"` // 供应商会话 sid
	MessageID      string `json:"-" uri:"messageId" binding:"required"`
}

type AddInteractionCmd struct {
	MessageRef
	ReferenceID string         `json:"referenceId"`
	Type        string         `json:"type" binding:"required"`
	Detail      map[string]any `json:"detail"`
	Actor       string         `json:"-"`
}

type AddReactionCmd struct {
	MessageRef
	Type  string `json:"type" binding:"required"`
	Actor string `json:"-"`
}

type RemoveReactionCmd struct {
	MessageRef
	ReactionID string `json:"reactionId" binding:"required"`
	Actor      string `json:"-"`
}

type CreateAlertCmd struct {
	MessageRef
	Type  string         `json:"type" binding:"required"`
	Data  map[string]any `json:"data"`
	Actor string         `json:"-"`
}

type ReactToAlertCmd struct {
	MessageRef
	AlertID string `json:"alertId" binding:"required"`
	Type    string `json:"type" binding:"required"`
	Comment string `json:"comment"`
	Actor   string `json:"-"`
}

type DeleteMessageCmd struct {
	MessageRef
	Reason string `json:"reason"`
	Actor  string `json:"-"`
}

// Service 消息注解的读改写。同一条消息的修改经 Guard 串行化，
// 抢锁失败按策略的延迟序列整体重试。
type Service struct {
	convs   ConversationFinder
	vendors convo.Provider
	guard   Guard
	policy  config.PolicySource
	clock   clock.Clock
	events  events.Publisher
}

func NewService(convs ConversationFinder, vendors convo.Provider, locker Locker, policy config.PolicySource, c clock.Clock, pub events.Publisher) *Service {
	if c == nil {
		c = clock.Real()
	}
	if pub == nil {
		pub = events.LogPublisher{}
	}
	guard := Guard{Locker: locker, Hold: policy.Current().LockHold()}
	return &Service{convs: convs, vendors: vendors, guard: guard, policy: policy, clock: c, events: pub}
}

// mutateFunc 返回 changed=false 时不回写
type mutateFunc func(a *Attributes, now time.Time) (changed bool, err error)

func (s *Service) mutate(ctx context.Context, op string, ref MessageRef, fn mutateFunc) (*Attributes, error) {
	client, err := s.client(ctx, ref.ConversationID)
	if err != nil {
		return nil, err
	}
	msg, err := fetch(ctx, client, ref)
	if err != nil {
		return nil, err
	}

	// 锁内不走传输重试，单次往返由 Guard 的时限兜住
	direct := convo.Direct(client)
	var out *Attributes
	r := retry.New("annotation."+op, errs.ErrLocked.Is, s.policy.Current().LockRetryDelays...).WithClock(s.clock)
	err = r.Do(ctx, func(ctx context.Context) error {
		return s.guard.WithLock(ctx, msg.Sid, func(ctx context.Context) error {
			cur, err := fetch(ctx, direct, ref)
			if err != nil {
				return err
			}
			a, ok := Decode(cur.Attributes)
			if !ok {
				logger.Warn("malformed message attributes, starting from empty", zap.String("conversation", ref.ConversationID), zap.String("message", ref.MessageID))
			}
			changed, err := fn(a, s.clock.Now())
			if err != nil {
				return err
			}
			out = a
			if !changed {
				return nil
			}
			raw, err := a.Encode()
			if err != nil {
				return errs.WrapMsg(err, "encode attributes")
			}
			return direct.WriteAttributes(ctx, ref.ConversationID, ref.MessageID, raw)
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) client(ctx context.Context, conversationVendorID string) (convo.Client, error) {
	conv, err := s.convs.GetConversationByVendorID(ctx, conversationVendorID)
	if err != nil {
		return nil, err
	}
	practice := ""
	if conv != nil {
		practice = conv.PracticeID
	}
	return s.vendors.ForPractice(ctx, practice)
}

func fetch(ctx context.Context, c convo.Client, ref MessageRef) (*convo.Message, error) {
	m, err := c.FetchMessage(ctx, ref.ConversationID, ref.MessageID)
	if convo.IsNotFound(err) {
		return nil, errs.ErrMessageNotFound.WrapMsg("", "conversation", ref.ConversationID, "message", ref.MessageID)
	}
	if err != nil {
		return nil, errs.ErrVendorUnavailable.WrapMsg("fetch message", "err", err.Error())
	}
	return m, nil
}

func (s *Service) emit(ctx context.Context, name string, ref MessageRef, actor string, at time.Time, data map[string]any) {
	s.events.Publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Name:           name,
		ConversationID: ref.ConversationID,
		MessageID:      ref.MessageID,
		Actor:          actor,
		At:             at,
		Data:           data,
	})
}

func (s *Service) AddInteraction(ctx context.Context, cmd AddInteractionCmd) (*Interaction, error) {
	var added Interaction
	_, err := s.mutate(ctx, "add_interaction", cmd.MessageRef, func(a *Attributes, now time.Time) (bool, error) {
		added = Interaction{
			ID:          uuid.NewString(),
			ReferenceID: cmd.ReferenceID,
			Type:        cmd.Type,
			Detail:      cmd.Detail,
			CreatedBy:   cmd.Actor,
			CreatedAt:   now,
		}
		a.Interactions = append(a.Interactions, added)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.InteractionAdded, cmd.MessageRef, cmd.Actor, added.CreatedAt, map[string]any{
		"interactionId": added.ID,
		"type":          added.Type,
		"referenceId":   added.ReferenceID,
	})
	return &added, nil
}

func (s *Service) AddReaction(ctx context.Context, cmd AddReactionCmd) (*Reaction, error) {
	var (
		added Reaction
		data  map[string]any
	)
	_, err := s.mutate(ctx, "add_reaction", cmd.MessageRef, func(a *Attributes, now time.Time) (bool, error) {
		added = Reaction{ID: uuid.NewString(), Type: cmd.Type, CreatedBy: cmd.Actor, CreatedAt: now}
		a.Reactions = append(a.Reactions, added)
		data = map[string]any{"reactionId": added.ID, "type": added.Type}
		if rec := a.latestRecommendation(); rec != nil {
			data["interactionId"] = rec.ID
			data["action"] = added.Type
			data["query"] = detailString(rec.Detail, "query")
			data["response"] = detailString(rec.Detail, "response")
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.ResponseReacted, cmd.MessageRef, cmd.Actor, added.CreatedAt, data)
	return &added, nil
}

func detailString(d map[string]any, k string) string {
	v, ok := d[k]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// RemoveReaction 不存在时不报错
func (s *Service) RemoveReaction(ctx context.Context, cmd RemoveReactionCmd) (*Attributes, error) {
	return s.mutate(ctx, "remove_reaction", cmd.MessageRef, func(a *Attributes, _ time.Time) (bool, error) {
		for i := range a.Reactions {
			if a.Reactions[i].ID == cmd.ReactionID {
				a.Reactions = append(a.Reactions[:i], a.Reactions[i+1:]...)
				return true, nil
			}
		}
		return false, nil
	})
}

func (s *Service) CreateAlert(ctx context.Context, cmd CreateAlertCmd) (*Alert, error) {
	p := s.policy.Current()
	minutes, ok := p.AlertExpirationMinutes[cmd.Type]
	if !ok {
		return nil, errs.ErrArgs.WrapMsg("unknown alert type", "type", cmd.Type)
	}
	audience := append([]string{}, p.AlertAudience[cmd.Type]...)

	var added Alert
	_, err := s.mutate(ctx, "create_alert", cmd.MessageRef, func(a *Attributes, now time.Time) (bool, error) {
		added = Alert{
			ID:        uuid.NewString(),
			Type:      cmd.Type,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Duration(minutes) * time.Minute),
			Audience:  audience,
			Data:      cmd.Data,
		}
		a.Alerts = append(a.Alerts, added)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.AlertCreated, cmd.MessageRef, cmd.Actor, added.CreatedAt, map[string]any{
		"alertId":   added.ID,
		"type":      added.Type,
		"expiresAt": added.ExpiresAt,
		"audience":  added.Audience,
	})
	return &added, nil
}

// ReactToAlert 告警或消息不存在都返回 ErrAlertNotFound
func (s *Service) ReactToAlert(ctx context.Context, cmd ReactToAlertCmd) (*Alert, error) {
	var updated Alert
	_, err := s.mutate(ctx, "react_to_alert", cmd.MessageRef, func(a *Attributes, now time.Time) (bool, error) {
		i, ok := a.findAlert(cmd.AlertID)
		if !ok {
			return false, errs.ErrAlertNotFound.WrapMsg("", "alert", cmd.AlertID)
		}
		updated = a.Alerts[i]
		reaction := AlertReaction{Type: cmd.Type, Comment: cmd.Comment, CreatedBy: cmd.Actor, CreatedAt: now}
		updated.Reactions = append(append([]AlertReaction{}, updated.Reactions...), reaction)
		updated.ReactionDetails = &reaction

		a.Alerts = append(a.Alerts[:i], a.Alerts[i+1:]...)
		a.Alerts = append(a.Alerts, updated)
		return true, nil
	})
	if errs.ErrMessageNotFound.Is(err) {
		return nil, errs.ErrAlertNotFound.WrapMsg("message missing", "message", cmd.MessageID)
	}
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.AlertReacted, cmd.MessageRef, cmd.Actor, updated.ReactionDetails.CreatedAt, map[string]any{
		"alertId":  updated.ID,
		"type":     updated.Type,
		"reaction": cmd.Type,
	})
	return &updated, nil
}

// DeleteMessage 已删除时不覆盖原删除信息
func (s *Service) DeleteMessage(ctx context.Context, cmd DeleteMessageCmd) (*Attributes, error) {
	deleted := false
	out, err := s.mutate(ctx, "delete_message", cmd.MessageRef, func(a *Attributes, now time.Time) (bool, error) {
		deleted = false
		if a.IsDeleted {
			return false, nil
		}
		a.IsDeleted = true
		a.DeletionDetails = &DeletionDetails{Reason: cmd.Reason, DeletedBy: cmd.Actor, DeletedAt: now}
		deleted = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if deleted {
		s.emit(ctx, events.MessageDeleted, cmd.MessageRef, cmd.Actor, out.DeletionDetails.DeletedAt, map[string]any{"reason": cmd.Reason})
	}
	return out, nil
}
