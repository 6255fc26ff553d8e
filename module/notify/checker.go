package notify

import (
	"context"
	"errors"

	"CareChat/global/config"
	"CareChat/logger"
	"CareChat/module/chat/model"
	chatstore "CareChat/module/chat/store"
	notifystore "CareChat/module/notify/store"
	"CareChat/module/reconcile"
	"CareChat/tools/clock"
	"CareChat/tools/errs"
	"CareChat/tools/ids"

	"go.uber.org/zap"
)

type Checker struct {
	convs    chatstore.Store
	notes    notifystore.Store
	gate     *Gate
	notifier Notifier
	policy   config.PolicySource
	clock    clock.Clock
}

func NewChecker(convs chatstore.Store, notes notifystore.Store, notifier Notifier, policy config.PolicySource, c clock.Clock) *Checker {
	if c == nil {
		c = clock.Real()
	}
	return &Checker{convs: convs, notes: notes, gate: NewGate(policy, c), notifier: notifier, policy: policy, clock: c}
}

// CheckConversation 对会话内每个患者：退役已追上的提醒，判定并发出新提醒。
// 会话不存在返回空结果。
func (c *Checker) CheckConversation(ctx context.Context, conversationVendorID string) ([]model.UnreadNotification, error) {
	conv, err := c.convs.GetConversationByVendorID(ctx, conversationVendorID)
	if err != nil || conv == nil {
		return nil, err
	}
	return c.check(ctx, conv)
}

func (c *Checker) check(ctx context.Context, conv *model.Conversation) ([]model.UnreadNotification, error) {
	if conv.LastMessageAt == nil {
		return nil, nil
	}
	var (
		created  []model.UnreadNotification
		failures []error
	)
	for _, p := range conv.Patients {
		if !p.Present() {
			continue
		}
		n, err := c.checkParticipant(ctx, conv, p)
		if err != nil && errs.ErrConversationType.Is(err) {
			return created, err
		}
		if err != nil {
			// 单个患者失败不影响同会话其他患者
			logger.Warn("unread check failed",
				zap.String("conversation", conv.VendorID), zap.String("identity", p.VendorIdentity), zap.Error(err))
			failures = append(failures, err)
			continue
		}
		if n != nil {
			created = append(created, *n)
		}
	}
	return created, errors.Join(failures...)
}

func (c *Checker) checkParticipant(ctx context.Context, conv *model.Conversation, p model.Participant) (*model.UnreadNotification, error) {
	now := c.clock.Now()
	lastRead := int64(0)
	if conv.HasMessages {
		lastRead = model.NothingRead
	}
	row, err := c.convs.GetReadIndex(ctx, conv.VendorID, p.VendorIdentity)
	if err != nil {
		return nil, err
	}
	if row != nil {
		lastRead = row.LastReadIndex
	}

	if _, err := c.notes.RetireUpTo(ctx, conv.VendorID, p.VendorIdentity, lastRead, now); err != nil {
		return nil, err
	}
	outstanding, err := c.notes.ListOutstanding(ctx, conv.VendorID, p.VendorIdentity)
	if err != nil {
		return nil, err
	}
	entry := Entry{Conversation: conv, Participant: p, LastReadIndex: lastRead, CreatedAt: *conv.LastMessageAt}
	if len(outstanding) > 0 {
		entry.ModifiedAt = &outstanding[0].SentAt
	}

	d, err := c.gate.Evaluate(entry)
	if err != nil || !d.Fire {
		return nil, err
	}

	n := &model.UnreadNotification{
		ID:                             ids.Generate(),
		UserID:                         p.UserID,
		ConversationID:                 conv.ID,
		ConversationVendorID:           conv.VendorID,
		ParticipantVendorID:            p.VendorIdentity,
		SentAt:                         now,
		LastReadMessageIndexAtSendTime: conv.Index,
		UnreadCount:                    d.UnreadCount,
	}
	// 先投递再落库：投递失败下一轮会重试，不会留下没发出去的记录
	if err := c.notifier.Notify(ctx, NotificationRequest{
		NotificationID:       n.ID,
		UserID:               n.UserID,
		ConversationID:       n.ConversationID,
		ConversationVendorID: n.ConversationVendorID,
		UnreadCount:          n.UnreadCount,
		SentAt:               n.SentAt,
	}); err != nil {
		return nil, err
	}
	if err := c.notes.Create(ctx, n); err != nil {
		return nil, err
	}
	logger.Info("unread notification sent",
		zap.String("conversation", conv.VendorID), zap.String("identity", p.VendorIdentity), zap.Int64("unread", n.UnreadCount))
	return n, nil
}

// SweepRecent 检查最近活跃、可提醒的会话；单个会话失败只记日志
func (c *Checker) SweepRecent(ctx context.Context) (reconcile.SweepResult, error) {
	p := c.policy.Current()
	convs, err := c.convs.ListActiveConversationsSince(ctx, c.clock.Now().Add(-p.SweepWindow))
	if err != nil {
		return reconcile.SweepResult{}, err
	}
	notifiable := convs[:0]
	for _, conv := range convs {
		if conv.Type.Notifiable() {
			notifiable = append(notifiable, conv)
		}
	}
	failed := reconcile.ForEach(ctx, "unread check", p.SweepConcurrency, notifiable, func(ctx context.Context, conv *model.Conversation) error {
		_, err := c.check(ctx, conv)
		return err
	})
	logger.Info("unread sweep done", zap.Int("conversations", len(notifiable)), zap.Int("failed", failed))
	return reconcile.SweepResult{Total: len(notifiable), Failed: failed}, ctx.Err()
}
