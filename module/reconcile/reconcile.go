// Package reconcile 定期修复本地与供应商之间的漂移：孤儿参与者、
// 缺失的参与者 sid、越界的已读水位。所有步骤可重复执行。
package reconcile

import (
	"context"
	"errors"
	"time"

	"CareChat/global/config"
	"CareChat/logger"
	"CareChat/module/chat/model"
	chatstore "CareChat/module/chat/store"
	"CareChat/module/events"
	"CareChat/module/index"
	"CareChat/service/convo"
	"CareChat/tools/clock"

	"go.uber.org/zap"
)

// ParticipantRemover 本地移除参与者（会话管理的一部分，对账只负责触发）
type ParticipantRemover interface {
	RemoveParticipant(ctx context.Context, conv *model.Conversation, p model.Participant) error
}

// LocalRemover 标记本地参与者已移除并发出 participant.removed
type LocalRemover struct {
	Convs  chatstore.Store
	Events events.Publisher
	Clock  clock.Clock
}

func (r LocalRemover) RemoveParticipant(ctx context.Context, conv *model.Conversation, p model.Participant) error {
	now := r.Clock.Now()
	if err := r.Convs.MarkParticipantRemoved(ctx, conv.ID, p.VendorIdentity, now); err != nil {
		return err
	}
	r.Events.Publish(ctx, events.Event{
		Name:           events.ParticipantRemoved,
		ConversationID: conv.VendorID,
		At:             now,
		Data:           map[string]any{"identity": p.VendorIdentity, "userId": p.UserID, "kind": string(p.Kind)},
	})
	return nil
}

type Reconciler struct {
	convs   chatstore.Store
	vendors convo.Provider
	tracker *index.Tracker
	remover ParticipantRemover
	policy  config.PolicySource
	clock   clock.Clock
}

func New(convs chatstore.Store, vendors convo.Provider, tracker *index.Tracker, remover ParticipantRemover, policy config.PolicySource, c clock.Clock) *Reconciler {
	if c == nil {
		c = clock.Real()
	}
	return &Reconciler{convs: convs, vendors: vendors, tracker: tracker, remover: remover, policy: policy, clock: c}
}

// ReconcileByVendorID 按会话 sid 对账；会话不存在时什么也不做
func (r *Reconciler) ReconcileByVendorID(ctx context.Context, conversationVendorID string) (*model.Conversation, error) {
	conv, err := r.convs.GetConversationByVendorID(ctx, conversationVendorID)
	if err != nil || conv == nil {
		return nil, err
	}
	if err := r.ReconcileConversation(ctx, conv); err != nil {
		return conv, err
	}
	return conv, nil
}

// ReconcileConversation 单个参与者失败只记录，继续处理其余参与者；
// 返回值汇总了这些失败。拉取消息或参与者失败则直接返回。
func (r *Reconciler) ReconcileConversation(ctx context.Context, conv *model.Conversation) error {
	log := logger.Named("reconcile").With(zap.String("conversation", conv.VendorID))
	client, err := r.vendors.ForPractice(ctx, conv.PracticeID)
	if err != nil {
		return err
	}

	msgs, err := r.tracker.RollupFromVendor(ctx, conv, client)
	if err != nil {
		return err
	}
	var failures []error
	if err := r.tracker.BumpFromMessages(ctx, conv, msgs); err != nil {
		failures = append(failures, err)
	}

	vps, err := client.FetchParticipants(ctx, conv.VendorID)
	if err != nil {
		return err
	}
	atVendor := make(map[string]convo.Participant, len(vps))
	for _, vp := range vps {
		atVendor[vp.Identity] = vp
	}

	// 本地仍在、供应商已不在的员工
	for _, emp := range conv.Employees {
		if !emp.Present() {
			continue
		}
		if _, ok := atVendor[emp.VendorIdentity]; ok {
			continue
		}
		log.Info("employee missing at vendor, removing locally", zap.String("identity", emp.VendorIdentity))
		if err := r.remover.RemoveParticipant(ctx, conv, emp); err != nil {
			log.Warn("remove orphan employee failed", zap.String("identity", emp.VendorIdentity), zap.Error(err))
			failures = append(failures, err)
		}
	}

	cutover := r.policy.Current().ParticipantCutover
	for _, vp := range vps {
		local, known := conv.FindByIdentity(vp.Identity)
		if !known && !cutover.IsZero() && vp.DateCreated.Before(cutover) {
			log.Info("unknown vendor participant before cutover, removing at vendor", zap.String("identity", vp.Identity), zap.String("sid", vp.Sid))
			if err := client.RemoveParticipant(ctx, conv.VendorID, vp.Sid); err != nil && !convo.IsNotFound(err) {
				log.Warn("remove vendor participant failed", zap.String("sid", vp.Sid), zap.Error(err))
				failures = append(failures, err)
			}
			continue
		}

		if _, err := r.tracker.ReconcileParticipant(ctx, conv, client, vp); err != nil {
			log.Warn("reconcile participant failed", zap.String("identity", vp.Identity), zap.Error(err))
			failures = append(failures, err)
		}
		if known && vp.Sid != "" && local.VendorParticipantID != vp.Sid {
			if err := r.convs.SetParticipantVendorID(ctx, conv.ID, vp.Identity, vp.Sid); err != nil {
				log.Warn("backfill participant sid failed", zap.String("identity", vp.Identity), zap.Error(err))
				failures = append(failures, err)
			}
		}
	}

	// 供应商已不存在的身份：已读水位不能超过会话水位
	rows, err := r.convs.ListReadIndexes(ctx, conv.VendorID)
	if err != nil {
		return errors.Join(append(failures, err)...)
	}
	for _, row := range rows {
		if _, ok := atVendor[row.Identity]; ok || row.LastReadIndex <= conv.Index {
			continue
		}
		if _, err := r.tracker.SetReadIndex(ctx, conv.VendorID, row.Identity, conv.Index); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

// SweepResult 一轮扫描的统计
type SweepResult struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

// SweepRecent 对最近活跃的会话逐个对账，单个会话失败不影响其他会话
func (r *Reconciler) SweepRecent(ctx context.Context) (SweepResult, error) {
	p := r.policy.Current()
	since := r.clock.Now().Add(-p.SweepWindow)
	convs, err := r.convs.ListActiveConversationsSince(ctx, since)
	if err != nil {
		return SweepResult{}, err
	}
	start := r.clock.Now()
	failed := ForEach(ctx, "reconcile", p.SweepConcurrency, convs, r.ReconcileConversation)
	logger.Info("reconcile sweep done",
		zap.Int("conversations", len(convs)),
		zap.Int("failed", failed),
		zap.Duration("took", r.clock.Now().Sub(start)),
		zap.Time("since", since.Truncate(time.Second)))
	return SweepResult{Total: len(convs), Failed: failed}, ctx.Err()
}
