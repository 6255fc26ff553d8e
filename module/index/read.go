package index

import (
	"context"

	"CareChat/logger"
	"CareChat/module/chat/model"
	"CareChat/service/convo"

	"go.uber.org/zap"
)

// UpdateReadIndex 参与者读到 candidate。会话不存在、candidate 低于 -1 或明显超前时返回 (nil, nil)。
func (t *Tracker) UpdateReadIndex(ctx context.Context, conversationVendorID, identity string, candidate int64) (*model.ParticipantReadIndex, error) {
	if candidate < model.NothingRead {
		logger.Warn("negative read index, ignored",
			zap.String("conversation", conversationVendorID), zap.String("identity", identity), zap.Int64("candidate", candidate))
		return nil, nil
	}
	conv, err := t.convs.GetConversationByVendorID(ctx, conversationVendorID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		logger.Debug("read index for unknown conversation", zap.String("conversation", conversationVendorID))
		return nil, nil
	}
	tolerance := t.policy.Current().ReadIndexTolerance
	if candidate > conv.Index+tolerance {
		logger.Warn("read index ahead of conversation, ignored",
			zap.String("conversation", conversationVendorID),
			zap.String("identity", identity),
			zap.Int64("candidate", candidate),
			zap.Int64("conversationIndex", conv.Index))
		return nil, nil
	}

	row, err := t.convs.AdvanceReadIndex(ctx, conversationVendorID, identity, candidate)
	if err != nil {
		return nil, err
	}

	t.pushReadCursor(ctx, conv, identity, row.LastReadIndex)

	if n, err := t.notes.RetireUpTo(ctx, conversationVendorID, identity, candidate, t.clock.Now()); err != nil {
		logger.Warn("retire unread notifications failed", zap.String("conversation", conversationVendorID), zap.String("identity", identity), zap.Error(err))
	} else if n > 0 {
		logger.Debug("unread notifications retired", zap.String("identity", identity), zap.Int64("count", n))
	}

	if conv.Index < candidate {
		if err := t.convs.RaiseConversationIndex(ctx, conv.ID, candidate); err != nil {
			return row, err
		}
	}
	return row, nil
}

// pushReadCursor 用缓存的参与者 sid 推送；供应商说不存在就清掉缓存
func (t *Tracker) pushReadCursor(ctx context.Context, conv *model.Conversation, identity string, idx int64) {
	if idx < 0 {
		return
	}
	p, ok := conv.FindByIdentity(identity)
	if !ok || p.VendorParticipantID == "" {
		return
	}
	client, err := t.vendors.ForPractice(ctx, conv.PracticeID)
	if err != nil {
		logger.Warn("vendor session unavailable", zap.String("practice", conv.PracticeID), zap.Error(err))
		return
	}
	err = client.SetParticipantReadCursor(ctx, conv.VendorID, p.VendorParticipantID, idx)
	switch {
	case err == nil:
	case convo.IsNotFound(err):
		logger.Info("vendor participant gone, clearing cached sid",
			zap.String("conversation", conv.VendorID), zap.String("identity", identity), zap.String("sid", p.VendorParticipantID))
		if cerr := t.convs.ClearParticipantVendorID(ctx, conv.ID, identity); cerr != nil {
			logger.Warn("clear participant sid failed", zap.Error(cerr))
		}
	default:
		logger.Warn("push read cursor failed", zap.String("conversation", conv.VendorID), zap.String("identity", identity), zap.Error(err))
	}
}

// SetReadIndex 显式赋值，可向后移动，仅供对账修正
func (t *Tracker) SetReadIndex(ctx context.Context, conversationVendorID, identity string, v int64) (*model.ParticipantReadIndex, error) {
	return t.convs.SetReadIndex(ctx, conversationVendorID, identity, v)
}

// VendorReadIndex 供应商快照的已读位置；未设置时有消息记 -1，无消息记 0
func VendorReadIndex(conv *model.Conversation, vp convo.Participant) int64 {
	if vp.LastReadMessageIndex != nil {
		return *vp.LastReadMessageIndex
	}
	if conv.HasMessages {
		return model.NothingRead
	}
	return 0
}

// ReconcileParticipant 用供应商快照修正本地已读水位，必要时把本地值推回供应商
func (t *Tracker) ReconcileParticipant(ctx context.Context, conv *model.Conversation, client convo.Client, vp convo.Participant) (*model.ParticipantReadIndex, error) {
	vendorIdx := VendorReadIndex(conv, vp)
	local, err := t.convs.GetReadIndex(ctx, conv.VendorID, vp.Identity)
	if err != nil {
		return nil, err
	}
	log := logger.Named("index").With(zap.String("conversation", conv.VendorID), zap.String("identity", vp.Identity),
		zap.Int64("vendorIndex", vendorIdx), zap.Int64("conversationIndex", conv.Index))

	var result *model.ParticipantReadIndex
	switch {
	case local == nil && vendorIdx > conv.Index:
		log.Warn("vendor read index ahead of conversation, not creating local row")
		return nil, nil
	case local == nil:
		result, err = t.convs.SetReadIndex(ctx, conv.VendorID, vp.Identity, vendorIdx)
	case local.LastReadIndex > conv.Index:
		log.Info("clamping local read index", zap.Int64("local", local.LastReadIndex))
		result, err = t.convs.SetReadIndex(ctx, conv.VendorID, vp.Identity, conv.Index)
	case vendorIdx > conv.Index:
		log.Warn("vendor read index ahead of conversation, suppressed", zap.Int64("local", local.LastReadIndex))
		result = local
	case vendorIdx > local.LastReadIndex:
		result, err = t.convs.AdvanceReadIndex(ctx, conv.VendorID, vp.Identity, vendorIdx)
	default:
		result = local
	}
	if err != nil {
		return nil, err
	}

	if result.LastReadIndex >= 0 && result.LastReadIndex != vendorIdx && vp.Sid != "" {
		if err := client.SetParticipantReadCursor(ctx, conv.VendorID, vp.Sid, result.LastReadIndex); err != nil {
			return result, err
		}
	}
	return result, nil
}
