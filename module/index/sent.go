package index

import (
	"context"
	"errors"
	"time"

	"CareChat/logger"
	"CareChat/module/chat/model"
	"CareChat/service/convo"

	"go.uber.org/zap"
)

// BumpSentIndex (index, timestamp) 更新时才写；重放是空操作
func (t *Tracker) BumpSentIndex(ctx context.Context, identity, conversationID, conversationVendorID string, timestamp time.Time, idx int64) (bool, error) {
	return t.convs.AdvanceSentIndex(ctx, model.ParticipantSentIndex{
		ConversationID:       conversationID,
		ConversationVendorID: conversationVendorID,
		Identity:             identity,
		LastSentIndex:        idx,
		LastSentAt:           timestamp,
	})
}

// BumpFromMessages 每个作者只取其最新一条消息推进
func (t *Tracker) BumpFromMessages(ctx context.Context, conv *model.Conversation, msgs []convo.Message) error {
	latest := make(map[string]convo.Message)
	for _, m := range msgs {
		if m.Author == "" {
			continue
		}
		cur, ok := latest[m.Author]
		if !ok || m.Index > cur.Index || (m.Index == cur.Index && m.DateCreated.After(cur.DateCreated)) {
			latest[m.Author] = m
		}
	}
	var errList []error
	for author, m := range latest {
		if _, err := t.BumpSentIndex(ctx, author, conv.ID, conv.VendorID, m.DateCreated, m.Index); err != nil {
			logger.Warn("bump sent index failed", zap.String("conversation", conv.VendorID), zap.String("identity", author), zap.Error(err))
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// RecordSent 按会话 sid 推进；会话不存在返回 false
func (t *Tracker) RecordSent(ctx context.Context, conversationVendorID, identity string, timestamp time.Time, idx int64) (bool, error) {
	conv, err := t.convs.GetConversationByVendorID(ctx, conversationVendorID)
	if err != nil || conv == nil {
		return false, err
	}
	return t.BumpSentIndex(ctx, identity, conv.ID, conv.VendorID, timestamp, idx)
}

// OnMessageAdded 新消息到达：推进作者的发送水位并 rollup 会话
func (t *Tracker) OnMessageAdded(ctx context.Context, m convo.Message) error {
	conv, err := t.convs.GetConversationByVendorID(ctx, m.ConversationSid)
	if err != nil {
		return err
	}
	if conv == nil {
		logger.Debug("message for unknown conversation", zap.String("conversation", m.ConversationSid))
		return nil
	}
	if m.Author != "" {
		if _, err := t.BumpSentIndex(ctx, m.Author, conv.ID, conv.VendorID, m.DateCreated, m.Index); err != nil {
			return err
		}
	}
	return t.Rollup(ctx, conv, &m)
}
