// Package store 会话与参与者游标的持久化。
//
// 约定：查询未命中返回 (nil, nil)；水位类字段只允许前进（$max / 条件更新），
// 唯一的显式赋值入口是 SetReadIndex，仅供对账修正使用。
package store

import (
	"context"
	"time"

	"CareChat/module/chat/model"
)

type Store interface {
	GetConversationByVendorID(ctx context.Context, vendorID string) (*model.Conversation, error)
	// ListActiveConversationsSince Active 且最后一条消息不早于 since 的会话
	ListActiveConversationsSince(ctx context.Context, since time.Time) ([]model.Conversation, error)
	UpsertConversation(ctx context.Context, c model.Conversation) error

	// RaiseConversationIndex index = max(index, v)，并置 has_messages
	RaiseConversationIndex(ctx context.Context, conversationID string, v int64) error
	// Rollup 同上，并记录最新消息时间
	Rollup(ctx context.Context, conversationID string, v int64, lastMessageAt time.Time) error

	SetParticipantVendorID(ctx context.Context, conversationID, identity, participantSid string) error
	ClearParticipantVendorID(ctx context.Context, conversationID, identity string) error
	MarkParticipantRemoved(ctx context.Context, conversationID, identity string, at time.Time) error

	GetReadIndex(ctx context.Context, conversationVendorID, identity string) (*model.ParticipantReadIndex, error)
	ListReadIndexes(ctx context.Context, conversationVendorID string) ([]model.ParticipantReadIndex, error)
	// AdvanceReadIndex 懒创建并 $max 推进，返回推进后的行
	AdvanceReadIndex(ctx context.Context, conversationVendorID, identity string, v int64) (*model.ParticipantReadIndex, error)
	SetReadIndex(ctx context.Context, conversationVendorID, identity string, v int64) (*model.ParticipantReadIndex, error)

	GetSentIndex(ctx context.Context, conversationVendorID, identity string) (*model.ParticipantSentIndex, error)
	// AdvanceSentIndex (index, at) 更新时写入，返回是否发生了变化
	AdvanceSentIndex(ctx context.Context, s model.ParticipantSentIndex) (bool, error)

	EnsureIndexes(ctx context.Context) error
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemStore)(nil)
)
