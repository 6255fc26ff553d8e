// Package store 未读提醒记录。一行代表一次已发出的提醒，
// 读者追上发送时的会话水位后退役。
package store

import (
	"context"
	"time"

	"CareChat/module/chat/model"
)

type Store interface {
	EnsureSchema(ctx context.Context) error
	// Create 写入新提醒；ID 为 0 时由存储分配
	Create(ctx context.Context, n *model.UnreadNotification) error
	// RetireUpTo 退役 LastReadMessageIndexAtSendTime <= upTo 的未读提醒，返回条数
	RetireUpTo(ctx context.Context, conversationVendorID, identity string, upTo int64, at time.Time) (int64, error)
	// ListOutstanding 未退役提醒，按发送时间倒序
	ListOutstanding(ctx context.Context, conversationVendorID, identity string) ([]model.UnreadNotification, error)
}

var (
	_ Store = (*PgStore)(nil)
	_ Store = (*MemStore)(nil)
)
