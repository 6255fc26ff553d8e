package index

import (
	"context"

	"CareChat/module/chat/model"
	"CareChat/service/convo"
)

// Rollup 用最新消息抬高会话水位；没有消息时保持原值。conv 同步更新。
func (t *Tracker) Rollup(ctx context.Context, conv *model.Conversation, mostRecent *convo.Message) error {
	if mostRecent == nil {
		return nil
	}
	if err := t.convs.Rollup(ctx, conv.ID, mostRecent.Index, mostRecent.DateCreated); err != nil {
		return err
	}
	if mostRecent.Index > conv.Index {
		conv.Index = mostRecent.Index
	}
	if conv.LastMessageAt == nil || mostRecent.DateCreated.After(*conv.LastMessageAt) {
		at := mostRecent.DateCreated
		conv.LastMessageAt = &at
	}
	conv.HasMessages = true
	return nil
}

// RollupFromVendor 倒序拉最近 N 条消息做 rollup，返回拉到的消息供后续使用
func (t *Tracker) RollupFromVendor(ctx context.Context, conv *model.Conversation, client convo.Client) ([]convo.Message, error) {
	msgs, err := client.FetchMessages(ctx, conv.VendorID, convo.OrderDesc, t.policy.Current().RecentMessageCount)
	if err != nil {
		return nil, err
	}
	var newest *convo.Message
	for i := range msgs {
		if newest == nil || msgs[i].Index > newest.Index {
			newest = &msgs[i]
		}
	}
	return msgs, t.Rollup(ctx, conv, newest)
}
