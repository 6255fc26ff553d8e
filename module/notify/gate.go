// Package notify 决定是否、以及带什么内容发出未读提醒；投递由下游消费者完成。
package notify

import (
	"time"

	"CareChat/global/config"
	"CareChat/module/chat/model"
	"CareChat/tools/clock"
	"CareChat/tools/errs"
)

// Entry 一个参与者的待判定状态
type Entry struct {
	Conversation  *model.Conversation
	Participant   model.Participant
	LastReadIndex int64
	// CreatedAt 会话最新消息时间；ModifiedAt 最近一次未退役提醒的发送时间
	CreatedAt  time.Time
	ModifiedAt *time.Time
}

type Decision struct {
	Fire        bool
	UnreadCount int64
}

type Gate struct {
	policy config.PolicySource
	clock  clock.Clock
}

func NewGate(policy config.PolicySource, c clock.Clock) *Gate {
	if c == nil {
		c = clock.Real()
	}
	return &Gate{policy: policy, clock: c}
}

// UnreadCount max(0, 会话水位 - 已读水位)
func UnreadCount(conversationIndex, lastRead int64) int64 {
	if n := conversationIndex - lastRead; n > 0 {
		return n
	}
	return 0
}

// Evaluate 距离上次提醒（或最新消息）超过阈值、且是患者时才考虑；
// 这时会话类型必须可提醒，否则是调用方的错误。
func (g *Gate) Evaluate(e Entry) (Decision, error) {
	dateToUse := e.CreatedAt
	if e.ModifiedAt != nil {
		dateToUse = *e.ModifiedAt
	}
	if g.clock.Now().Sub(dateToUse) <= g.policy.Current().UnreadThreshold {
		return Decision{}, nil
	}
	if e.Participant.Kind != model.ParticipantKindPatient {
		return Decision{}, nil
	}
	if !e.Conversation.Type.Notifiable() {
		return Decision{}, errs.ErrConversationType.WrapMsg("", "conversation", e.Conversation.VendorID, "type", e.Conversation.Type)
	}
	n := UnreadCount(e.Conversation.Index, e.LastReadIndex)
	return Decision{Fire: n > 0, UnreadCount: n}, nil
}
