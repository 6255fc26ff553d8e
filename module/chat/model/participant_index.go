package model

import "time"

// NothingRead 已读游标哨兵值：会话有消息但该参与者一条也没读过
const NothingRead int64 = -1

// ParticipantReadIndex 参与者在会话中的已读水位，单调不降（$max）
type ParticipantReadIndex struct {
	ConversationVendorID string    `bson:"conversation_vendor_id" json:"conversationVendorId"`
	Identity             string    `bson:"identity" json:"identity"`
	LastReadIndex        int64     `bson:"last_read_index" json:"lastReadIndex"`
	CreatedAt            time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time `bson:"updated_at" json:"updatedAt"`
}

func (r *ParticipantReadIndex) GetTableName() string {
	return "participant_read_index"
}

// ParticipantSentIndex 参与者最近一次发送的消息位置，懒创建，只向前推进
type ParticipantSentIndex struct {
	ConversationID       string    `bson:"conversation_id" json:"conversationId"`
	ConversationVendorID string    `bson:"conversation_vendor_id" json:"conversationVendorId"`
	Identity             string    `bson:"identity" json:"identity"`
	LastSentIndex        int64     `bson:"last_sent_index" json:"lastSentIndex"`
	LastSentAt           time.Time `bson:"last_sent_at" json:"lastSentAt"`
	CreatedAt            time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time `bson:"updated_at" json:"updatedAt"`
}

func (s *ParticipantSentIndex) GetTableName() string {
	return "participant_sent_index"
}

// Newer (index, at) 是否严格新于当前记录：序号更大，或序号相同但时间更晚
func (s *ParticipantSentIndex) Newer(index int64, at time.Time) bool {
	if index != s.LastSentIndex {
		return index > s.LastSentIndex
	}
	return at.After(s.LastSentAt)
}

const (
	IndexFieldConversationID       = "conversation_id"
	IndexFieldConversationVendorID = "conversation_vendor_id"
	IndexFieldIdentity             = "identity"
	IndexFieldLastReadIndex        = "last_read_index"
	IndexFieldLastSentIndex        = "last_sent_index"
	IndexFieldLastSentAt           = "last_sent_at"
	IndexFieldCreatedAt            = "created_at"
	IndexFieldUpdatedAt            = "updated_at"
)
