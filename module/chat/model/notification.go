package model

import "time"

// UnreadNotification 一次已发出的未读提醒。读者追上
// LastReadMessageIndexAtSendTime 之后即退役（IsRead=true）。
type UnreadNotification struct {
	ID                             int64      `json:"id"`
	UserID                         string     `json:"userId"`
	ConversationID                 string     `json:"conversationId"`
	ConversationVendorID           string     `json:"conversationVendorId"`
	ParticipantVendorID            string     `json:"participantVendorId"` // 读者的供应商 identity
	SentAt                         time.Time  `json:"sentAt"`
	LastReadMessageIndexAtSendTime int64      `json:"lastReadMessageIndexAtSendTime"`
	UnreadCount                    int64      `json:"unreadCount"`
	IsRead                         bool       `json:"isRead"`
	ReadAt                         *time.Time `json:"readAt,omitempty"`
}
