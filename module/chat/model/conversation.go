package model

import "time"

type ConversationType string

const (
	ConversationTypeHealthCare ConversationType = "HealthCare"
	ConversationTypeSupport    ConversationType = "Support"
	ConversationTypePlayground ConversationType = "Playground"
)

// Notifiable 只有医护与客服会话会产生未读提醒
func (t ConversationType) Notifiable() bool {
	return t == ConversationTypeHealthCare || t == ConversationTypeSupport
}

type ConversationState string

const (
	ConversationStateActive ConversationState = "Active"
	ConversationStateClosed ConversationState = "Closed"
)

type ParticipantKind string

const (
	ParticipantKindEmployee ParticipantKind = "Employee"
	ParticipantKindPatient  ParticipantKind = "Patient"
)

// Conversation 本地会话。消息顺序归供应商所有，这里只保存业务水位：
// Index 只增不减（$max 写入），HasMessages 一旦为 true 不再回退。
type Conversation struct {
	ID            string            `bson:"_id" json:"id"`
	VendorID      string            `bson:"vendor_id" json:"vendorId"`     // 供应商会话 sid
	PracticeID    string            `bson:"practice_id" json:"practiceId"` // 决定使用哪套供应商凭据
	Type          ConversationType  `bson:"type" json:"type"`
	State         ConversationState `bson:"state" json:"state"`
	Index         int64             `bson:"index" json:"index"` // 已知最大消息序号
	HasMessages   bool              `bson:"has_messages" json:"hasMessages"`
	LastMessageAt *time.Time        `bson:"last_message_at,omitempty" json:"lastMessageAt,omitempty"`

	Employees []Participant `bson:"employees" json:"employees"`
	Patients  []Participant `bson:"patients" json:"patients"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

type Participant struct {
	UserID              string          `bson:"user_id" json:"userId"`
	Kind                ParticipantKind `bson:"kind" json:"kind"`
	VendorIdentity      string          `bson:"vendor_identity" json:"vendorIdentity"`                // 供应商侧 identity
	VendorParticipantID string          `bson:"vendor_participant_id" json:"vendorParticipantId"`     // 缓存的供应商 participant sid，可能为空
	IsActive            bool            `bson:"is_active" json:"isActive"`
	IsDeleted           bool            `bson:"is_deleted" json:"isDeleted"`
	IsSigned            bool            `bson:"is_signed" json:"isSigned"`
	RemovedAt           *time.Time      `bson:"removed_at,omitempty" json:"removedAt,omitempty"`
}

func (c *Conversation) GetTableName() string {
	return "conversation"
}

// AllParticipants 员工在前，患者在后
func (c *Conversation) AllParticipants() []Participant {
	out := make([]Participant, 0, len(c.Employees)+len(c.Patients))
	out = append(out, c.Employees...)
	return append(out, c.Patients...)
}

// FindByIdentity 按供应商 identity 查找本地参与者
func (c *Conversation) FindByIdentity(identity string) (Participant, bool) {
	for _, p := range c.AllParticipants() {
		if p.VendorIdentity == identity {
			return p, true
		}
	}
	return Participant{}, false
}

func (c *Conversation) FindByVendorParticipantID(sid string) (Participant, bool) {
	if sid == "" {
		return Participant{}, false
	}
	for _, p := range c.AllParticipants() {
		if p.VendorParticipantID == sid {
			return p, true
		}
	}
	return Participant{}, false
}

// Present 仍在会话中的参与者（未删除且未移除）
func (p Participant) Present() bool {
	return !p.IsDeleted && p.RemovedAt == nil
}

const (
	ConversationFieldID            = "_id"
	ConversationFieldVendorID      = "vendor_id"
	ConversationFieldPracticeID    = "practice_id"
	ConversationFieldType          = "type"
	ConversationFieldState         = "state"
	ConversationFieldIndex         = "index"
	ConversationFieldHasMessages   = "has_messages"
	ConversationFieldLastMessageAt = "last_message_at"
	ConversationFieldEmployees     = "employees"
	ConversationFieldPatients      = "patients"
	ConversationFieldCreatedAt     = "created_at"
	ConversationFieldUpdatedAt     = "updated_at"

	ParticipantFieldUserID              = "user_id"
	ParticipantFieldVendorIdentity      = "vendor_identity"
	ParticipantFieldVendorParticipantID = "vendor_participant_id"
	ParticipantFieldIsActive            = "is_active"
	ParticipantFieldRemovedAt           = "removed_at"
)
