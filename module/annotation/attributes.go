package annotation

import (
	"encoding/json"
	"time"
)

const InteractionTypeRecommendation = "Recommendation"

type Interaction struct {
	ID          string         `json:"id"`
	ReferenceID string         `json:"referenceId,omitempty"`
	Type        string         `json:"type"`
	Detail      map[string]any `json:"detail,omitempty"`
	CreatedBy   string         `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type Reaction struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// AlertReaction 对告警的一次处理记录
type AlertReaction struct {
	Type      string    `json:"type"`
	Comment   string    `json:"comment,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type Alert struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	CreatedAt       time.Time       `json:"createdAt"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	Audience        []string        `json:"audience"`
	Data            map[string]any  `json:"data,omitempty"`
	ReactionDetails *AlertReaction  `json:"reactionDetails,omitempty"`
	Reactions       []AlertReaction `json:"reactions,omitempty"`
}

type DeletionDetails struct {
	Reason    string    `json:"reason"`
	DeletedBy string    `json:"deletedBy"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Attributes 消息上的注解 blob。其他客户端写入的未知顶层字段原样保留。
type Attributes struct {
	Interactions    []Interaction    `json:"interactions"`
	Reactions       []Reaction       `json:"reactions"`
	Alerts          []Alert          `json:"alerts"`
	IsDeleted       bool             `json:"isDeleted"`
	DeletionDetails *DeletionDetails `json:"deletionDetails,omitempty"`

	extra map[string]json.RawMessage
}

var knownKeys = []string{"interactions", "reactions", "alerts", "isDeleted", "deletionDetails"}

func (a *Attributes) UnmarshalJSON(b []byte) error {
	type plain Attributes
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range knownKeys {
		delete(all, k)
	}
	*a = Attributes(p)
	if len(all) > 0 {
		a.extra = all
	}
	return nil
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	type plain Attributes
	b, err := json.Marshal(plain(a))
	if err != nil || len(a.extra) == 0 {
		return b, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range a.extra {
		if _, known := m[k]; !known {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// Decode 空串或格式错误得到空默认值，不报错。ok=false 表示原内容不可解析。
func Decode(raw string) (a *Attributes, ok bool) {
	a = &Attributes{}
	if raw == "" {
		return a, true
	}
	if err := json.Unmarshal([]byte(raw), a); err != nil {
		return &Attributes{}, false
	}
	return a, true
}

func (a *Attributes) Encode() (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *Attributes) findAlert(id string) (int, bool) {
	for i := range a.Alerts {
		if a.Alerts[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// latestRecommendation 最近一条 Recommendation 交互
func (a *Attributes) latestRecommendation() *Interaction {
	var out *Interaction
	for i := range a.Interactions {
		it := &a.Interactions[i]
		if it.Type != InteractionTypeRecommendation {
			continue
		}
		if out == nil || !it.CreatedAt.Before(out.CreatedAt) {
			out = it
		}
	}
	return out
}
