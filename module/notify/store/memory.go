package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"CareChat/module/chat/model"
	"CareChat/tools/ids"
)

type MemStore struct {
	mu   sync.Mutex
	rows []*model.UnreadNotification
}

func NewMemStore() *MemStore { return &MemStore{} }

func (m *MemStore) EnsureSchema(context.Context) error { return nil }

func (m *MemStore) Create(_ context.Context, n *model.UnreadNotification) error {
	if n.ID == 0 {
		n.ID = ids.Generate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MemStore) RetireUpTo(_ context.Context, conversationVendorID, identity string, upTo int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.ConversationVendorID != conversationVendorID || r.ParticipantVendorID != identity || r.IsRead {
			continue
		}
		if r.LastReadMessageIndexAtSendTime <= upTo {
			t := at
			r.IsRead, r.ReadAt = true, &t
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListOutstanding(_ context.Context, conversationVendorID, identity string) ([]model.UnreadNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UnreadNotification
	for _, r := range m.rows {
		if r.ConversationVendorID == conversationVendorID && r.ParticipantVendorID == identity && !r.IsRead {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, nil
}

// All 全部记录（含已退役），测试断言用
func (m *MemStore) All() []model.UnreadNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.UnreadNotification, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, *r)
	}
	return out
}
