package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"CareChat/module/chat/model"
)

// MemStore 进程内实现，单机运行和测试用。语义与 MongoStore 保持一致。
type MemStore struct {
	mu    sync.Mutex
	convs map[string]*model.Conversation // id -> conversation
	reads map[cursorKey]*model.ParticipantReadIndex
	sents map[cursorKey]*model.ParticipantSentIndex
	now   func() time.Time
}

type cursorKey struct{ conv, identity string }

func NewMemStore(now func() time.Time) *MemStore {
	if now == nil {
		now = time.Now
	}
	return &MemStore{
		convs: make(map[string]*model.Conversation),
		reads: make(map[cursorKey]*model.ParticipantReadIndex),
		sents: make(map[cursorKey]*model.ParticipantSentIndex),
		now:   now,
	}
}

func (m *MemStore) EnsureIndexes(context.Context) error { return nil }

func cloneConversation(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Employees = append([]model.Participant(nil), c.Employees...)
	cp.Patients = append([]model.Participant(nil), c.Patients...)
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		cp.LastMessageAt = &t
	}
	return &cp
}

func (m *MemStore) GetConversationByVendorID(_ context.Context, vendorID string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.VendorID == vendorID {
			return cloneConversation(c), nil
		}
	}
	return nil, nil
}

func (m *MemStore) ListActiveConversationsSince(_ context.Context, since time.Time) ([]model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Conversation
	for _, c := range m.convs {
		if c.State != model.ConversationStateActive || c.LastMessageAt == nil || c.LastMessageAt.Before(since) {
			continue
		}
		out = append(out, *cloneConversation(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(*out[j].LastMessageAt) })
	return out, nil
}

func (m *MemStore) UpsertConversation(_ context.Context, c model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.convs[c.ID] = cloneConversation(&c)
	return nil
}

func (m *MemStore) RaiseConversationIndex(_ context.Context, conversationID string, v int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[conversationID]; ok {
		if v > c.Index {
			c.Index = v
		}
		c.HasMessages = true
		c.UpdatedAt = m.now()
	}
	return nil
}

func (m *MemStore) Rollup(_ context.Context, conversationID string, v int64, lastMessageAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.convs[conversationID]; ok {
		if v > c.Index {
			c.Index = v
		}
		if c.LastMessageAt == nil || lastMessageAt.After(*c.LastMessageAt) {
			t := lastMessageAt
			c.LastMessageAt = &t
		}
		c.HasMessages = true
		c.UpdatedAt = m.now()
	}
	return nil
}

func (m *MemStore) updateParticipant(conversationID, identity string, fn func(p *model.Participant)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[conversationID]
	if !ok {
		return
	}
	for _, list := range [][]model.Participant{c.Employees, c.Patients} {
		for i := range list {
			if list[i].VendorIdentity == identity {
				fn(&list[i])
			}
		}
	}
	c.UpdatedAt = m.now()
}

func (m *MemStore) SetParticipantVendorID(_ context.Context, conversationID, identity, participantSid string) error {
	m.updateParticipant(conversationID, identity, func(p *model.Participant) { p.VendorParticipantID = participantSid })
	return nil
}

func (m *MemStore) ClearParticipantVendorID(_ context.Context, conversationID, identity string) error {
	m.updateParticipant(conversationID, identity, func(p *model.Participant) { p.VendorParticipantID = "" })
	return nil
}

func (m *MemStore) MarkParticipantRemoved(_ context.Context, conversationID, identity string, at time.Time) error {
	m.updateParticipant(conversationID, identity, func(p *model.Participant) {
		t := at
		p.IsActive = false
		p.RemovedAt = &t
	})
	return nil
}

func (m *MemStore) GetReadIndex(_ context.Context, conversationVendorID, identity string) (*model.ParticipantReadIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reads[cursorKey{conversationVendorID, identity}]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *MemStore) ListReadIndexes(_ context.Context, conversationVendorID string) ([]model.ParticipantReadIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ParticipantReadIndex
	for k, r := range m.reads {
		if k.conv == conversationVendorID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}

func (m *MemStore) writeRead(conversationVendorID, identity string, v int64, force bool) *model.ParticipantReadIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := cursorKey{conversationVendorID, identity}
	r, ok := m.reads[k]
	if !ok {
		r = &model.ParticipantReadIndex{ConversationVendorID: conversationVendorID, Identity: identity, LastReadIndex: v, CreatedAt: now}
		m.reads[k] = r
	} else if force || v > r.LastReadIndex {
		r.LastReadIndex = v
	}
	r.UpdatedAt = now
	cp := *r
	return &cp
}

func (m *MemStore) AdvanceReadIndex(_ context.Context, conversationVendorID, identity string, v int64) (*model.ParticipantReadIndex, error) {
	return m.writeRead(conversationVendorID, identity, v, false), nil
}

func (m *MemStore) SetReadIndex(_ context.Context, conversationVendorID, identity string, v int64) (*model.ParticipantReadIndex, error) {
	return m.writeRead(conversationVendorID, identity, v, true), nil
}

func (m *MemStore) GetSentIndex(_ context.Context, conversationVendorID, identity string) (*model.ParticipantSentIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.sents[cursorKey{conversationVendorID, identity}]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *MemStore) AdvanceSentIndex(_ context.Context, in model.ParticipantSentIndex) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := cursorKey{in.ConversationVendorID, in.Identity}
	r, ok := m.sents[k]
	if !ok {
		in.CreatedAt, in.UpdatedAt = now, now
		m.sents[k] = &in
		return true, nil
	}
	if !r.Newer(in.LastSentIndex, in.LastSentAt) {
		return false, nil
	}
	r.LastSentIndex, r.LastSentAt, r.UpdatedAt = in.LastSentIndex, in.LastSentAt, now
	return true, nil
}
