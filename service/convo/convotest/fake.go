// Package convotest is an in-memory vendor conversation service for tests.
package convotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"CareChat/service/convo"
)

type CursorCall struct {
	ConversationSid string
	ParticipantSid  string
	Index           int64
}

// Fake implements convo.Client and convo.Provider. Hooks run before the
// corresponding operation and may return an error to fail it.
type Fake struct {
	mu           sync.Mutex
	messages     map[string][]*convo.Message
	participants map[string][]*convo.Participant

	OnFetchMessage func(conversationSid, messageSid string) error
	OnWrite        func(conversationSid, messageSid, attributes string) error
	OnFetchList    func(conversationSid string) error
	OnSetCursor    func(conversationSid, participantSid string, index int64) error

	Writes      int
	CursorCalls []CursorCall
	RemovedSids []string
}

func New() *Fake {
	return &Fake{
		messages:     make(map[string][]*convo.Message),
		participants: make(map[string][]*convo.Participant),
	}
}

func (f *Fake) ForPractice(context.Context, string) (convo.Client, error) { return f, nil }

// AddMessage appends a message with the next index.
func (f *Fake) AddMessage(conv, sid, author string, at time.Time) *convo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &convo.Message{
		Sid:             sid,
		ConversationSid: conv,
		Author:          author,
		Index:           int64(len(f.messages[conv])),
		DateCreated:     at,
	}
	f.messages[conv] = append(f.messages[conv], m)
	cp := *m
	return &cp
}

func (f *Fake) AddParticipant(conv string, p convo.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.participants[conv] = append(f.participants[conv], &cp)
}

// Attributes returns the stored blob of a message.
func (f *Fake) Attributes(conv, sid string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.find(conv, sid); m != nil {
		return m.Attributes
	}
	return ""
}

func (f *Fake) SetAttributes(conv, sid, attrs string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.find(conv, sid); m != nil {
		m.Attributes = attrs
	}
}

// Participant returns a copy of the vendor participant with sid.
func (f *Fake) Participant(conv, sid string) (convo.Participant, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants[conv] {
		if p.Sid == sid {
			return *p, true
		}
	}
	return convo.Participant{}, false
}

func (f *Fake) find(conv, sid string) *convo.Message {
	for _, m := range f.messages[conv] {
		if m.Sid == sid {
			return m
		}
	}
	return nil
}

func (f *Fake) FetchMessage(_ context.Context, conv, sid string) (*convo.Message, error) {
	if f.OnFetchMessage != nil {
		if err := f.OnFetchMessage(conv, sid); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(conv, sid)
	if m == nil {
		return nil, convo.NotFound("fetch message", "message")
	}
	cp := *m
	return &cp, nil
}

func (f *Fake) WriteAttributes(_ context.Context, conv, sid, attrs string) error {
	if f.OnWrite != nil {
		if err := f.OnWrite(conv, sid, attrs); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(conv, sid)
	if m == nil {
		return convo.NotFound("write attributes", "message")
	}
	m.Attributes = attrs
	f.Writes++
	return nil
}

func (f *Fake) FetchMessages(_ context.Context, conv string, order convo.Order, limit int) ([]convo.Message, error) {
	if f.OnFetchList != nil {
		if err := f.OnFetchList(conv); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]convo.Message, 0, len(f.messages[conv]))
	for _, m := range f.messages[conv] {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if order == convo.OrderDesc {
			return out[i].Index > out[j].Index
		}
		return out[i].Index < out[j].Index
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) FetchParticipants(_ context.Context, conv string) ([]convo.Participant, error) {
	if f.OnFetchList != nil {
		if err := f.OnFetchList(conv); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]convo.Participant, 0, len(f.participants[conv]))
	for _, p := range f.participants[conv] {
		out = append(out, *p)
	}
	return out, nil
}

func (f *Fake) SetParticipantReadCursor(_ context.Context, conv, sid string, index int64) error {
	if f.OnSetCursor != nil {
		if err := f.OnSetCursor(conv, sid, index); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants[conv] {
		if p.Sid == sid {
			idx := index
			p.LastReadMessageIndex = &idx
			f.CursorCalls = append(f.CursorCalls, CursorCall{conv, sid, index})
			return nil
		}
	}
	return convo.NotFound("set read cursor", "participant")
}

func (f *Fake) RemoveParticipant(_ context.Context, conv, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.participants[conv]
	for i, p := range ps {
		if p.Sid == sid {
			f.participants[conv] = append(ps[:i:i], ps[i+1:]...)
			f.RemovedSids = append(f.RemovedSids, sid)
			return nil
		}
	}
	return convo.NotFound("remove participant", "participant")
}
