package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"CareChat/global/config"
	"CareChat/module/chat/model"
	chatstore "CareChat/module/chat/store"
	notifystore "CareChat/module/notify/store"
	"CareChat/tools/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	reqs []NotificationRequest
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, req NotificationRequest) error {
	if r.err != nil {
		return r.err
	}
	r.reqs = append(r.reqs, req)
	return nil
}

type checkerFixture struct {
	c        *Checker
	convs    *chatstore.MemStore
	notes    *notifystore.MemStore
	notifier *recordingNotifier
	clock    *clock.FakeClock
}

func newChecker(t *testing.T, typ model.ConversationType) *checkerFixture {
	t.Helper()
	fc := clock.Fake(t0)
	convs := chatstore.NewMemStore(fc.Now)
	notes := notifystore.NewMemStore()
	last := t0.Add(-time.Hour)
	require.NoError(t, convs.UpsertConversation(context.Background(), model.Conversation{
		ID: "c1", VendorID: "CH1", Type: typ, State: model.ConversationStateActive,
		Index: 5, HasMessages: true, LastMessageAt: &last,
		Employees: []model.Participant{{UserID: "u-doc", Kind: model.ParticipantKindEmployee, VendorIdentity: "doc"}},
		Patients:  []model.Participant{{UserID: "u-pat", Kind: model.ParticipantKindPatient, VendorIdentity: "pat"}},
	}))
	n := &recordingNotifier{}
	return &checkerFixture{
		c:        NewChecker(convs, notes, n, config.StaticPolicy(config.DefaultPolicy()), fc),
		convs:    convs,
		notes:    notes,
		notifier: n,
		clock:    fc,
	}
}

func TestCheckConversationSendsOncePerThreshold(t *testing.T) {
	f := newChecker(t, model.ConversationTypeHealthCare)
	ctx := context.Background()
	_, err := f.convs.SetReadIndex(ctx, "CH1", "pat", 2)
	require.NoError(t, err)

	created, err := f.c.CheckConversation(ctx, "CH1")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.EqualValues(t, 3, created[0].UnreadCount)
	assert.EqualValues(t, 5, created[0].LastReadMessageIndexAtSendTime)
	assert.Equal(t, "u-pat", created[0].UserID)
	require.Len(t, f.notifier.reqs, 1)
	assert.Equal(t, created[0].ID, f.notifier.reqs[0].NotificationID)

	// 上次提醒还没超过阈值
	f.clock.Advance(10 * time.Minute)
	created, err = f.c.CheckConversation(ctx, "CH1")
	require.NoError(t, err)
	assert.Empty(t, created)

	f.clock.Advance(25 * time.Minute)
	created, err = f.c.CheckConversation(ctx, "CH1")
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestCheckConversationRetiresCaughtUp(t *testing.T) {
	f := newChecker(t, model.ConversationTypeSupport)
	ctx := context.Background()
	require.NoError(t, f.notes.Create(ctx, &model.UnreadNotification{
		ConversationVendorID: "CH1", ParticipantVendorID: "pat", SentAt: t0.Add(-5 * time.Minute), LastReadMessageIndexAtSendTime: 5,
	}))
	_, err := f.convs.SetReadIndex(ctx, "CH1", "pat", 5)
	require.NoError(t, err)

	created, err := f.c.CheckConversation(ctx, "CH1")
	require.NoError(t, err)
	assert.Empty(t, created, "caught up, nothing unread")
	left, _ := f.notes.ListOutstanding(ctx, "CH1", "pat")
	assert.Empty(t, left)
}

func TestCheckConversationPublishFailureStoresNothing(t *testing.T) {
	f := newChecker(t, model.ConversationTypeHealthCare)
	f.notifier.err = errors.New("kafka down")

	_, err := f.c.CheckConversation(context.Background(), "CH1")
	require.Error(t, err)
	assert.Empty(t, f.notes.All())
}

func TestCheckConversationPlaygroundIsHardError(t *testing.T) {
	f := newChecker(t, model.ConversationTypePlayground)
	_, err := f.c.CheckConversation(context.Background(), "CH1")
	assert.Error(t, err)

	res, err := f.c.SweepRecent(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Total, "sweep skips non-notifiable conversations")
}

func TestCheckConversationUnknown(t *testing.T) {
	f := newChecker(t, model.ConversationTypeHealthCare)
	created, err := f.c.CheckConversation(context.Background(), "CH404")
	assert.NoError(t, err)
	assert.Nil(t, created)
}

func TestSweepRecentChecksActiveConversations(t *testing.T) {
	f := newChecker(t, model.ConversationTypeHealthCare)
	res, err := f.c.SweepRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Zero(t, res.Failed)
	assert.Len(t, f.notifier.reqs, 1, "never read: index 5 means 6 unread")
	assert.EqualValues(t, 6, f.notifier.reqs[0].UnreadCount)
}

type failingForNotifier struct {
	recordingNotifier
	failUser string
}

func (f *failingForNotifier) Notify(ctx context.Context, req NotificationRequest) error {
	if req.UserID == f.failUser {
		return errors.New("push rejected")
	}
	return f.recordingNotifier.Notify(ctx, req)
}

func TestSweepRecentIsolatesPatientFailures(t *testing.T) {
	fc := clock.Fake(t0)
	convs := chatstore.NewMemStore(fc.Now)
	notes := notifystore.NewMemStore()
	last := t0.Add(-time.Hour)
	require.NoError(t, convs.UpsertConversation(context.Background(), model.Conversation{
		ID: "c1", VendorID: "CH1", Type: model.ConversationTypeHealthCare, State: model.ConversationStateActive,
		Index: 5, HasMessages: true, LastMessageAt: &last,
		Employees: []model.Participant{{UserID: "u-doc", Kind: model.ParticipantKindEmployee, VendorIdentity: "doc"}},
		Patients: []model.Participant{
			{UserID: "u-a", Kind: model.ParticipantKindPatient, VendorIdentity: "a"},
			{UserID: "u-b", Kind: model.ParticipantKindPatient, VendorIdentity: "b"},
		},
	}))
	n := &failingForNotifier{failUser: "u-a"}
	c := NewChecker(convs, notes, n, config.StaticPolicy(config.DefaultPolicy()), fc)

	created, err := c.CheckConversation(context.Background(), "CH1")
	require.Error(t, err)
	require.Len(t, created, 1, "b is still checked after a fails")
	assert.Equal(t, "u-b", created[0].UserID)
	require.Len(t, n.reqs, 1)
	assert.Equal(t, "u-b", n.reqs[0].UserID)
	assert.Len(t, notes.All(), 1)

	res, err := c.SweepRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Failed, "a keeps failing")
	assert.Len(t, n.reqs, 1, "b already notified within the threshold")
}
