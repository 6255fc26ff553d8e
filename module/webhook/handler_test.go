package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"CareChat/global/config"
	"CareChat/middleware/security"
	"CareChat/module/chat/model"
	chatstore "CareChat/module/chat/store"
	"CareChat/module/events"
	"CareChat/module/index"
	notifystore "CareChat/module/notify/store"
	"CareChat/module/reconcile"
	"CareChat/service/convo/convotest"
	"CareChat/tools/clock"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*gin.Engine, *chatstore.MemStore, *events.Recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fc := clock.Fake(t0)
	convs := chatstore.NewMemStore(fc.Now)
	require.NoError(t, convs.UpsertConversation(context.Background(), model.Conversation{
		ID: "c1", VendorID: "CH1", Type: model.ConversationTypeHealthCare, State: model.ConversationStateActive, Index: 3, HasMessages: true,
		Employees: []model.Participant{{UserID: "u-doc", Kind: model.ParticipantKindEmployee, VendorIdentity: "doc", VendorParticipantID: "MB1"}},
		Patients:  []model.Participant{{UserID: "u-pat", Kind: model.ParticipantKindPatient, VendorIdentity: "pat"}},
	}))
	rec := &events.Recorder{}
	ps := config.StaticPolicy(config.DefaultPolicy())
	tr := index.NewTracker(convs, notifystore.NewMemStore(), convotest.New(), ps, fc)
	h := NewHandler(tr, convs, reconcile.LocalRemover{Convs: convs, Events: rec, Clock: fc})

	r := gin.New()
	h.Register(r, security.SharedSecret("X-Webhook-Secret", "s3cret"))
	return r, convs, rec
}

func post(r *gin.Engine, form url.Values, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/vendor", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Webhook-Secret", secret)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	r, _, _ := setup(t)
	w := post(r, url.Values{"EventType": {EventMessageAdded}, "ConversationSid": {"CH1"}}, "nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookMessageAdded(t *testing.T) {
	r, convs, _ := setup(t)
	w := post(r, url.Values{
		"EventType":       {EventMessageAdded},
		"ConversationSid": {"CH1"},
		"MessageSid":      {"IM9"},
		"Author":          {"pat"},
		"Index":           {"4"},
		"DateCreated":     {"2026-03-01T08:59:00Z"},
	}, "s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c, _ := convs.GetConversationByVendorID(context.Background(), "CH1")
	assert.EqualValues(t, 4, c.Index)
	s, _ := convs.GetSentIndex(context.Background(), "CH1", "pat")
	require.NotNil(t, s)
	assert.EqualValues(t, 4, s.LastSentIndex)
	assert.Equal(t, t0.Add(-time.Minute), s.LastSentAt)
}

func TestWebhookParticipantUpdated(t *testing.T) {
	r, convs, _ := setup(t)
	w := post(r, url.Values{
		"EventType":            {EventParticipantUpdated},
		"ConversationSid":      {"CH1"},
		"Identity":             {"pat"},
		"LastReadMessageIndex": {"2"},
	}, "s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	row, _ := convs.GetReadIndex(context.Background(), "CH1", "pat")
	require.NotNil(t, row)
	assert.EqualValues(t, 2, row.LastReadIndex)
}

func TestWebhookParticipantRemoved(t *testing.T) {
	r, convs, rec := setup(t)
	w := post(r, url.Values{
		"EventType":       {EventParticipantRemoved},
		"ConversationSid": {"CH1"},
		"ParticipantSid":  {"MB1"},
	}, "s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c, _ := convs.GetConversationByVendorID(context.Background(), "CH1")
	doc, _ := c.FindByIdentity("doc")
	assert.False(t, doc.Present())
	assert.Len(t, rec.Named(events.ParticipantRemoved), 1)
}

func TestWebhookMissingConversationSid(t *testing.T) {
	r, _, _ := setup(t)
	w := post(r, url.Values{"EventType": {EventMessageAdded}}, "s3cret")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
