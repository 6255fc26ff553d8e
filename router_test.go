package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"CareChat/global/config"
	"CareChat/module/chat/model"
	"CareChat/service/convo"
	"CareChat/service/convo/convotest"
	"CareChat/tools/clock"
	sec "CareChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type env struct {
	r      *gin.Engine
	a      *app
	vendor *convotest.Fake
	token  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Vendor.WebhookSecret = "hook"

	fc := clock.Fake(t0)
	v := convotest.New()
	a, err := newApp(context.Background(), cfg, v, fc)
	require.NoError(t, err)
	t.Cleanup(a.close)

	require.NoError(t, a.convs.UpsertConversation(context.Background(), model.Conversation{
		ID: "c1", VendorID: "CH1", PracticeID: "p1",
		Type: model.ConversationTypeHealthCare, State: model.ConversationStateActive,
		Index: 3, HasMessages: true,
		Patients: []model.Participant{{UserID: "u-pat", Kind: model.ParticipantKindPatient, VendorIdentity: "pat", VendorParticipantID: "MB1"}},
	}))
	v.AddParticipant("CH1", convo.Participant{Sid: "MB1", Identity: "pat"})
	v.AddMessage("CH1", "IM1", "pat", t0.Add(-time.Hour))

	tok, _, err := sec.Generate(sec.Options{Secret: []byte("test-secret"), Alg: "HS256", TTL: time.Hour, Issuer: "carechat"}, "u-doc", nil, t0)
	require.NoError(t, err)
	return &env{r: newRouter(cfg, a), a: a, vendor: v, token: tok}
}

func (e *env) do(method, path, body string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCommandsRequireToken(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPut, "/v1/conversations/CH1/read-index", `{"identity":"pat","index":2}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReadIndexCommand(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPut, "/v1/conversations/CH1/read-index", `{"identity":"pat","index":2}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	row, err := e.a.convs.GetReadIndex(context.Background(), "CH1", "pat")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.EqualValues(t, 2, row.LastReadIndex)

	w = e.do(http.MethodPut, "/v1/conversations/CH1/read-index", `{"identity":"pat"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInteractionCommandActsAsCaller(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/v1/conversations/CH1/messages/IM1/interactions",
		`{"type":"Recommendation","detail":{"query":"q","response":"r"}}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var attrs struct {
		Interactions []struct {
			Type   string `json:"type"`
			CreatedBy string `json:"createdBy"`
		} `json:"interactions"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.vendor.Attributes("CH1", "IM1")), &attrs))
	require.Len(t, attrs.Interactions, 1)
	assert.Equal(t, "Recommendation", attrs.Interactions[0].Type)
	assert.Equal(t, "u-doc", attrs.Interactions[0].CreatedBy)
}

func TestVendorWebhookRoute(t *testing.T) {
	e := newEnv(t)
	form := url.Values{"EventType": {"onParticipantUpdated"}, "ConversationSid": {"CH1"}, "Identity": {"pat"}, "LastReadMessageIndex": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/vendor", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Webhook-Secret", "hook")
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	row, _ := e.a.convs.GetReadIndex(context.Background(), "CH1", "pat")
	require.NotNil(t, row)
	assert.EqualValues(t, 1, row.LastReadIndex)
}
