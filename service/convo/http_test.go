package convo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"CareChat/tools/clock"
	"CareChat/tools/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const convPath = "/v1/Services/IS1/Conversations/CH1"

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(HTTPConfig{BaseURL: srv.URL, PageSize: 2},
		Credentials{AccountSID: "AC1", AuthToken: "tok", ServiceSID: "IS1"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchMessageAndAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC1", user)
		assert.Equal(t, "tok", pass)
		assert.Equal(t, convPath+"/Messages/IM1", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"sid": "IM1", "conversation_sid": "CH1", "author": "p1",
			"attributes": `{"isDeleted":false}`, "index": 4,
			"date_created": "2024-05-01T10:00:00Z",
		})
	})

	m, err := c.FetchMessage(context.Background(), "CH1", "IM1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), m.Index)
	assert.Equal(t, "p1", m.Author)
	assert.Equal(t, `{"isDeleted":false}`, m.Attributes)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), m.DateCreated.UTC())
}

func TestFetchMessageNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"code": 20404, "message": "not found", "status": 404})
	})

	_, err := c.FetchMessage(context.Background(), "CH1", "IM404")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransport(err))
}

func TestFetchMessagesFollowsPages(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Page") == "1" {
			writeJSON(w, http.StatusOK, map[string]any{
				"messages": []map[string]any{{"sid": "IM1", "index": 1}},
				"meta":     map[string]any{"next_page_url": nil},
			})
			return
		}
		assert.Equal(t, "desc", r.URL.Query().Get("Order"))
		writeJSON(w, http.StatusOK, map[string]any{
			"messages": []map[string]any{{"sid": "IM3", "index": 3}, {"sid": "IM2", "index": 2}},
			"meta":     map[string]any{"next_page_url": srvURL + convPath + "/Messages?Page=1"},
		})
	}))
	t.Cleanup(srv.Close)
	srvURL = srv.URL
	c := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, PageSize: 2}, Credentials{ServiceSID: "IS1"})

	all, err := c.FetchMessages(context.Background(), "CH1", OrderDesc, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "IM1", all[2].Sid)

	two, err := c.FetchMessages(context.Background(), "CH1", OrderDesc, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestSetReadCursorPostsForm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, convPath+"/Participants/MB1", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "7", r.PostForm.Get("LastReadMessageIndex"))
		writeJSON(w, http.StatusOK, map[string]any{"sid": "MB1"})
	})
	require.NoError(t, c.SetParticipantReadCursor(context.Background(), "CH1", "MB1", 7))
}

func TestRetryOnServerErrors(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "busy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"participants": []map[string]any{{"sid": "MB1", "identity": "p1"}}})
	})
	fc := clock.Fake(time.Now())
	rc := WithRetry(c, NewRetrier().WithClock(fc))

	ps, err := rc.FetchParticipants(context.Background(), "CH1")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Nil(t, ps[0].LastReadMessageIndex)
	assert.Equal(t, 3, calls)
	assert.Equal(t, retry.DefaultDelays[:2], fc.Waits())
}

func TestDirectSkipsRetry(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "busy"})
	})
	fc := clock.Fake(time.Now())
	rc := WithRetry(c, NewRetrier().WithClock(fc))
	assert.Same(t, c, Direct(rc))
	assert.Same(t, c, Direct(c))

	_, err := Direct(rc).FetchMessage(context.Background(), "CH1", "IM1")
	assert.True(t, IsTransport(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, fc.Waits())
}

func TestRetryDoesNotRepeatNotFound(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "gone"})
	})
	rc := WithRetry(c, NewRetrier().WithClock(clock.Fake(time.Now())))

	_, err := rc.FetchMessage(context.Background(), "CH1", "IM1")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, calls)
}

func TestStaticCredentialsFallback(t *testing.T) {
	src := StaticCredentials{"default": {AccountSID: "ACD"}, "p1": {AccountSID: "AC1"}}
	c, err := src.Credentials(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "AC1", c.AccountSID)

	c, err = src.Credentials(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, "ACD", c.AccountSID)

	_, err = StaticCredentials{}.Credentials(context.Background(), "x")
	assert.Error(t, err)
}

func TestSessionsCachePerPractice(t *testing.T) {
	wrapped := 0
	s := NewSessions(HTTPConfig{BaseURL: "http://vendor.invalid"}, StaticCredentials{"default": {}}, func(c Client) Client {
		wrapped++
		return c
	})
	a, err := s.ForPractice(context.Background(), "p1")
	require.NoError(t, err)
	b, err := s.ForPractice(context.Background(), "p1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, wrapped)
}
