package natsx

import (
	"context"
	"testing"

	"CareChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	assert.Equal(t, JetStreamPush, ParseMode(" JetStream "))
	assert.Equal(t, JetStreamPush, ParseMode("js"))
	assert.Equal(t, Core, ParseMode("core"))
	assert.Equal(t, Core, ParseMode("whatever"))
}

func TestRoutesCachedBeforeStart(t *testing.T) {
	require.NoError(t, RegisterRoute(NatsxRoute{Biz: "a", Subject: "carechat.a"}))
	assert.Contains(t, pendingRoutes, "a")

	err := RegisterRoute(NatsxRoute{Biz: "b"})
	assert.True(t, errs.ErrArgs.Is(err))
}

func TestPublishBeforeStart(t *testing.T) {
	err := PublishOnce(context.Background(), "a", []byte("{}"), nil, "id-1")
	require.Error(t, err)
	assert.True(t, errNotStarted.Is(err))
}

func TestWithMsgID(t *testing.T) {
	in := map[string]string{"Event-Name": "x"}
	out := withMsgID(in, "m1")
	assert.Equal(t, "m1", out[HeaderMsgID])
	assert.NotContains(t, in, HeaderMsgID)
	assert.NotEmpty(t, withMsgID(nil, "")[HeaderMsgID])
}
