package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNatsPublisherUsesEventIDForDedup(t *testing.T) {
	var gotBiz, gotID string
	var gotData []byte
	p := &NatsPublisher{timeout: time.Second, publish: func(_ context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
		gotBiz, gotID, gotData = biz, msgID, data
		assert.Equal(t, AlertCreated, hdr["Event-Name"])
		return nil
	}}
	p.Publish(context.Background(), Event{ID: "e1", Name: AlertCreated, ConversationID: "CH1"})

	assert.Equal(t, AlertCreated, gotBiz)
	assert.Equal(t, "e1", gotID)
	var decoded Event
	require.NoError(t, json.Unmarshal(gotData, &decoded))
	assert.Equal(t, "CH1", decoded.ConversationID)
}

func TestNatsPublisherSwallowsFailure(t *testing.T) {
	calls := 0
	p := &NatsPublisher{timeout: time.Second, publish: func(context.Context, string, []byte, map[string]string, string) error {
		calls++
		return errors.New("nats down")
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { p.Publish(ctx, Event{Name: MessageDeleted}) })
	assert.Equal(t, 1, calls)
}
