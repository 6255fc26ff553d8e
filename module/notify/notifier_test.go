package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"CareChat/tools/errs"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaNotifierSendsJSON(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer func() { _ = sp.Close() }()
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var req NotificationRequest
		if err := json.Unmarshal(val, &req); err != nil {
			return err
		}
		if req.UserID != "u-pat" || req.UnreadCount != 3 {
			return errors.New("unexpected payload")
		}
		return nil
	})

	n := NewKafkaNotifier(sp, "carechat.unread")
	require.NoError(t, n.Notify(context.Background(), NotificationRequest{NotificationID: 7, UserID: "u-pat", ConversationVendorID: "CH1", UnreadCount: 3}))
}

func TestKafkaNotifierWrapsFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer func() { _ = sp.Close() }()
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := NewKafkaNotifier(sp, "carechat.unread").Notify(context.Background(), NotificationRequest{UserID: "u"})
	assert.True(t, errs.ErrNotifyPublish.Is(err))
}
