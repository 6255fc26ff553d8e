package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"CareChat/logger"
	"CareChat/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// NotificationRequest 交给投递服务的提醒请求
type NotificationRequest struct {
	NotificationID       int64     `json:"notificationId"`
	UserID               string    `json:"userId"`
	ConversationID       string    `json:"conversationId"`
	ConversationVendorID string    `json:"conversationVendorId"`
	UnreadCount          int64     `json:"unreadCount"`
	SentAt               time.Time `json:"sentAt"`
}

type Notifier interface {
	Notify(ctx context.Context, req NotificationRequest) error
}

// KafkaNotifier 按会话 sid 作 key，同一会话的提醒落在同一分区
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaNotifier(p sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: p, topic: topic}
}

func (n *KafkaNotifier) Notify(_ context.Context, req NotificationRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errs.ErrNotifyPublish.WrapMsg("encode", "err", err.Error())
	}
	partition, offset, err := n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(req.ConversationVendorID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("notification-id"), Value: []byte(strconv.FormatInt(req.NotificationID, 10))},
		},
	})
	if err != nil {
		return errs.ErrNotifyPublish.WrapMsg("kafka send", "topic", n.topic, "err", err.Error())
	}
	logger.Debug("notification published", zap.String("topic", n.topic), zap.Int32("partition", partition), zap.Int64("offset", offset))
	return nil
}

// LogNotifier 单机模式只打日志
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, req NotificationRequest) error {
	logger.Info("unread notification", zap.String("user", req.UserID), zap.String("conversation", req.ConversationVendorID), zap.Int64("unread", req.UnreadCount))
	return nil
}
