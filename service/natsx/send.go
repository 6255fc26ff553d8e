package natsx

import (
	"context"

	"CareChat/logger"
	"CareChat/tools/errs"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// HeaderMsgID JetStream 按该头去重
const HeaderMsgID = "Nats-Msg-Id"

// Publish 按 Biz 路由发送
func (c *NatsxClient) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := c.route(biz)
	if !ok {
		return errs.ErrArgs.WrapMsg("route not found", "biz", biz)
	}
	if r.Mode == JetStreamPush {
		return c.sendJS(ctx, r.Subject, data, hdr)
	}
	return c.sendCore(r.Subject, data, hdr)
}

// PublishOnce msgID 为空时自动生成
func (c *NatsxClient) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	return c.Publish(ctx, biz, data, withMsgID(hdr, msgID))
}

func withMsgID(hdr map[string]string, msgID string) map[string]string {
	h := make(map[string]string, len(hdr)+1)
	for k, v := range hdr {
		h[k] = v
	}
	if msgID == "" {
		msgID = uuid.NewString()
	}
	h[HeaderMsgID] = msgID
	return h
}

func newMsg(subject string, data []byte, hdr map[string]string) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	return msg
}

func (c *NatsxClient) sendCore(subject string, data []byte, hdr map[string]string) error {
	if err := c.nc.PublishMsg(newMsg(subject, data, hdr)); err != nil {
		return errs.WrapMsg(err, "publish failed", "subject", subject)
	}
	return nil
}

func (c *NatsxClient) sendJS(ctx context.Context, subject string, data []byte, hdr map[string]string) error {
	ack, err := c.js.PublishMsg(newMsg(subject, data, hdr), nats.Context(ctx))
	if err != nil {
		return errs.WrapMsg(err, "publish failed", "subject", subject)
	}
	logger.Debug("nats js published", zap.String("stream", ack.Stream), zap.Uint64("seq", ack.Sequence))
	return nil
}
