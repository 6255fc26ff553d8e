package convo

import (
	"context"

	"CareChat/tools/retry"
)

// WithRetry 读路径遇到传输错误按 retrier 的节奏重试；写路径原样透传
func WithRetry(c Client, r *retry.Retrier) Client {
	return &retrying{Client: c, r: r}
}

// NewRetrier 供应商读路径的默认重试策略
func NewRetrier() *retry.Retrier {
	return retry.New("vendor", IsTransport)
}

// Direct 去掉 WithRetry 包装，返回底层客户端
func Direct(c Client) Client {
	if r, ok := c.(*retrying); ok {
		return r.Client
	}
	return c
}

type retrying struct {
	Client
	r *retry.Retrier
}

func (c *retrying) FetchMessage(ctx context.Context, conversationSid, messageSid string) (*Message, error) {
	var out *Message
	err := c.r.Do(ctx, func(ctx context.Context) error {
		m, err := c.Client.FetchMessage(ctx, conversationSid, messageSid)
		out = m
		return err
	})
	return out, err
}

func (c *retrying) FetchMessages(ctx context.Context, conversationSid string, order Order, limit int) ([]Message, error) {
	var out []Message
	err := c.r.Do(ctx, func(ctx context.Context) error {
		ms, err := c.Client.FetchMessages(ctx, conversationSid, order, limit)
		out = ms
		return err
	})
	return out, err
}

func (c *retrying) FetchParticipants(ctx context.Context, conversationSid string) ([]Participant, error) {
	var out []Participant
	err := c.r.Do(ctx, func(ctx context.Context) error {
		ps, err := c.Client.FetchParticipants(ctx, conversationSid)
		out = ps
		return err
	})
	return out, err
}
