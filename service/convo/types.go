package convo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Message 供应商消息。Index 由供应商分配，会话内单调递增，从 0 开始。
type Message struct {
	Sid             string    `json:"sid"`
	ConversationSid string    `json:"conversation_sid"`
	Author          string    `json:"author"`
	Body            string    `json:"body"`
	Attributes      string    `json:"attributes"` // JSON 字符串，格式由本系统定义
	Index           int64     `json:"index"`
	DateCreated     time.Time `json:"date_created"`
}

// Participant 供应商参与者快照。LastReadMessageIndex 为 nil 表示供应商侧从未设置。
type Participant struct {
	Sid                  string     `json:"sid"`
	Identity             string     `json:"identity"`
	LastReadMessageIndex *int64     `json:"last_read_message_index"`
	LastReadTimestamp    *time.Time `json:"last_read_timestamp"`
	DateCreated          time.Time  `json:"date_created"`
}

// Client 单个供应商账号下的会话操作
type Client interface {
	FetchMessage(ctx context.Context, conversationSid, messageSid string) (*Message, error)
	WriteAttributes(ctx context.Context, conversationSid, messageSid, attributes string) error
	FetchMessages(ctx context.Context, conversationSid string, order Order, limit int) ([]Message, error)
	FetchParticipants(ctx context.Context, conversationSid string) ([]Participant, error)
	SetParticipantReadCursor(ctx context.Context, conversationSid, participantSid string, index int64) error
	RemoveParticipant(ctx context.Context, conversationSid, participantSid string) error
}

// Provider 按诊所解析供应商会话凭据
type Provider interface {
	ForPractice(ctx context.Context, practiceID string) (Client, error)
}

// Error 供应商调用失败。Cause 非空表示传输层失败（未拿到响应）。
type Error struct {
	Op      string
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vendor %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("vendor %s: status=%d code=%d %s", e.Op, e.Status, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

// IsTransport 网络错误、限流与 5xx，重试可能成功
func IsTransport(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Cause != nil || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

func NotFound(op, what string) error {
	return &Error{Op: op, Status: http.StatusNotFound, Code: 20404, Message: what + " not found"}
}
