package convo

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Credentials 一套供应商账号
type Credentials struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	ServiceSID string `mapstructure:"service_sid"`
}

const DefaultTimeout = 10 * time.Second

type HTTPConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PageSize int           `mapstructure:"page_size"`
}

// HTTPClient 供应商 REST API（表单提交，JSON 响应，Basic 认证）
type HTTPClient struct {
	rc       *resty.Client
	service  string
	pageSize int
}

func NewHTTPClient(cfg HTTPConfig, cred Credentials) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cred.AccountSID, cred.AuthToken).
		SetHeader("Accept", "application/json")
	return &HTTPClient{rc: rc, service: cred.ServiceSID, pageSize: cfg.PageSize}
}

const (
	pathConversation = "/v1/Services/{service}/Conversations/{conversation}"
	pathMessages     = pathConversation + "/Messages"
	pathMessage      = pathMessages + "/{message}"
	pathParticipants = pathConversation + "/Participants"
	pathParticipant  = pathParticipants + "/{participant}"
)

type pageMeta struct {
	NextPageURL string `json:"next_page_url"`
}

type messagePage struct {
	Messages []Message `json:"messages"`
	Meta     pageMeta  `json:"meta"`
}

type participantPage struct {
	Participants []Participant `json:"participants"`
	Meta         pageMeta      `json:"meta"`
}

func (c *HTTPClient) req(ctx context.Context, conversationSid string) *resty.Request {
	return c.rc.R().
		SetContext(ctx).
		SetError(&Error{}).
		SetPathParams(map[string]string{
			"service":      c.service,
			"conversation": conversationSid,
		})
}

func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &Error{Op: op, Cause: err}
	}
	if !resp.IsError() {
		return nil
	}
	e, _ := resp.Error().(*Error)
	if e == nil {
		e = &Error{}
	}
	e.Op = op
	e.Status = resp.StatusCode()
	return e
}

func (c *HTTPClient) FetchMessage(ctx context.Context, conversationSid, messageSid string) (*Message, error) {
	var out Message
	resp, err := c.req(ctx, conversationSid).
		SetPathParam("message", messageSid).
		SetResult(&out).
		Get(pathMessage)
	if err := check("fetch message", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) WriteAttributes(ctx context.Context, conversationSid, messageSid, attributes string) error {
	resp, err := c.req(ctx, conversationSid).
		SetPathParam("message", messageSid).
		SetFormData(map[string]string{"Attributes": attributes}).
		Post(pathMessage)
	return check("write attributes", resp, err)
}

// FetchMessages 按 order 取前 limit 条；limit <= 0 取全部
func (c *HTTPClient) FetchMessages(ctx context.Context, conversationSid string, order Order, limit int) ([]Message, error) {
	size := c.pageSize
	if limit > 0 && limit < size {
		size = limit
	}
	r := c.req(ctx, conversationSid).SetQueryParams(map[string]string{
		"Order":    string(order),
		"PageSize": strconv.Itoa(size),
	})

	var out []Message
	url := pathMessages
	for url != "" {
		var page messagePage
		resp, err := r.SetResult(&page).Get(url)
		if err := check("fetch messages", resp, err); err != nil {
			return nil, err
		}
		out = append(out, page.Messages...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		url = page.Meta.NextPageURL
		r = c.rc.R().SetContext(ctx).SetError(&Error{})
	}
	return out, nil
}

func (c *HTTPClient) FetchParticipants(ctx context.Context, conversationSid string) ([]Participant, error) {
	r := c.req(ctx, conversationSid).SetQueryParam("PageSize", strconv.Itoa(c.pageSize))

	var out []Participant
	url := pathParticipants
	for url != "" {
		var page participantPage
		resp, err := r.SetResult(&page).Get(url)
		if err := check("fetch participants", resp, err); err != nil {
			return nil, err
		}
		out = append(out, page.Participants...)
		url = page.Meta.NextPageURL
		r = c.rc.R().SetContext(ctx).SetError(&Error{})
	}
	return out, nil
}

func (c *HTTPClient) SetParticipantReadCursor(ctx context.Context, conversationSid, participantSid string, index int64) error {
	resp, err := c.req(ctx, conversationSid).
		SetPathParam("participant", participantSid).
		SetFormData(map[string]string{"LastReadMessageIndex": strconv.FormatInt(index, 10)}).
		Post(pathParticipant)
	return check("set read cursor", resp, err)
}

func (c *HTTPClient) RemoveParticipant(ctx context.Context, conversationSid, participantSid string) error {
	resp, err := c.req(ctx, conversationSid).
		SetPathParam("participant", participantSid).
		Delete(pathParticipant)
	if err := check("remove participant", resp, err); err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusNoContent && resp.StatusCode() != http.StatusOK {
		return &Error{Op: "remove participant", Status: resp.StatusCode()}
	}
	return nil
}
