package convo

import (
	"context"
	"sync"

	"CareChat/tools/errs"
)

// CredentialSource 诊所 -> 供应商账号
type CredentialSource interface {
	Credentials(ctx context.Context, practiceID string) (Credentials, error)
}

// StaticCredentials 配置文件中的诊所账号表；"default" 作为兜底
type StaticCredentials map[string]Credentials

func (s StaticCredentials) Credentials(_ context.Context, practiceID string) (Credentials, error) {
	if c, ok := s[practiceID]; ok {
		return c, nil
	}
	if c, ok := s["default"]; ok {
		return c, nil
	}
	return Credentials{}, errs.ErrRecordNotFound.WrapMsg("no vendor credentials", "practice", practiceID)
}

// Sessions 为每个诊所缓存一个客户端，读路径带重试
type Sessions struct {
	cfg   HTTPConfig
	src   CredentialSource
	wrap  func(Client) Client
	cache sync.Map // practiceID -> Client
}

func NewSessions(cfg HTTPConfig, src CredentialSource, wrap func(Client) Client) *Sessions {
	if wrap == nil {
		wrap = func(c Client) Client { return c }
	}
	return &Sessions{cfg: cfg, src: src, wrap: wrap}
}

func (s *Sessions) ForPractice(ctx context.Context, practiceID string) (Client, error) {
	if c, ok := s.cache.Load(practiceID); ok {
		return c.(Client), nil
	}
	cred, err := s.src.Credentials(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	c, _ := s.cache.LoadOrStore(practiceID, s.wrap(NewHTTPClient(s.cfg, cred)))
	return c.(Client), nil
}

// Invalidate 凭据轮换后丢弃缓存
func (s *Sessions) Invalidate(practiceID string) {
	s.cache.Delete(practiceID)
}
