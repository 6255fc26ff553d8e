package config

import (
	"sync/atomic"
	"time"

	"CareChat/tools/decode"
	"CareChat/tools/errs"

	"gopkg.in/yaml.v3"
)

// Policy 运行期可热更新的业务参数（Nacos 下发）
type Policy struct {
	// 告警类型 -> 过期分钟数 / 可见用户类型
	AlertExpirationMinutes map[string]int      `mapstructure:"alert_expiration_minutes" yaml:"alert_expiration_minutes"`
	AlertAudience          map[string][]string `mapstructure:"alert_audience" yaml:"alert_audience"`

	UnreadThreshold    time.Duration `mapstructure:"unread_threshold" yaml:"unread_threshold"`
	ReadIndexTolerance int64         `mapstructure:"read_index_tolerance" yaml:"read_index_tolerance"`
	RecentMessageCount int           `mapstructure:"recent_message_count" yaml:"recent_message_count"`

	SweepWindow      time.Duration `mapstructure:"sweep_window" yaml:"sweep_window"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	SweepConcurrency int           `mapstructure:"sweep_concurrency" yaml:"sweep_concurrency"`

	// 早于该时间创建、本地不认识的供应商参与者会被清理；零值关闭该规则
	ParticipantCutover time.Time `mapstructure:"participant_cutover" yaml:"participant_cutover"`

	LockTTL         time.Duration   `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	LockRetryDelays []time.Duration `mapstructure:"lock_retry_delays" yaml:"lock_retry_delays"`
}

func DefaultPolicy() Policy {
	return Policy{
		AlertExpirationMinutes: map[string]int{
			"Urgent":   30,
			"Clinical": 120,
			"FollowUp": 1440,
		},
		AlertAudience: map[string][]string{
			"Urgent":   {"Provider", "Nurse"},
			"Clinical": {"Provider"},
			"FollowUp": {"CareCoordinator"},
		},
		UnreadThreshold:    30 * time.Minute,
		ReadIndexTolerance: 2,
		RecentMessageCount: 50,
		SweepWindow:        26 * time.Hour,
		SweepInterval:      time.Hour,
		SweepConcurrency:   8,
		LockTTL:            30 * time.Second,
		LockRetryDelays:    []time.Duration{time.Second, 2 * time.Second, 3 * time.Second},
	}
}

// LockHold 锁内读改写的时间上限，留出余量让租约在释放前不会过期
func (p Policy) LockHold() time.Duration {
	return p.LockTTL - p.LockTTL/5
}

func (p Policy) Validate() error {
	if p.ReadIndexTolerance < 0 {
		return errs.ErrArgs.WrapMsg("read_index_tolerance must be >= 0")
	}
	if p.SweepWindow <= 0 || p.SweepInterval <= 0 {
		return errs.ErrArgs.WrapMsg("sweep_window and sweep_interval must be positive")
	}
	if p.SweepConcurrency <= 0 || p.RecentMessageCount <= 0 {
		return errs.ErrArgs.WrapMsg("sweep_concurrency and recent_message_count must be positive")
	}
	if p.LockTTL <= 0 {
		return errs.ErrArgs.WrapMsg("lock_ttl must be positive")
	}
	for typ, m := range p.AlertExpirationMinutes {
		if m <= 0 {
			return errs.ErrArgs.WrapMsg("alert expiration must be positive", "type", typ)
		}
	}
	return nil
}

// ParsePolicy 解析 YAML 覆盖到 base 之上；未出现的字段保持 base 的值
func ParsePolicy(data []byte, base Policy) (Policy, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Policy{}, errs.ErrArgs.WrapMsg("policy yaml", "err", err.Error())
	}
	out := base.clone()
	if _, ok := m["lock_retry_delays"]; ok {
		out.LockRetryDelays = nil // 切片整体替换，不按下标合并
	}
	if err := decode.Into(m, &out); err != nil {
		return Policy{}, err
	}
	if err := out.Validate(); err != nil {
		return Policy{}, err
	}
	return out, nil
}

func (p Policy) clone() Policy {
	cp := p
	cp.AlertExpirationMinutes = make(map[string]int, len(p.AlertExpirationMinutes))
	for k, v := range p.AlertExpirationMinutes {
		cp.AlertExpirationMinutes[k] = v
	}
	cp.AlertAudience = make(map[string][]string, len(p.AlertAudience))
	for k, v := range p.AlertAudience {
		cp.AlertAudience[k] = append([]string(nil), v...)
	}
	cp.LockRetryDelays = append([]time.Duration(nil), p.LockRetryDelays...)
	return cp
}

// PolicySource 业务模块读取当前策略
type PolicySource interface {
	Current() Policy
}

// PolicyHolder 并发安全的策略快照，Store 整体替换
type PolicyHolder struct {
	v atomic.Pointer[Policy]
}

func NewPolicyHolder(p Policy) *PolicyHolder {
	h := &PolicyHolder{}
	h.Store(p)
	return h
}

// Current 返回快照副本，调用方可随意修改
func (h *PolicyHolder) Current() Policy {
	return h.v.Load().clone()
}

func (h *PolicyHolder) Store(p Policy) {
	cp := p.clone()
	h.v.Store(&cp)
}

// Update 解析远端下发的 YAML 并替换；失败保留旧值
func (h *PolicyHolder) Update(data []byte) error {
	p, err := ParsePolicy(data, h.Current())
	if err != nil {
		return err
	}
	h.Store(p)
	return nil
}

// StaticPolicy 固定策略，测试用
type StaticPolicy Policy

func (s StaticPolicy) Current() Policy { return Policy(s) }
