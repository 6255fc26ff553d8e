package config

import (
	"os"
	"strings"
	"time"

	"CareChat/data/database/mgo/mongoutil"
	"CareChat/service/kafka"
	"CareChat/service/natsx"
	"CareChat/service/pg"
	redis "CareChat/service/storage/redis"
	"CareChat/service/convo"
	"CareChat/tools"
	"CareChat/tools/decode"
	"CareChat/tools/errs"

	"gopkg.in/yaml.v3"
)

// Default 本地单机默认配置
func Default() *AppConfig {
	return &AppConfig{
		NodeID:  1,
		Backend: BackendInfra,
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:     LogConfig{Level: "info"},
		Auth:    AuthConfig{Alg: "HS256", TTL: 2 * time.Hour, Issuer: "carechat"},
		Redis:   redis.Config{Addr: "127.0.0.1:6379", PoolSize: 20, DialTimeout: 3 * time.Second},
		Mongo: mongoutil.Config{
			Uri:         "mongodb://localhost:27017",
			Database:    "carechat",
			MaxPoolSize: 20,
			MaxRetry:    3,
		},
		Postgres: pg.Config{MaxConns: 10, OperationTimeout: 5 * time.Second},
		Nats: natsx.NatsxConfig{
			Servers: []string{"nats://127.0.0.1:4222"},
			Name:    "carechat",
			Mode:    "core",
		},
		Kafka: KafkaConfig{
			Config:            kafka.DefaultConfig(),
			NotificationTopic: "carechat.unread-notification",
		},
		Vendor: VendorConfig{
			HTTPConfig:    convo.HTTPConfig{Timeout: convo.DefaultTimeout, PageSize: 50},
			WebhookHeader: "X-Webhook-Secret",
		},
		Nacos: NacosConfig{Host: "127.0.0.1", Port: 8848, DataID: "carechat-policy.yaml", Group: "DEFAULT_GROUP"},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			LeaseKey: "carechat:sweep:lease",
			LeaseTTL: 5 * time.Minute,
		},
		Policy: DefaultPolicy(),
	}
}

// Load 默认值 <- YAML 文件 <- 环境变量，然后校验。path 为空时跳过文件。
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "read config", "path", path)
		}
		if err := parseInto(data, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseInto(data []byte, cfg *AppConfig) error {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return errs.ErrArgs.WrapMsg("config yaml", "err", err.Error())
	}
	if policy, ok := m["policy"].(map[string]any); ok {
		if _, ok := policy["lock_retry_delays"]; ok {
			cfg.Policy.LockRetryDelays = nil
		}
	}
	return decode.Into(m, cfg)
}

func applyEnv(cfg *AppConfig) {
	cfg.HTTP.Addr = tools.GetEnv("CARECHAT_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Backend = tools.GetEnv("CARECHAT_BACKEND", cfg.Backend)
	cfg.Log.Level = tools.GetEnv("CARECHAT_LOG_LEVEL", cfg.Log.Level)
	cfg.Redis.Addr = tools.GetEnv("CARECHAT_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = tools.GetEnv("CARECHAT_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Mongo.Uri = tools.GetEnv("CARECHAT_MONGO_URI", cfg.Mongo.Uri)
	cfg.Postgres.DSN = tools.GetEnv("CARECHAT_PG_DSN", cfg.Postgres.DSN)
	if v := tools.SplitList(os.Getenv("CARECHAT_NATS_SERVERS")); len(v) > 0 {
		cfg.Nats.Servers = v
	}
	if v := tools.SplitList(os.Getenv("CARECHAT_KAFKA_BROKERS")); len(v) > 0 {
		cfg.Kafka.Brokers = v
	}
	cfg.Vendor.BaseURL = tools.GetEnv("CARECHAT_VENDOR_BASE_URL", cfg.Vendor.BaseURL)
	cfg.Vendor.WebhookSecret = tools.GetEnv("CARECHAT_WEBHOOK_SECRET", cfg.Vendor.WebhookSecret)
	cfg.Auth.JWTSecret = tools.GetEnv("CARECHAT_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Nacos.Enabled = tools.GetEnvBool("CARECHAT_NACOS_ENABLED", cfg.Nacos.Enabled)
	cfg.Scheduler.Enabled = tools.GetEnvBool("CARECHAT_SCHEDULER_ENABLED", cfg.Scheduler.Enabled)
	cfg.NodeID = int64(tools.GetEnvInt("CARECHAT_NODE_ID", int(cfg.NodeID)))
}

func (c *AppConfig) Validate() error {
	switch c.Backend {
	case BackendInfra:
		if c.Postgres.DSN == "" {
			return errs.ErrArgs.WrapMsg("postgres.dsn is required for the infra backend")
		}
	case BackendMemory:
	default:
		return errs.ErrArgs.WrapMsg("unknown backend", "backend", c.Backend)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errs.ErrArgs.WrapMsg("auth.jwt_secret is required")
	}
	if c.Vendor.BaseURL == "" {
		return errs.ErrArgs.WrapMsg("vendor.base_url is required")
	}
	if len(c.Vendor.Credentials) == 0 {
		return errs.ErrArgs.WrapMsg("vendor.credentials must name at least one account")
	}
	// 锁内有一次取消息和一次回写，两次往返都要落在租约之内
	timeout := c.Vendor.Timeout
	if timeout <= 0 {
		timeout = convo.DefaultTimeout
	}
	if c.Policy.LockHold() <= 2*timeout {
		return errs.ErrArgs.WrapMsg("policy.lock_ttl too short for vendor.timeout",
			"lock_ttl", c.Policy.LockTTL.String(), "timeout", timeout.String())
	}
	if c.Kafka.NotificationTopic == "" {
		return errs.ErrArgs.WrapMsg("kafka.notification_topic is required")
	}
	return c.Policy.Validate()
}
