package config

import (
	"time"

	"CareChat/data/database/mgo/mongoutil"
	"CareChat/service/kafka"
	"CareChat/service/natsx"
	"CareChat/service/pg"
	redis "CareChat/service/storage/redis"
	"CareChat/service/convo"
)

const (
	BackendInfra  = "infra"  // redis + mongo + postgres + nats + kafka
	BackendMemory = "memory" // 单进程内存实现，本地联调用
)

type AppConfig struct {
	NodeID  int64  `mapstructure:"node_id"` // 雪花 ID 节点号
	Backend string `mapstructure:"backend"`

	HTTP      HTTPConfig        `mapstructure:"http"`
	Log       LogConfig         `mapstructure:"log"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Redis     redis.Config      `mapstructure:"redis"`
	Mongo     mongoutil.Config  `mapstructure:"mongo"`
	Postgres  pg.Config         `mapstructure:"postgres"`
	Nats      natsx.NatsxConfig `mapstructure:"nats"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	Vendor    VendorConfig      `mapstructure:"vendor"`
	Nacos     NacosConfig       `mapstructure:"nacos"`
	Scheduler SchedulerConfig   `mapstructure:"scheduler"`
	Policy    Policy            `mapstructure:"policy"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Alg       string        `mapstructure:"alg"`
	TTL       time.Duration `mapstructure:"ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

type KafkaConfig struct {
	kafka.Config      `mapstructure:",squash"`
	NotificationTopic string `mapstructure:"notification_topic"`
}

type VendorConfig struct {
	convo.HTTPConfig `mapstructure:",squash"`
	// 诊所 -> 账号，"default" 兜底
	Credentials   map[string]convo.Credentials `mapstructure:"credentials"`
	WebhookHeader string                        `mapstructure:"webhook_header"`
	WebhookSecret string                        `mapstructure:"webhook_secret"`
}

type NacosConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      uint64 `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DataID    string `mapstructure:"data_id"`
	Group     string `mapstructure:"group"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	LeaseKey string        `mapstructure:"lease_key"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}
