package kafka

import "github.com/Shopify/sarama"

type Config struct {
	Brokers                 []string `mapstructure:"brokers"`
	ClientID                string   `mapstructure:"client_id"`
	PartitionsPerTopic      int32    `mapstructure:"partitions_per_topic"`
	ReplicationFactor       int16    `mapstructure:"replication_factor"`
	ProducerRetries         int      `mapstructure:"producer_retries"`
	ProducerCompression     string   `mapstructure:"producer_compression"` // none/snappy/lz4/zstd
	Version                 string   `mapstructure:"version"`
	AutoCreateTopicsOnStart bool     `mapstructure:"auto_create_topics_on_start"`
}

// DefaultConfig 单机默认值
func DefaultConfig() Config {
	return Config{
		Brokers:                 []string{"127.0.0.1:9092"},
		ClientID:                "carechat",
		PartitionsPerTopic:      8,
		ReplicationFactor:       1,
		ProducerRetries:         5,
		ProducerCompression:     "snappy",
		Version:                 sarama.V2_1_0_0.String(),
		AutoCreateTopicsOnStart: true,
	}
}
