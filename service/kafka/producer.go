package kafka

import (
	"strings"
	"sync"
	"time"

	"CareChat/tools/errs"

	"github.com/Shopify/sarama"
	"github.com/golang/glog"
)

var (
	mu          sync.RWMutex
	KafkaClient sarama.Client
	SyncProd    sarama.SyncProducer
)

func BuildBaseConfig(c Config) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = c.ClientID
	if v, err := sarama.ParseKafkaVersion(c.Version); err == nil {
		cfg.Version = v
	} else {
		cfg.Version = sarama.V2_1_0_0
	}

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	retries := c.ProducerRetries
	if retries <= 0 {
		retries = 1
	}
	cfg.Producer.Retry.Max = retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // Key 决定分区：同一会话的提醒保持有序
	cfg.Producer.Compression = compression(c.ProducerCompression)

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

func compression(s string) sarama.CompressionCodec {
	switch strings.ToLower(s) {
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}

// Init 建立 client 与同步生产者，必要时先建 topic
func Init(c Config, topics ...string) error {
	cfg := BuildBaseConfig(c)
	client, err := sarama.NewClient(c.Brokers, cfg)
	if err != nil {
		return errs.WrapMsg(err, "kafka client", "brokers", c.Brokers)
	}
	if c.AutoCreateTopicsOnStart && len(topics) > 0 {
		admin, err := sarama.NewClusterAdminFromClient(client)
		if err != nil {
			glog.Errorf("[Kafka][ERR] create admin: %v", err)
		} else if err := EnsureTopics(admin, c, topics); err != nil {
			glog.Errorf("[Kafka][ERR] ensure topics: %v", err)
		}
	}
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return errs.WrapMsg(err, "kafka producer")
	}
	mu.Lock()
	KafkaClient, SyncProd = client, p
	mu.Unlock()
	glog.Infof("[Kafka] producer ready brokers=%v", c.Brokers)
	return nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	var first error
	if SyncProd != nil {
		first = SyncProd.Close()
		SyncProd = nil
	}
	if KafkaClient != nil && !KafkaClient.Closed() {
		if err := KafkaClient.Close(); err != nil && first == nil {
			first = err
		}
	}
	KafkaClient = nil
	return first
}

// Producer 当前同步生产者，未初始化时为 nil
func Producer() sarama.SyncProducer {
	mu.RLock()
	defer mu.RUnlock()
	return SyncProd
}
