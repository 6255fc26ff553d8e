package kafka

import (
	"errors"

	"CareChat/tools/errs"

	"github.com/Shopify/sarama"
	"github.com/golang/glog"
)

// EnsureTopics 不存在就按配置创建；已存在且分区数不足时扩分区（Kafka 只能增加分区）
func EnsureTopics(admin sarama.ClusterAdmin, c Config, topics []string) error {
	for _, t := range topics {
		descs, err := admin.DescribeTopics([]string{t})
		if err != nil {
			return errs.WrapMsg(err, "describe topic", "topic", t)
		}
		exists := len(descs) == 1 && descs[0].Err == sarama.ErrNoError

		if !exists {
			if err := admin.CreateTopic(t, topicDetail(c), false); err != nil {
				if alreadyExists(err) {
					glog.Infof("[Topic] exists (race): %s", t)
					continue
				}
				return errs.WrapMsg(err, "create topic", "topic", t)
			}
			glog.Infof("[Topic] created: %s (partitions=%d, rf=%d)", t, c.PartitionsPerTopic, c.ReplicationFactor)
			continue
		}

		curParts := int32(len(descs[0].Partitions))
		if c.PartitionsPerTopic > curParts {
			if err := admin.CreatePartitions(t, c.PartitionsPerTopic, nil, false); err != nil {
				return errs.WrapMsg(err, "expand partitions", "topic", t, "from", curParts, "to", c.PartitionsPerTopic)
			}
			glog.Infof("[Topic] partitions expanded: %s (%d -> %d)", t, curParts, c.PartitionsPerTopic)
		}
	}
	return nil
}

func topicDetail(c Config) *sarama.TopicDetail {
	minISR := "1"
	if c.ReplicationFactor >= 3 {
		minISR = "2"
	}
	parts := c.PartitionsPerTopic
	if parts <= 0 {
		parts = 1
	}
	rf := c.ReplicationFactor
	if rf <= 0 {
		rf = 1
	}
	return &sarama.TopicDetail{
		NumPartitions:     parts,
		ReplicationFactor: rf,
		ConfigEntries: map[string]*string{
			"cleanup.policy":                 strPtr("delete"),
			"min.insync.replicas":            strPtr(minISR),
			"unclean.leader.election.enable": strPtr("false"),
			"compression.type":               strPtr("producer"),
		},
	}
}

func alreadyExists(err error) bool {
	var te *sarama.TopicError
	if errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists {
		return true
	}
	return errors.Is(err, sarama.ErrTopicAlreadyExists)
}

func strPtr(s string) *string { return &s }
