package kafka

import (
	"BeepPager/logger"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

// TopicAdmin is the part of sarama.ClusterAdmin used to prepare the topic.
type TopicAdmin interface {
	DescribeTopics(topics []string) ([]*sarama.TopicMetadata, error)
	CreateTopic(topic string, detail *sarama.TopicDetail, validateOnly bool) error
	CreatePartitions(topic string, count int32, assignment [][]int32, validateOnly bool) error
}

// EnsureTopic creates the topic when missing and grows its partition count up
// to c.Partitions (Kafka can only add partitions).
func EnsureTopic(admin TopicAdmin, c AppConfig) error {
	descs, err := admin.DescribeTopics([]string{c.Topic})
	if err != nil {
		return errors.Wrapf(err, "describe topic %s", c.Topic)
	}
	exists := len(descs) == 1 && descs[0].Err == sarama.ErrNoError

	if !exists {
		minISR := "1"
		if c.ReplicationFactor >= 3 {
			minISR = "2"
		}
		td := &sarama.TopicDetail{
			NumPartitions:     c.Partitions,
			ReplicationFactor: c.ReplicationFactor,
			ConfigEntries: map[string]*string{
				"cleanup.policy":                 strPtr("delete"),
				"min.insync.replicas":            strPtr(minISR),
				"unclean.leader.election.enable": strPtr("false"),
				"compression.type":               strPtr("producer"),
			},
		}
		if err := admin.CreateTopic(c.Topic, td, false); err != nil {
			var te *sarama.TopicError
			if (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) || errors.Is(err, sarama.ErrTopicAlreadyExists) {
				logger.Infof("[Topic] exists (race): %s", c.Topic)
				return nil
			}
			return errors.Wrapf(err, "create topic %s", c.Topic)
		}
		logger.Infof("[Topic] created: %s (partitions=%d, rf=%d)", c.Topic, c.Partitions, c.ReplicationFactor)
		return nil
	}

	cur := int32(len(descs[0].Partitions))
	if c.Partitions > cur {
		if err := admin.CreatePartitions(c.Topic, c.Partitions, nil, false); err != nil {
			return errors.Wrapf(err, "expand partitions %s from %d to %d", c.Topic, cur, c.Partitions)
		}
		logger.Infof("[Topic] partitions expanded: %s (%d -> %d)", c.Topic, cur, c.Partitions)
		return nil
	}
	logger.Infof("[Topic] exists: %s (partitions=%d)", c.Topic, cur)
	return nil
}

func strPtr(s string) *string { return &s }
