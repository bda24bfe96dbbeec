package kafka

import "github.com/Shopify/sarama"

type AppConfig struct {
	Brokers             []string
	Topic               string
	Partitions          int32
	ReplicationFactor   int16 // 1 for a single broker, 3 in production
	ProducerRetries     int
	ProducerCompression string // none/snappy/lz4/zstd
	KafkaVersion        sarama.KafkaVersion
	EnsureTopicOnStart  bool
}

func DefaultConfig(brokers []string, topic string) AppConfig {
	return AppConfig{
		Brokers:             brokers,
		Topic:               topic,
		Partitions:          8,
		ReplicationFactor:   1,
		ProducerRetries:     5,
		ProducerCompression: "snappy",
		KafkaVersion:        sarama.V2_1_0_0,
		EnsureTopicOnStart:  true,
	}
}
