package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

func BuildBaseConfig(c AppConfig) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "beeppager"
	cfg.Version = c.KafkaVersion

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 1
	}
	cfg.Producer.Retry.Max = c.ProducerRetries
	// the record key picks the partition, so one user's events stay ordered
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// NewSyncProducer connects to the brokers, creating the topic first when
// EnsureTopicOnStart is set.
func NewSyncProducer(c AppConfig) (sarama.SyncProducer, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka brokers missing")
	}
	cfg := BuildBaseConfig(c)

	if c.EnsureTopicOnStart {
		admin, err := sarama.NewClusterAdmin(c.Brokers, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "create kafka admin")
		}
		err = EnsureTopic(admin, c)
		_ = admin.Close()
		if err != nil {
			return nil, err
		}
	}

	p, err := sarama.NewSyncProducer(c.Brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return p, nil
}
