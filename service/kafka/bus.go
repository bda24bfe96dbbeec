package kafka

import (
	"context"
	"encoding/json"

	"BeepPager/module/events"
	"BeepPager/tools/ids"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

const (
	HeaderEvent = "bp-event"
	HeaderMsgID = "bp-msg-id"
)

// Bus writes presence and posted updates to one topic, keyed by user so all
// events of a user land on the same partition.
type Bus struct {
	producer sarama.SyncProducer
	topic    string
}

func NewBus(producer sarama.SyncProducer, topic string) *Bus {
	return &Bus{producer: producer, topic: topic}
}

func (b *Bus) PublishPresence(_ context.Context, p events.Presence) error {
	return b.send(p.User, "presence", p)
}

func (b *Bus) PublishUpdate(_ context.Context, p events.Posted) error {
	return b.send(p.Receiver, "update", p)
}

func (b *Bus) Close() error { return b.producer.Close() }

func (b *Bus) send(key, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", kind)
	}
	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderEvent), Value: []byte(kind)},
			{Key: []byte(HeaderMsgID), Value: []byte(ids.GenerateString())},
		},
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return errors.Wrapf(err, "send %s to %s", kind, b.topic)
	}
	return nil
}

var _ events.Bus = (*Bus)(nil)
