package natsx

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"BeepPager/module/events"
	"BeepPager/tools/ids"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

const (
	HeaderMsgID = "Nats-Msg-Id"
	HeaderEvent = "Bp-Event"
)

// Publisher is the part of *nats.Conn the bus needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Bus publishes presence to <subject>.presence and posted updates to
// <subject>.update.<receiver>. Every message carries a Nats-Msg-Id so a
// JetStream stream on these subjects can drop duplicates.
type Bus struct {
	pub     Publisher
	subject string
	retries int
	backoff time.Duration
}

type BusOption func(*Bus)

// WithRetry retries a failed publish n times, waiting backoff in between.
func WithRetry(n int, backoff time.Duration) BusOption {
	return func(b *Bus) {
		b.retries = n
		b.backoff = backoff
	}
}

func NewBus(pub Publisher, subject string, opts ...BusOption) *Bus {
	b := &Bus{pub: pub, subject: strings.TrimSuffix(subject, "."), backoff: 100 * time.Millisecond}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bus) PresenceSubject() string { return b.subject + ".presence" }

func (b *Bus) UpdateSubject(receiver string) string {
	return b.subject + ".update." + token(receiver)
}

func (b *Bus) PublishPresence(ctx context.Context, p events.Presence) error {
	return b.publish(ctx, b.PresenceSubject(), "presence", p)
}

func (b *Bus) PublishUpdate(ctx context.Context, p events.Posted) error {
	return b.publish(ctx, b.UpdateSubject(p.Receiver), "update", p)
}

// Close drains the connection when the publisher supports it.
func (b *Bus) Close() error {
	if d, ok := b.pub.(interface{ Drain() error }); ok {
		return d.Drain()
	}
	return nil
}

func (b *Bus) publish(ctx context.Context, subject, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", kind)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(HeaderMsgID, ids.GenerateString())
	msg.Header.Set(HeaderEvent, kind)

	for i := 0; ; i++ {
		err = b.pub.PublishMsg(msg)
		if err == nil || i >= b.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.backoff):
		}
	}
	if err != nil {
		return errors.Wrapf(err, "publish %s", subject)
	}
	return nil
}

// token makes s usable as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

var _ events.Bus = (*Bus)(nil)
