package events

import (
	"context"
	"time"

	"BeepPager/module/protocol"

	"github.com/pkg/errors"
)

// Presence is published when a device logs in or its connection goes away.
type Presence struct {
	User   string `json:"user"`
	Device string `json:"device"`
	ConnID uint64 `json:"conn_id"`
	Online bool   `json:"online"`
	At     int64  `json:"at"`
}

// Posted is published after an update was appended to a receiver's mailbox.
type Posted struct {
	Receiver string          `json:"receiver"`
	Update   protocol.Update `json:"update"`
	At       int64           `json:"at"`
}

// Bus mirrors presence and posted updates to an external broker.
type Bus interface {
	PublishPresence(ctx context.Context, p Presence) error
	PublishUpdate(ctx context.Context, p Posted) error
	Close() error
}

func Now() int64 { return time.Now().UnixMilli() }

type fanout []Bus

// Fanout publishes to every bus and joins their errors.
func Fanout(buses ...Bus) Bus {
	out := make(fanout, 0, len(buses))
	for _, b := range buses {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (f fanout) PublishPresence(ctx context.Context, p Presence) error {
	var errs []error
	for _, b := range f {
		if err := b.PublishPresence(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return join(errs)
}

func (f fanout) PublishUpdate(ctx context.Context, p Posted) error {
	var errs []error
	for _, b := range f {
		if err := b.PublishUpdate(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return join(errs)
}

func (f fanout) Close() error {
	var errs []error
	for _, b := range f {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return join(errs)
}

func join(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Wrapf(errs[0], "%d publishers failed", len(errs))
	}
}
