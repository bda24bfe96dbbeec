package storage

import (
	"context"
	"strconv"

	"BeepPager/module/protocol"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Update archive: one Redis Stream per receiver.

func updatesKey(user string) string { return "bp:updates:" + user }

type Archive struct {
	rdb    redis.UniversalClient
	maxLen int64
	approx bool
}

// NewArchive trims every stream to about maxLen entries.
func NewArchive(rdb redis.UniversalClient, maxLen int64) *Archive {
	return &Archive{rdb: rdb, maxLen: maxLen, approx: true}
}

// Exact switches stream trimming from approximate to exact MAXLEN.
func (a *Archive) Exact() *Archive {
	a.approx = false
	return a
}

func (a *Archive) Append(ctx context.Context, receiver string, u protocol.Update) error {
	payload, err := protocol.MarshalPayload(u.Payload)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: updatesKey(receiver),
		MaxLen: a.maxLen,
		Approx: a.approx,
		Values: map[string]any{
			"pts":     strconv.FormatUint(u.Pts, 10),
			"type":    u.Payload.PayloadType(),
			"payload": string(payload),
		},
	}
	if err := a.rdb.XAdd(ctx, args).Err(); err != nil {
		return errors.Wrapf(err, "archive receiver=%s pts=%d", receiver, u.Pts)
	}
	return nil
}

// Recent returns up to n of the newest archived updates of user, oldest first.
func (a *Archive) Recent(ctx context.Context, user string, n int64) ([]protocol.Update, error) {
	msgs, err := a.rdb.XRevRangeN(ctx, updatesKey(user), "+", "-", n).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read archive user=%s", user)
	}
	out := make([]protocol.Update, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		u, err := decodeEntry(msgs[i].Values)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %s", msgs[i].ID)
		}
		out = append(out, u)
	}
	return out, nil
}

func decodeEntry(v map[string]any) (protocol.Update, error) {
	ptsStr, _ := v["pts"].(string)
	pts, err := strconv.ParseUint(ptsStr, 10, 64)
	if err != nil {
		return protocol.Update{}, errors.Wrap(err, "bad pts")
	}
	raw, _ := v["payload"].(string)
	p, err := protocol.UnmarshalPayload([]byte(raw))
	if err != nil {
		return protocol.Update{}, err
	}
	return protocol.Update{Pts: pts, Payload: p}, nil
}
