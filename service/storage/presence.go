package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: bp:presence:<user>
// Hash field: device, value: connection id. The TTL is renewed on every login.
func presenceKey(user string) string { return "bp:presence:" + user }

// Removes the device only while it still belongs to the connection going away.
// KEYS[1] = presence key
// ARGV[1] = device
// ARGV[2] = connection id
// returns 1 = removed, 0 = owned by another connection or already gone
const luaOfflineDevice = `
local cur = redis.call("HGET", KEYS[1], ARGV[1])
if cur == ARGV[2] then
  redis.call("HDEL", KEYS[1], ARGV[1])
  return 1
end
return 0
`

var offlineDevice = redis.NewScript(luaOfflineDevice)

type Presence struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewPresence(rdb redis.UniversalClient, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Presence{rdb: rdb, ttl: ttl}
}

// Online records device of user as served by connection connID.
func (p *Presence) Online(ctx context.Context, user, device string, connID uint64) error {
	key := presenceKey(user)
	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, key, device, strconv.FormatUint(connID, 10))
	pipe.Expire(ctx, key, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "presence online user=%s", user)
	}
	return nil
}

// Offline removes device of user unless a newer connection took it over.
func (p *Presence) Offline(ctx context.Context, user, device string, connID uint64) error {
	err := offlineDevice.Run(ctx, p.rdb, []string{presenceKey(user)}, device, strconv.FormatUint(connID, 10)).Err()
	if err != nil {
		return errors.Wrapf(err, "presence offline user=%s", user)
	}
	return nil
}

// Devices returns the online devices of user and their connection ids.
func (p *Presence) Devices(ctx context.Context, user string) (map[string]uint64, error) {
	vals, err := p.rdb.HGetAll(ctx, presenceKey(user)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "presence lookup user=%s", user)
	}
	out := make(map[string]uint64, len(vals))
	for dev, v := range vals {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			continue
		}
		out[dev] = id
	}
	return out, nil
}
