package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"BeepPager/module/protocol"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestPresenceOnlineOffline(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	p := NewPresence(rdb, time.Hour)

	require.NoError(t, p.Online(ctx, "alice", "laptop", 1))
	require.NoError(t, p.Online(ctx, "alice", "phone", 2))
	require.Equal(t, "1", mr.HGet("bp:presence:alice", "laptop"))
	require.Equal(t, time.Hour, mr.TTL("bp:presence:alice"))

	devs, err := p.Devices(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"laptop": 1, "phone": 2}, devs)

	require.NoError(t, p.Offline(ctx, "alice", "laptop", 1))
	devs, err = p.Devices(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"phone": 2}, devs)
}

func TestPresenceOfflineKeepsNewerConnection(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	p := NewPresence(rdb, 0)

	require.NoError(t, p.Online(ctx, "bob", "phone", 3))
	require.NoError(t, p.Online(ctx, "bob", "phone", 9))
	require.NoError(t, p.Offline(ctx, "bob", "phone", 3))

	devs, err := p.Devices(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"phone": 9}, devs)

	require.NoError(t, p.Offline(ctx, "nobody", "x", 1))
}

func TestArchiveAppendAndTrim(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	a := NewArchive(rdb, 3).Exact()

	for i := 1; i <= 5; i++ {
		u := protocol.Update{Pts: uint64(i), Payload: protocol.NewMessage{Sender: "alice", Contents: fmt.Sprintf("m%d", i)}}
		require.NoError(t, a.Append(ctx, "bob", u))
	}

	n, err := rdb.XLen(ctx, "bp:updates:bob").Result()
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	got, err := a.Recent(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, uint64(3), got[0].Pts)
	require.Equal(t, protocol.NewMessage{Sender: "alice", Contents: "m5"}, got[2].Payload)

	got, err = a.Recent(ctx, "nobody", 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestArchiveRejectsMissingPayload(t *testing.T) {
	_, rdb := newRedis(t)
	a := NewArchive(rdb, 10)
	require.Error(t, a.Append(context.Background(), "bob", protocol.Update{Pts: 1}))
}

func TestStoresReportRedisErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()
	ctx := context.Background()

	require.Error(t, NewPresence(rdb, 0).Online(ctx, "alice", "laptop", 1))
	require.Error(t, NewArchive(rdb, 10).Append(ctx, "alice", protocol.Update{Pts: 1, Payload: protocol.NewMessage{}}))
}
