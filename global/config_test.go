package global

import (
	"context"
	"testing"

	"BeepPager/global/config"
	"BeepPager/tools/ids"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConfigAllWithoutBackends(t *testing.T) {
	cfg := config.Default()
	cfg.NodeID = 7

	st, err := ConfigAll(context.Background(), cfg)
	require.NoError(t, err)
	defer st.Close()

	require.Len(t, st.Options, 5)
	require.Equal(t, int64(7), ids.Node(ids.Generate()))
}

func TestConfigAllWithRedisAndAuth(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.RedisAddr = mr.Addr()
	cfg.JWTSecret = "top-secret"

	st, err := ConfigAll(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, st.Options, 8)
	st.Close()
	st.Close()
}

func TestConfigAllUnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := ConfigAll(context.Background(), cfg)
	require.Error(t, err)
}

func TestConfigAuthDisabled(t *testing.T) {
	require.Nil(t, ConfigAuth(config.Default()))
}
