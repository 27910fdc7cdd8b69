package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"audioshare/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestMemoryCounterStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCounterStore(0, time.Minute)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		c, err := s.Incr(ctx, "ip:1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, c.Count)
	}

	// 不同 key 互不影响
	c, err := s.Incr(ctx, "ip:2", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Count)

	now = now.Add(20 * time.Second)
	c, err = s.Incr(ctx, "ip:1", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 4, c.Count)
	assert.Equal(t, 40*time.Second, c.ResetIn)

	// 窗口结束后重新计数
	now = now.Add(41 * time.Second)
	c, err = s.Incr(ctx, "ip:1", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Count)
	assert.Equal(t, time.Minute, c.ResetIn)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryCounterStore_Bounded(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCounterStore(2, time.Minute)
	for _, key := range []string{"a", "b", "c"} {
		_, err := s.Incr(ctx, key, time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.Len())
}

func TestRedisCounterStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	s := NewRedisCounterStore(client)

	c, err := s.Incr(ctx, "ip:1", 30*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Count)
	assert.Equal(t, 30*time.Second, c.ResetIn)
	assert.Equal(t, 30*time.Second, mr.TTL(redisCounterPrefix+"ip:1"))

	c, err = s.Incr(ctx, "ip:1", 30*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.Count)

	mr.FastForward(31 * time.Second)
	c, err = s.Incr(ctx, "ip:1", 30*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Count)
}

func TestRedisCounterStore_Unavailable(t *testing.T) {
	mr, client := newMiniredis(t)
	s := NewRedisCounterStore(client)
	mr.Close()

	_, err := s.Incr(context.Background(), "ip:1", time.Minute)
	assert.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	ctx := context.Background()
	client, err := ConnectRedis(ctx, &config.Config{RedisHost: host, RedisPort: port})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, ProbeRedis(ctx, client))
	assert.False(t, mr.Exists(redisProbeKey))
}

func TestConnectRedis_GivesUpOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// 保留端口后立即关闭，保证连接被拒绝
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(l.Addr().String())
	require.NoError(t, l.Close())

	_, err = ConnectRedis(ctx, &config.Config{RedisHost: host, RedisPort: port})
	assert.Error(t, err)
}
