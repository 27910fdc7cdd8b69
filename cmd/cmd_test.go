package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"audioshare/cache"
	"audioshare/config"
	"audioshare/core/media"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintRoots(t *testing.T) {
	base := t.TempDir()
	music := filepath.Join(base, "music")
	require.NoError(t, os.MkdirAll(filepath.Join(music, "album"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(music, "album", "a.mp3"), make([]byte, 2048), 0644))

	reg, err := media.NewRegistry(music+":My Music,"+filepath.Join(base, "gone")+":Gone", media.RegistryOptions{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printRoots(context.Background(), &out, reg, false, ""))
	assert.Contains(t, out.String(), "SLUG")
	assert.Contains(t, out.String(), "my-music")
	assert.Contains(t, out.String(), "local")
	assert.NotContains(t, out.String(), "FILES")

	out.Reset()
	require.NoError(t, printRoots(context.Background(), &out, reg, true, ""))
	assert.Contains(t, out.String(), "2.0 KB")
	assert.Contains(t, out.String(), "error")
}

func TestNewCounterStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Disabled", func(t *testing.T) {
		store, client, err := newCounterStore(ctx, &config.Config{RateLimitEnabled: false})
		require.NoError(t, err)
		assert.Nil(t, store)
		assert.Nil(t, client)
	})

	t.Run("Memory", func(t *testing.T) {
		store, client, err := newCounterStore(ctx, &config.Config{RateLimitEnabled: true, RateLimitStore: "memory"})
		require.NoError(t, err)
		assert.IsType(t, &cache.MemoryCounterStore{}, store)
		assert.Nil(t, client)
	})

	t.Run("Redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port, err := net.SplitHostPort(mr.Addr())
		require.NoError(t, err)

		store, client, err := newCounterStore(ctx, &config.Config{
			RateLimitEnabled: true,
			RateLimitStore:   "redis",
			RedisHost:        host,
			RedisPort:        port,
		})
		require.NoError(t, err)
		require.NotNil(t, client)
		defer client.Close()
		assert.IsType(t, &cache.RedisCounterStore{}, store)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, _, err := newCounterStore(ctx, &config.Config{RateLimitEnabled: true, RateLimitStore: "etcd"})
		assert.Error(t, err)
	})
}

func TestNewRootMonitor_CheckedBeforeServing(t *testing.T) {
	dir := t.TempDir()
	reg, err := media.NewRegistry(dir+":Library", media.RegistryOptions{})
	require.NoError(t, err)

	monitor := newRootMonitor(context.Background(), reg)
	assert.True(t, monitor.AnyAvailable())
	require.Len(t, monitor.Status(), 1)
	assert.True(t, monitor.Status()[0].Available)
}
