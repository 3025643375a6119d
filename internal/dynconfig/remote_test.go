package dynconfig

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/infrastructure/cache"
)

func setupRemoteCache(t *testing.T) cache.Cache {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.NewRedisCache(&cache.CacheConfig{
		Addr:        mr.Addr(),
		PoolSize:    5,
		DialTimeout: time.Second,
		ReadTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestUseRemoteCachePublishesVersionOnUpdate(t *testing.T) {
	s := New()
	s.UseRemoteCache(setupRemoteCache(t))

	_, err := s.RegisterComponentConfig("stream-1", map[string]any{"capacity": 10}, testSchema())
	require.NoError(t, err)

	_, err = s.UpdateConfig("stream-1", map[string]any{"capacity": 20})
	require.NoError(t, err)

	version, found, err := s.RemoteVersion(context.Background(), "stream-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, version)
}

func TestIsStaleDetectsAheadRemoteVersion(t *testing.T) {
	remote := setupRemoteCache(t)

	s := New()
	s.UseRemoteCache(remote)
	_, err := s.RegisterComponentConfig("stream-1", map[string]any{"capacity": 10}, testSchema())
	require.NoError(t, err)

	// Simulate a sibling process publishing a newer version directly.
	require.NoError(t, remote.Set(context.Background(), remoteVersionKey("stream-1"), 5, time.Hour))

	stale, err := s.IsStale(context.Background(), "stream-1")
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestIsStaleWithoutRemoteCacheIsNeverStale(t *testing.T) {
	s := New()
	_, err := s.RegisterComponentConfig("stream-1", map[string]any{"capacity": 10}, testSchema())
	require.NoError(t, err)

	stale, err := s.IsStale(context.Background(), "stream-1")
	require.NoError(t, err)
	assert.False(t, stale)
}
