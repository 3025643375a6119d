package dynconfig

import (
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/infrastructure/cache"
	"github.com/packetflow/iccr/internal/infrastructure/lock"
)

func setupLockManager(t *testing.T) *lock.LockManager {
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

	return lock.NewLockManager(c.GetClient(), &lock.LockConfig{
		TTL:            time.Second,
		MaxRetries:     1,
		RetryInterval:  10 * time.Millisecond,
		AcquireTimeout: time.Second,
		ReleaseTimeout: time.Second,
		ValuePrefix:    "test",
	}, slog.Default())
}

func TestUpdateConfigWithDistributedLockStillCommits(t *testing.T) {
	s := New()
	s.UseDistributedLock(setupLockManager(t))

	_, err := s.RegisterComponentConfig("stream-1", map[string]any{"capacity": 10}, testSchema())
	require.NoError(t, err)

	rec, err := s.UpdateConfig("stream-1", map[string]any{"capacity": 20})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.EqualValues(t, 20, rec.Config["capacity"])
}

func TestRollbackConfigWithDistributedLockStillCommits(t *testing.T) {
	s := New()
	s.UseDistributedLock(setupLockManager(t))

	first, err := s.RegisterComponentConfig("stream-1", map[string]any{"capacity": 10}, testSchema())
	require.NoError(t, err)
	_, err = s.UpdateConfig("stream-1", map[string]any{"capacity": 20})
	require.NoError(t, err)

	rolled, err := s.RollbackConfig("stream-1", first.Version)
	require.NoError(t, err)
	assert.EqualValues(t, 10, rolled.Config["capacity"])
}
