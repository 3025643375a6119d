package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopStorageLogger struct{}

func (nopStorageLogger) Info(msg string, args ...interface{})  {}
func (nopStorageLogger) Warn(msg string, args ...interface{})  {}
func (nopStorageLogger) Error(msg string, args ...interface{}) {}

func newTestSQLiteStorage(t *testing.T) *SQLiteConfigStorage {
	t.Helper()
	s, err := NewSQLiteConfigStorage(":memory:", nopStorageLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteConfigStorage_SaveAndLoadRoundTrips(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	cfg := &Config{Profile: ProfileLite}
	cfg.Storage.Backend = StorageBackendFilesystem
	cfg.Storage.FilesystemPath = ":memory:"

	version, err := s.Save(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	loaded, err := s.Load(ctx, version)
	require.NoError(t, err)
	assert.Equal(t, cfg.Profile, loaded.Profile)
	assert.Equal(t, cfg.Storage.Backend, loaded.Storage.Backend)
}

func TestSQLiteConfigStorage_VersionsAreMonotonic(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	v1, err := s.Save(ctx, &Config{Profile: ProfileLite})
	require.NoError(t, err)
	v2, err := s.Save(ctx, &Config{Profile: ProfileStandard})
	require.NoError(t, err)
	assert.Greater(t, v2, v1)

	latest, err := s.GetLatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2, latest)
}

func TestSQLiteConfigStorage_LoadMissingVersionErrors(t *testing.T) {
	s := newTestSQLiteStorage(t)
	_, err := s.Load(context.Background(), 999)
	assert.Error(t, err)
}

func TestSQLiteConfigStorage_BackupAndHistory(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	cfg := &Config{Profile: ProfileLite}
	_, err := s.Save(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, s.Backup(ctx, cfg))

	history, err := s.GetHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "api", history[0].Source)
}

func TestSQLiteConfigStorage_SaveAuditLog(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	err := s.SaveAuditLog(ctx, &AuditLogEntry{
		Version: 1,
		Action:  "create",
		Sections: []string{"server", "database"},
		Success: true,
	})
	require.NoError(t, err)
}

func TestSQLiteLockManager_AcquireConflictsAndReleases(t *testing.T) {
	s := newTestSQLiteStorage(t)
	lm := NewSQLiteLockManager(s, nopStorageLogger{})
	ctx := context.Background()

	lock, err := lm.Acquire(ctx, "config:update", time.Minute)
	require.NoError(t, err)
	assert.True(t, lock.IsHeld())

	_, err = lm.Acquire(ctx, "config:update", time.Minute)
	assert.Error(t, err)

	require.NoError(t, lock.Release(ctx))

	lock2, err := lm.Acquire(ctx, "config:update", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, lock2.Release(ctx))
}
