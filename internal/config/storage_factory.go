package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewStorageBackend builds the ConfigStorage/LockManager pair the
// deployment profile's Storage.Backend calls for: an embedded SQLite
// database for StorageBackendFilesystem (the "lite" profile's default),
// or a pgx connection pool against the configured Postgres instance for
// StorageBackendPostgres. The returned close func releases whatever
// backing connection was opened; callers should defer it.
//
// A nil ConfigStorage/LockManager pair with a nil error means no backend
// was configured (Storage.Backend is empty) — hot reload then runs
// without persisted version history or distributed locking, which is
// fine for a single-process deployment.
func NewStorageBackend(ctx context.Context, cfg *Config, log *slog.Logger) (ConfigStorage, LockManager, func() error, error) {
	switch cfg.Storage.Backend {
	case StorageBackendFilesystem:
		path := cfg.Storage.FilesystemPath
		if path == "" {
			path = "packetflow-config.db"
		}
		storage, err := NewSQLiteConfigStorage(path, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite config storage: %w", err)
		}
		lockMgr := NewSQLiteLockManager(storage, log)
		return storage, lockMgr, storage.Close, nil

	case StorageBackendPostgres:
		dsn := cfg.Database.URL
		if dsn == "" {
			dsn = fmt.Sprintf(
				"postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password,
				cfg.Database.Host, cfg.Database.Port,
				cfg.Database.Database, cfg.Database.SSLMode,
			)
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres config storage: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("ping postgres config storage: %w", err)
		}
		storage := NewPostgreSQLConfigStorage(pool, log)
		lockMgr := NewPostgreSQLLockManager(pool, log)
		closeFn := func() error {
			pool.Close()
			return nil
		}
		return storage, lockMgr, closeFn, nil

	default:
		return nil, nil, func() error { return nil }, nil
	}
}
