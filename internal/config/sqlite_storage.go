package config

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// ================================================================================
// SQLite Configuration Storage
// ================================================================================
//
// Backs the "lite" deployment profile's storage.backend=filesystem option:
// a single-node ConfigStorage implementation with no external database
// dependency, for dev/test and single-instance deployments. Same
// ConfigStorage contract as PostgreSQLConfigStorage; schema managed by
// goose migrations embedded in the binary.

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

type storageLogger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// SQLiteConfigStorage implements ConfigStorage using an embedded SQLite
// database file.
type SQLiteConfigStorage struct {
	db     *sql.DB
	logger storageLogger
}

// NewSQLiteConfigStorage opens (creating if needed) a SQLite database at
// path using the pure-Go modernc.org/sqlite driver, runs pending goose
// migrations, and returns a ready ConfigStorage. path may be ":memory:"
// for tests.
func NewSQLiteConfigStorage(path string, logger storageLogger) (*SQLiteConfigStorage, error) {
	return newSQLiteConfigStorage("sqlite", path, logger)
}

// NewSQLiteConfigStorageCGO is the cgo-backed variant, using
// mattn/go-sqlite3 instead of modernc.org/sqlite. Prefer
// NewSQLiteConfigStorage unless cgo is already a build requirement and
// the mattn driver's broader SQLite extension support is needed.
func NewSQLiteConfigStorageCGO(path string, logger storageLogger) (*SQLiteConfigStorage, error) {
	return newSQLiteConfigStorage("sqlite3", path, logger)
}

func newSQLiteConfigStorage(driverName, path string, logger storageLogger) (*SQLiteConfigStorage, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite serializes writers; avoid SQLITE_BUSY under our own pool

	goose.SetBaseFS(sqliteMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run sqlite migrations: %w", err)
	}

	logger.Info("sqlite config storage ready", "driver", driverName, "path", path)
	return &SQLiteConfigStorage{db: db, logger: logger}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteConfigStorage) Close() error {
	return s.db.Close()
}

// Save implements ConfigStorage.Save
func (s *SQLiteConfigStorage) Save(ctx context.Context, cfg *Config) (int64, error) {
	startTime := time.Now()

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config: %w", err)
	}

	hash, err := calculateHash(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate hash: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM config_versions").Scan(&currentVersion); err != nil {
		return 0, fmt.Errorf("failed to get latest version: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO config_versions (config, hash, created_by, source, description, previous_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, configJSON, hash, "api", "api", "Config update via API", currentVersion, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert config version: %w", err)
	}
	newVersion, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("config saved successfully",
		"version", newVersion,
		"hash", hash[:8]+"...",
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return newVersion, nil
}

// Load implements ConfigStorage.Load
func (s *SQLiteConfigStorage) Load(ctx context.Context, version int64) (*Config, error) {
	startTime := time.Now()

	var configJSON []byte
	err := s.db.QueryRowContext(ctx, "SELECT config FROM config_versions WHERE version = ?", version).Scan(&configJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("version %d not found", version)
		}
		return nil, fmt.Errorf("failed to load config version %d: %w", version, err)
	}

	var cfg Config
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	s.logger.Info("config loaded successfully",
		"version", version,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return &cfg, nil
}

// GetLatestVersion implements ConfigStorage.GetLatestVersion
func (s *SQLiteConfigStorage) GetLatestVersion(ctx context.Context) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM config_versions").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest version: %w", err)
	}
	return version, nil
}

// Backup implements ConfigStorage.Backup
func (s *SQLiteConfigStorage) Backup(ctx context.Context, cfg *Config) error {
	currentVersion, err := s.GetLatestVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	hash, err := calculateHash(cfg)
	if err != nil {
		return fmt.Errorf("failed to calculate hash: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config_backups (version, config, hash, reason, backed_up_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (version) DO UPDATE SET
			config = excluded.config,
			hash = excluded.hash,
			backed_up_at = excluded.backed_up_at
	`, currentVersion, configJSON, hash, "pre-update", time.Now())
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	s.logger.Info("config backup created", "version", currentVersion, "hash", hash[:8]+"...")
	return nil
}

// GetHistory implements ConfigStorage.GetHistory
func (s *SQLiteConfigStorage) GetHistory(ctx context.Context, limit int) ([]*ConfigVersion, error) {
	query := `
		SELECT version, config, hash, created_at, created_by, source, description, previous_version
		FROM config_versions
		ORDER BY version DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	versions := make([]*ConfigVersion, 0)
	for rows.Next() {
		var v ConfigVersion
		var configJSON []byte
		var previousVersion sql.NullInt64

		if err := rows.Scan(
			&v.Version, &configJSON, &v.Hash, &v.CreatedAt, &v.CreatedBy, &v.Source,
			&v.Description, &previousVersion,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal(configJSON, &v.Config); err != nil {
			s.logger.Warn("failed to unmarshal config for version", "version", v.Version, "error", err)
			continue
		}
		if previousVersion.Valid {
			v.PreviousVersion = previousVersion.Int64
		}

		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	s.logger.Info("config history retrieved", "count", len(versions), "limit", limit)
	return versions, nil
}

// SaveAuditLog implements ConfigStorage.SaveAuditLog
func (s *SQLiteConfigStorage) SaveAuditLog(ctx context.Context, entry *AuditLogEntry) error {
	var diffJSON []byte
	var err error
	if entry.Diff != nil {
		diffJSON, err = json.Marshal(entry.Diff)
		if err != nil {
			return fmt.Errorf("failed to marshal diff: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config_audit_log (
			version, action, user_id, ip_address, user_agent,
			diff, sections, dry_run, success, error_message, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.Version, entry.Action, entry.UserID, entry.IPAddress, entry.UserAgent,
		diffJSON, strings.Join(entry.Sections, ","), entry.DryRun, entry.Success,
		entry.ErrorMessage, entry.DurationMS, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}

	s.logger.Info("audit log saved", "version", entry.Version, "action", entry.Action, "success", entry.Success)
	return nil
}

// ================================================================================
// Lock Management (SQLite-based)
// ================================================================================

// SQLiteLockManager implements LockManager using a row in config_locks as
// an advisory lock. Intended for the single-node "lite" profile, where a
// distributed Redis lock is unavailable; not safe across multiple SQLite
// files (e.g. NFS-mounted, replicated).
type SQLiteLockManager struct {
	db     *sql.DB
	logger storageLogger
}

// NewSQLiteLockManager creates a new SQLite-backed lock manager sharing
// storage's database handle.
func NewSQLiteLockManager(storage *SQLiteConfigStorage, logger storageLogger) *SQLiteLockManager {
	return &SQLiteLockManager{db: storage.db, logger: logger}
}

// Acquire implements LockManager.Acquire
func (m *SQLiteLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	holderID := fmt.Sprintf("instance-%d", time.Now().UnixNano())
	now := time.Now()
	expiresAt := now.Add(ttl)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Clear any expired lock before attempting to take it.
	if _, err := tx.ExecContext(ctx, "DELETE FROM config_locks WHERE lock_key = ? AND expires_at <= ?", key, now); err != nil {
		return nil, fmt.Errorf("failed to clear expired lock: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO config_locks (lock_key, holder_id, acquired_at, expires_at, purpose)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM config_locks WHERE lock_key = ?)
	`, key, holderID, now, expiresAt, "config_update", key)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read lock result: %w", err)
	}
	if affected == 0 {
		return nil, &ConflictError{Message: fmt.Sprintf("lock '%s' already held by another process", key)}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lock acquisition: %w", err)
	}

	m.logger.Info("lock acquired", "key", key, "holder_id", holderID, "ttl", ttl)
	return &sqliteLock{db: m.db, key: key, holderID: holderID, expiresAt: expiresAt, logger: m.logger}, nil
}

type sqliteLock struct {
	db        *sql.DB
	key       string
	holderID  string
	expiresAt time.Time
	logger    storageLogger
}

func (l *sqliteLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "DELETE FROM config_locks WHERE lock_key = ? AND holder_id = ?", l.key, l.holderID)
	if err != nil {
		l.logger.Warn("failed to release lock (will auto-expire)", "key", l.key, "error", err)
		return err
	}
	l.logger.Info("lock released", "key", l.key)
	return nil
}

func (l *sqliteLock) Renew(ctx context.Context, ttl time.Duration) error {
	newExpiresAt := time.Now().Add(ttl)
	res, err := l.db.ExecContext(ctx, `
		UPDATE config_locks SET expires_at = ?
		WHERE lock_key = ? AND holder_id = ? AND expires_at > ?
	`, newExpiresAt, l.key, l.holderID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to renew lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read renew result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("lock expired or not held")
	}
	l.expiresAt = newExpiresAt
	l.logger.Info("lock renewed", "key", l.key, "new_ttl", ttl)
	return nil
}

func (l *sqliteLock) IsHeld() bool {
	return time.Now().Before(l.expiresAt)
}

// Ensure SQLiteConfigStorage implements ConfigStorage interface
var _ ConfigStorage = (*SQLiteConfigStorage)(nil)

// Ensure SQLiteLockManager implements LockManager interface
var _ LockManager = (*SQLiteLockManager)(nil)

// Ensure sqliteLock implements Lock interface
var _ Lock = (*sqliteLock)(nil)
