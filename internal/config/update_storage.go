package config

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLConfigStorage backs ConfigStorage with a pgx pool: every
// Save runs inside a transaction so the version counter and the row
// insert commit together or not at all.
type PostgreSQLConfigStorage struct {
	pool   *pgxpool.Pool
	logger interface {
		Info(msg string, args ...interface{})
		Warn(msg string, args ...interface{})
		Error(msg string, args ...interface{})
	}
}

// NewPostgreSQLConfigStorage wraps pool; logger only needs Info/Warn/
// Error, so *slog.Logger satisfies it directly.
func NewPostgreSQLConfigStorage(pool *pgxpool.Pool, logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}) *PostgreSQLConfigStorage {
	return &PostgreSQLConfigStorage{
		pool:   pool,
		logger: logger,
	}
}

// Save inserts cfg as the next version inside a transaction.
func (s *PostgreSQLConfigStorage) Save(ctx context.Context, cfg *Config) (int64, error) {
	startTime := time.Now()

	// Convert config to JSON
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config: %w", err)
	}

	// Calculate hash
	hash, err := calculateHash(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate hash: %w", err)
	}

	// Begin transaction
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback if not committed

	// Get current max version
	var currentVersion int64
	err = tx.QueryRow(ctx, "SELECT get_latest_config_version()").Scan(&currentVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest version: %w", err)
	}

	// Insert new version
	var newVersion int64
	query := `
		INSERT INTO config_versions (config, hash, created_by, source, description, previous_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING version
	`
	err = tx.QueryRow(ctx, query,
		configJSON,
		hash,
		"api",
		"api",
		"Config update via API",
		currentVersion,
		time.Now(),
	).Scan(&newVersion)

	if err != nil {
		return 0, fmt.Errorf("failed to insert config version: %w", err)
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	duration := time.Since(startTime)
	s.logger.Info("config saved successfully",
		"version", newVersion,
		"hash", hash[:8]+"...",
		"duration_ms", duration.Milliseconds(),
	)

	return newVersion, nil
}

// Load fetches the config stored at version.
func (s *PostgreSQLConfigStorage) Load(ctx context.Context, version int64) (*Config, error) {
	startTime := time.Now()

	query := `
		SELECT config
		FROM config_versions
		WHERE version = $1
	`

	var configJSON []byte
	err := s.pool.QueryRow(ctx, query, version).Scan(&configJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("version %d not found", version)
		}
		return nil, fmt.Errorf("failed to load config version %d: %w", version, err)
	}

	// Unmarshal config
	var cfg Config
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	duration := time.Since(startTime)
	s.logger.Info("config loaded successfully",
		"version", version,
		"duration_ms", duration.Milliseconds(),
	)

	return &cfg, nil
}

// GetLatestVersion calls the get_latest_config_version() SQL function.
func (s *PostgreSQLConfigStorage) GetLatestVersion(ctx context.Context) (int64, error) {
	var version int64
	err := s.pool.QueryRow(ctx, "SELECT get_latest_config_version()").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest version: %w", err)
	}

	return version, nil
}

// Backup upserts a snapshot of cfg under the current version.
func (s *PostgreSQLConfigStorage) Backup(ctx context.Context, cfg *Config) error {
	// Get current version
	currentVersion, err := s.GetLatestVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	// Convert config to JSON
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Calculate hash
	hash, err := calculateHash(cfg)
	if err != nil {
		return fmt.Errorf("failed to calculate hash: %w", err)
	}

	// Insert backup
	query := `
		INSERT INTO config_backups (version, config, hash, reason, backed_up_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (version) DO UPDATE
		SET config = EXCLUDED.config,
		    hash = EXCLUDED.hash,
		    backed_up_at = EXCLUDED.backed_up_at
	`

	_, err = s.pool.Exec(ctx, query,
		currentVersion,
		configJSON,
		hash,
		"pre-update",
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	s.logger.Info("config backup created",
		"version", currentVersion,
		"hash", hash[:8]+"...",
	)

	return nil
}

// GetHistory returns up to limit versions, most recent first.
func (s *PostgreSQLConfigStorage) GetHistory(ctx context.Context, limit int) ([]*ConfigVersion, error) {
	query := `
		SELECT version, config, hash, created_at, created_by, source, description, previous_version
		FROM config_versions
		ORDER BY version DESC
	`

	// Add limit if specified
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	versions := make([]*ConfigVersion, 0)
	for rows.Next() {
		var v ConfigVersion
		var configJSON []byte
		var previousVersion *int64

		err := rows.Scan(
			&v.Version,
			&configJSON,
			&v.Hash,
			&v.CreatedAt,
			&v.CreatedBy,
			&v.Source,
			&v.Description,
			&previousVersion,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		// Unmarshal config
		if err := json.Unmarshal(configJSON, &v.Config); err != nil {
			s.logger.Warn("failed to unmarshal config for version",
				"version", v.Version,
				"error", err,
			)
			continue
		}

		if previousVersion != nil {
			v.PreviousVersion = *previousVersion
		}

		versions = append(versions, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	s.logger.Info("config history retrieved",
		"count", len(versions),
		"limit", limit,
	)

	return versions, nil
}

// SaveAuditLog inserts entry into the audit trail.
func (s *PostgreSQLConfigStorage) SaveAuditLog(ctx context.Context, entry *AuditLogEntry) error {
	// Convert diff to JSON
	var diffJSON []byte
	var err error
	if entry.Diff != nil {
		diffJSON, err = json.Marshal(entry.Diff)
		if err != nil {
			return fmt.Errorf("failed to marshal diff: %w", err)
		}
	}

	query := `
		INSERT INTO config_audit_log (
			version, action, user_id, ip_address, user_agent,
			diff, sections, dry_run, success, error_message, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		entry.Version,
		entry.Action,
		entry.UserID,
		entry.IPAddress,
		entry.UserAgent,
		diffJSON,
		entry.Sections,
		entry.DryRun,
		entry.Success,
		entry.ErrorMessage,
		entry.DurationMS,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}

	s.logger.Info("audit log saved",
		"version", entry.Version,
		"action", entry.Action,
		"success", entry.Success,
	)

	return nil
}

// PostgreSQLLockManager implements LockManager with a row-per-lock
// table rather than pg_advisory_lock, so a held lock survives across
// pool connections and carries its own expiry.
type PostgreSQLLockManager struct {
	pool   *pgxpool.Pool
	logger interface {
		Info(msg string, args ...interface{})
		Warn(msg string, args ...interface{})
		Error(msg string, args ...interface{})
	}
}

// NewPostgreSQLLockManager wraps pool for distributed locking.
func NewPostgreSQLLockManager(pool *pgxpool.Pool, logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}) *PostgreSQLLockManager {
	return &PostgreSQLLockManager{
		pool:   pool,
		logger: logger,
	}
}

// Acquire inserts a lock row for key, failing if an unexpired one
// already exists.
func (m *PostgreSQLLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	// Clear any expired lock before attempting to take it.
	if _, err := m.pool.Exec(ctx, "DELETE FROM config_locks WHERE lock_key = $1 AND expires_at <= NOW()", key); err != nil {
		return nil, fmt.Errorf("failed to clear expired lock: %w", err)
	}

	// Insert lock record with expiry
	query := `
		INSERT INTO config_locks (lock_key, holder_id, acquired_at, expires_at, purpose)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lock_key) DO NOTHING
		RETURNING lock_key
	`

	holderID := fmt.Sprintf("instance-%d", time.Now().UnixNano())
	expiresAt := time.Now().Add(ttl)

	var lockKey string
	err := m.pool.QueryRow(ctx, query, key, holderID, time.Now(), expiresAt, "config_update").Scan(&lockKey)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Lock already held by another process
			return nil, &ConflictError{
				Message: fmt.Sprintf("lock '%s' already held by another process", key),
			}
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	m.logger.Info("lock acquired",
		"key", key,
		"holder_id", holderID,
		"ttl", ttl,
	)

	return &PostgreSQLLock{
		pool:      m.pool,
		key:       key,
		holderID:  holderID,
		expiresAt: expiresAt,
		logger:    m.logger,
	}, nil
}

// PostgreSQLLock implements Lock interface
type PostgreSQLLock struct {
	pool      *pgxpool.Pool
	key       string
	holderID  string
	expiresAt time.Time
	logger    interface {
		Info(msg string, args ...interface{})
		Warn(msg string, args ...interface{})
		Error(msg string, args ...interface{})
	}
}

// Release deletes the lock row this holder owns.
func (l *PostgreSQLLock) Release(ctx context.Context) error {
	query := `DELETE FROM config_locks WHERE lock_key = $1 AND holder_id = $2`
	_, err := l.pool.Exec(ctx, query, l.key, l.holderID)
	if err != nil {
		l.logger.Warn("failed to release lock (will auto-expire)",
			"key", l.key,
			"error", err,
		)
		return err
	}

	l.logger.Info("lock released", "key", l.key)
	return nil
}

// Renew pushes the lock row's expiry out by ttl.
func (l *PostgreSQLLock) Renew(ctx context.Context, ttl time.Duration) error {
	newExpiresAt := time.Now().Add(ttl)
	query := `
		UPDATE config_locks
		SET expires_at = $1
		WHERE lock_key = $2 AND holder_id = $3 AND expires_at > NOW()
		RETURNING lock_key
	`

	var lockKey string
	err := l.pool.QueryRow(ctx, query, newExpiresAt, l.key, l.holderID).Scan(&lockKey)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("lock expired or not held")
		}
		return fmt.Errorf("failed to renew lock: %w", err)
	}

	l.expiresAt = newExpiresAt
	l.logger.Info("lock renewed", "key", l.key, "new_ttl", ttl)
	return nil
}

// IsHeld reports whether expiresAt is still in the future.
func (l *PostgreSQLLock) IsHeld() bool {
	return time.Now().Before(l.expiresAt)
}

var _ ConfigStorage = (*PostgreSQLConfigStorage)(nil)

var _ LockManager = (*PostgreSQLLockManager)(nil)

var _ Lock = (*PostgreSQLLock)(nil)
