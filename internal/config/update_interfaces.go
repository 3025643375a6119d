package config

import (
	"context"
	"time"
)

// This file defines the contracts the dynamic hot-reload pipeline is
// built from: ConfigUpdateService drives validate → diff → apply →
// reload; ConfigStorage and LockManager back it with persistence and
// cross-process mutual exclusion; ConfigValidator and ConfigComparator
// do the validation and diffing; Reloadable/ConfigReloader let
// individual components (the log level, a registered Reloadable
// adapter around a DB pool, etc.) opt into being reloaded without the
// pipeline knowing their internals.

// ConfigUpdateService validates, diffs, atomically applies, and hot
// reloads a new configuration. See DefaultConfigUpdateService for the
// 4-phase implementation (validate, diff, apply, reload).
type ConfigUpdateService interface {
	// UpdateConfig runs the full validate/diff/apply/reload pipeline.
	// opts.DryRun stops after diff calculation without touching
	// storage or live components. Returns *ValidationError on phase 1
	// failure, *ConflictError if the distributed lock couldn't be
	// acquired, or a plain error for storage/reload failures.
	UpdateConfig(ctx context.Context, configMap map[string]interface{}, opts UpdateOptions) (*UpdateResult, error)

	// RollbackConfig re-applies a prior version as a new version (never
	// rewinds the version counter), running the same validate/apply/
	// reload pipeline as UpdateConfig.
	RollbackConfig(ctx context.Context, version int64) (*UpdateResult, error)

	// GetHistory returns up to limit versions, most recent first.
	// limit == 0 returns all of them.
	GetHistory(ctx context.Context, limit int) ([]*ConfigVersion, error)

	// GetCurrentVersion returns the version currently applied.
	GetCurrentVersion() int64

	// GetCurrentConfig returns the configuration currently applied.
	GetCurrentConfig() *Config
}

// ConfigStorage persists configuration versions, backups, and the
// audit trail. Versions must be monotonically increasing even under
// concurrent Save calls; see PostgreSQLConfigStorage and
// SQLiteConfigStorage for the two backends this repo ships.
type ConfigStorage interface {
	// Save persists cfg as a new version and returns that version
	// number.
	Save(ctx context.Context, cfg *Config) (version int64, err error)

	// Load returns the configuration saved at version, or an error if
	// that version doesn't exist.
	Load(ctx context.Context, version int64) (*Config, error)

	// GetLatestVersion returns the highest saved version, or 0 if
	// nothing has been saved yet.
	GetLatestVersion(ctx context.Context) (int64, error)

	// Backup snapshots cfg before a risky change is applied, as a
	// manual-recovery fallback if an automated rollback also fails.
	// A Backup failure is logged but never fails the update itself.
	Backup(ctx context.Context, cfg *Config) error

	// GetHistory returns up to limit versions, most recent first, each
	// with the config exactly as it was saved (secrets are not redacted).
	GetHistory(ctx context.Context, limit int) ([]*ConfigVersion, error)

	// SaveAuditLog appends an audit entry. A write failure here is
	// logged as a warning, never propagated to the caller driving the
	// update.
	SaveAuditLog(ctx context.Context, entry *AuditLogEntry) error
}

// ConfigValidator runs the update pipeline's validation phase: schema/
// type checks plus the business and cross-field rules a plain struct
// tag can't express.
type ConfigValidator interface {
	// Validate returns every validation error found (it does not stop
	// at the first one); sections, if non-empty, limits validation to
	// those top-level keys.
	Validate(cfg *Config, sections []string) []ValidationErrorDetail

	// ValidatePartial is Validate scoped to sections, including any
	// cross-field rule whose other half lives outside sections.
	ValidatePartial(cfg *Config, sections []string) []ValidationErrorDetail

	// ValidateDiff is an additional safety pass over a pre-calculated
	// diff: it can reject a structurally valid change that is still
	// dangerous (e.g. lowering max_connections below what's active).
	ValidateDiff(oldCfg *Config, newCfg *Config, diff *ConfigDiff) []ValidationErrorDetail
}

// Reloadable is implemented by anything that wants to react to a
// config change without DefaultConfigReloader knowing its internals —
// see LogLevelReloadable for the simplest example in this repo: Reload
// no-ops if nothing it cares about changed, swaps in the new value
// atomically, and never blocks past its ctx deadline.
type Reloadable interface {
	// Reload applies cfg. Thread-safe; may be invoked concurrently
	// with other components' Reload calls but never concurrently with
	// itself. A no-op on an unchanged config should return quickly.
	Reload(ctx context.Context, cfg *Config) error

	// Name identifies the component in logs, metrics labels, and the
	// reloader's affected-components filter.
	Name() string

	// IsCritical reports whether a failed Reload here should roll the
	// whole config update back, versus just logging a warning and
	// moving on.
	IsCritical() bool
}

// ConfigReloader fans a config change out to every registered
// Reloadable in parallel and aggregates the results.
type ConfigReloader interface {
	// Register adds component to the reload set. Safe to call multiple
	// times for components registered during startup, in any order.
	Register(component Reloadable)

	// Unregister removes componentName from the reload set; a no-op if
	// it was never registered.
	Unregister(componentName string)

	// ReloadAll reloads affectedComponents (or everything registered,
	// if nil) in parallel under ctx's deadline and returns one
	// ReloadError per failure.
	ReloadAll(ctx context.Context, cfg *Config, affectedComponents []string) []ReloadError

	// GetRegisteredComponents lists every currently-registered
	// component name.
	GetRegisteredComponents() []string
}

// LockManager hands out a distributed, TTL-bounded mutual-exclusion
// lock so only one process applies a config update at a time.
// PostgreSQLLockManager (update_storage.go) and SQLiteLockManager
// (sqlite_storage.go) implement it, each with a row-per-lock table.
type LockManager interface {
	// Acquire takes key for ttl, or returns an error if it is already
	// held; the SQL-table managers in this package try once and do not
	// wait for it to be freed. The caller must Release the returned
	// Lock; it also expires after ttl if never released.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held distributed lock.
type Lock interface {
	// Release gives the lock up. Idempotent and safe to call more than
	// once; a failure here is logged, not fatal, since the lock still
	// expires on its own.
	Release(ctx context.Context) error

	// Renew extends the lock's TTL; callers holding it for a long
	// operation should call this roughly every ttl/2.
	Renew(ctx context.Context, ttl time.Duration) error

	// IsHeld reports whether the lock is still ours. Does not renew it.
	IsHeld() bool
}

// ConfigComparator calculates the diff between two configurations and
// classifies it.
type ConfigComparator interface {
	// Compare deep-diffs oldCfg against newCfg, scoped to sections if
	// non-empty, with secrets sanitized in the result.
	Compare(oldCfg *Config, newCfg *Config, sections []string) (*ConfigDiff, error)

	// IdentifyAffectedComponents maps a diff's changed top-level
	// sections to the Reloadable names that care about them.
	IdentifyAffectedComponents(diff *ConfigDiff) []string

	// IsCriticalChange reports whether diff touches a field that can't
	// safely apply without a restart or a connection drop (e.g.
	// server.port, database.host).
	IsCriticalChange(diff *ConfigDiff) bool
}
