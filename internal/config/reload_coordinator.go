package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Orchestrates the entire hot reload process from SIGHUP signal to component reload.
//
// Features:
// - 6-phase reload pipeline (load, validate, diff, apply, reload, health check)
// - Automatic rollback on critical failures
// - Distributed locking to prevent concurrent reloads
// - Comprehensive error handling and logging
//
// Performance Target: < 500ms p95 for typical reload

// ReloadCoordinator orchestrates configuration hot reload
type ReloadCoordinator struct {
	// Current configuration (atomic pointer for safe concurrent access)
	currentConfig atomic.Value // *Config

	// Config file path
	configPath string

	// Dependencies
	validator   ConfigValidator
	comparator  ConfigComparator
	reloader    *DefaultConfigReloader
	storage     ConfigStorage
	lockManager LockManager

	// State
	mu               sync.RWMutex
	lastReloadTime   time.Time
	lastReloadStatus string
	reloadVersion    int64

	// Logger
	logger *slog.Logger
}

// ReloadResult represents the result of a reload operation
type ReloadResult struct {
	Version            int64
	Success            bool
	RolledBack         bool
	ComponentsReloaded []ComponentReloadResult
	Duration           time.Duration
	Error              error
}

// ComponentReloadResult represents reload result for a single component
type ComponentReloadResult struct {
	Name     string
	Success  bool
	Duration time.Duration
	Error    error
}

// NewReloadCoordinator creates a new ReloadCoordinator
//
// Parameters:
//   - initialConfig: Initial configuration (from startup)
//   - configPath: Path to config file (for reload)
//   - validator: Config validator
//   - comparator: Config comparator (for diff)
//   - reloader: Component reloader
//   - storage: Config storage (optional, can be nil)
//   - lockManager: Distributed lock manager (optional, can be nil)
//   - logger: Structured logger
//
// Returns:
//   - *ReloadCoordinator: Initialized coordinator
func NewReloadCoordinator(
	initialConfig *Config,
	configPath string,
	validator ConfigValidator,
	comparator ConfigComparator,
	reloader *DefaultConfigReloader,
	storage ConfigStorage,
	lockManager LockManager,
	logger *slog.Logger,
) *ReloadCoordinator {
	if logger == nil {
		logger = slog.Default()
	}

	coordinator := &ReloadCoordinator{
		configPath:       configPath,
		validator:        validator,
		comparator:       comparator,
		reloader:         reloader,
		storage:          storage,
		lockManager:      lockManager,
		lastReloadTime:   time.Now(),
		lastReloadStatus: "initial",
		reloadVersion:    1,
		logger:           logger,
	}

	coordinator.currentConfig.Store(initialConfig)

	coordinator.logger.Info("reload coordinator initialized",
		"config_path", configPath,
		"version", 1,
		"storage_available", storage != nil,
		"lock_manager_available", lockManager != nil,
	)

	return coordinator
}

// ReloadFromFile reloads configuration from file (triggered by SIGHUP)
//
// This is the main entry point for hot reload. It orchestrates the entire
// 6-phase reload pipeline with proper error handling and rollback.
//
// Phases:
//  1. Load & Parse: Read config file, parse YAML/JSON
//  2. Validation: Validate new config
//  3. Diff Calculation: Compare old vs new, identify changes
//  4. Atomic Apply: Swap config atomically with locking
//  5. Component Reload: Reload affected components in parallel
//  6. Health Check: healthCheck runs no probes and always passes
//
// Performance: < 500ms p95 for typical config
//
// Parameters:
//   - ctx: Context with timeout
//   - configPath: Path to config file
//
// Returns:
//   - *ReloadResult: Reload result with details
//   - error: Error if reload failed
func (rc *ReloadCoordinator) ReloadFromFile(ctx context.Context, configPath string) (*ReloadResult, error) {
	startTime := time.Now()

	rc.logger.Info("reload from file started",
		"config_path", configPath,
		"current_version", rc.reloadVersion,
	)

	// Phase 1: LOAD & PARSE
	phaseStart := time.Now()
	newConfig, err := rc.loadAndParse(configPath)
	if err != nil {
		rc.updateReloadStatus("load_failed")
		rc.logger.Error("phase 1 (load) failed",
			"error", err,
			"duration_ms", time.Since(phaseStart).Milliseconds(),
		)
		return nil, fmt.Errorf("phase 1 (load) failed: %w", err)
	}
	rc.logger.Info("phase 1 (load) completed",
		"duration_ms", time.Since(phaseStart).Milliseconds(),
	)

	// Phase 2: VALIDATION
	phaseStart = time.Now()
	validationErrors := rc.validator.Validate(newConfig, nil)
	if len(validationErrors) > 0 {
		rc.updateReloadStatus("validation_failed")
		rc.logValidationErrors(validationErrors)
		rc.logger.Error("phase 2 (validation) failed",
			"error_count", len(validationErrors),
			"duration_ms", time.Since(phaseStart).Milliseconds(),
		)
		return nil, fmt.Errorf("phase 2 (validation) failed: %d error(s)", len(validationErrors))
	}
	rc.logger.Info("phase 2 (validation) completed",
		"duration_ms", time.Since(phaseStart).Milliseconds(),
	)

	// Phase 3: DIFF CALCULATION
	phaseStart = time.Now()
	oldConfig := rc.GetCurrentConfig()
	diff, err := rc.comparator.Compare(oldConfig, newConfig, nil)
	if err != nil {
		rc.updateReloadStatus("diff_failed")
		rc.logger.Error("phase 3 (diff) failed",
			"error", err,
			"duration_ms", time.Since(phaseStart).Milliseconds(),
		)
		return nil, fmt.Errorf("phase 3 (diff) failed: %w", err)
	}
	affectedComponents := rc.identifyAffectedComponents(diff)

	rc.logger.Info("phase 3 (diff) completed",
		"added_fields", len(diff.Added),
		"modified_fields", len(diff.Modified),
		"deleted_fields", len(diff.Deleted),
		"affected_components", affectedComponents,
		"duration_ms", time.Since(phaseStart).Milliseconds(),
	)

	// If no changes, skip reload
	if len(diff.Modified) == 0 && len(diff.Added) == 0 && len(diff.Deleted) == 0 {
		rc.logger.Info("no config changes detected, skipping reload",
			"total_duration_ms", time.Since(startTime).Milliseconds(),
		)
		return &ReloadResult{
			Version:  rc.reloadVersion,
			Success:  true,
			Duration: time.Since(startTime),
		}, nil
	}

	// Phase 4: ATOMIC APPLY
	phaseStart = time.Now()
	if err := rc.atomicApply(ctx, oldConfig, newConfig, diff); err != nil {
		rc.updateReloadStatus("apply_failed")
		rc.logger.Error("phase 4 (apply) failed",
			"error", err,
			"duration_ms", time.Since(phaseStart).Milliseconds(),
		)
		return nil, fmt.Errorf("phase 4 (apply) failed: %w", err)
	}
	rc.logger.Info("phase 4 (apply) completed",
		"new_version", rc.reloadVersion,
		"duration_ms", time.Since(phaseStart).Milliseconds(),
	)

	// Phase 5: COMPONENT RELOAD
	phaseStart = time.Now()
	componentResults := rc.reloadComponents(ctx, newConfig, affectedComponents)

	// Check for critical failures
	criticalFailed := false
	for _, result := range componentResults {
		if !result.Success && rc.isComponentCritical(result.Name) {
			criticalFailed = true
			rc.logger.Error("critical component reload failed",
				"component", result.Name,
				"error", result.Error,
			)
		}
	}

	rc.logger.Info("phase 5 (reload) completed",
		"components_reloaded", len(componentResults),
		"critical_failed", criticalFailed,
		"duration_ms", time.Since(phaseStart).Milliseconds(),
	)

	// Rollback if critical component failed
	if criticalFailed {
		rc.logger.Warn("rolling back due to critical component failure")
		if rollbackErr := rc.rollback(ctx, oldConfig); rollbackErr != nil {
			rc.logger.Error("rollback failed", "error", rollbackErr)
			rc.updateReloadStatus("rollback_failed")
			return nil, fmt.Errorf("reload failed and rollback failed: %w", rollbackErr)
		}
		rc.updateReloadStatus("rolled_back")
		return &ReloadResult{
			Version:            rc.reloadVersion,
			Success:            false,
			RolledBack:         true,
			ComponentsReloaded: componentResults,
			Duration:           time.Since(startTime),
			Error:              fmt.Errorf("critical component reload failed"),
		}, nil
	}

	// Phase 6: HEALTH CHECK
	phaseStart = time.Now()
	if err := rc.healthCheck(ctx); err != nil {
		rc.logger.Warn("health check failed after reload, rolling back", "error", err)
		if rollbackErr := rc.rollback(ctx, oldConfig); rollbackErr != nil {
			rc.logger.Error("rollback failed", "error", rollbackErr)
			rc.updateReloadStatus("rollback_failed")
			return nil, fmt.Errorf("health check failed and rollback failed: %w", rollbackErr)
		}
		rc.updateReloadStatus("rolled_back")
		return &ReloadResult{
			Version:            rc.reloadVersion,
			Success:            false,
			RolledBack:         true,
			ComponentsReloaded: componentResults,
			Duration:           time.Since(startTime),
			Error:              fmt.Errorf("health check failed"),
		}, nil
	}
	rc.logger.Info("phase 6 (health check) completed",
		"duration_ms", time.Since(phaseStart).Milliseconds(),
	)

	// SUCCESS
	rc.updateReloadStatus("success")
	duration := time.Since(startTime)

	rc.logger.Info("reload completed successfully",
		"version", rc.reloadVersion,
		"duration_ms", duration.Milliseconds(),
		"components_reloaded", len(componentResults),
	)

	return &ReloadResult{
		Version:            rc.reloadVersion,
		Success:            true,
		RolledBack:         false,
		ComponentsReloaded: componentResults,
		Duration:           duration,
	}, nil
}

// loadAndParse loads and parses configuration from file (Phase 1)
//
// Performance Target: < 50ms p95
func (rc *ReloadCoordinator) loadAndParse(configPath string) (*Config, error) {
	startTime := time.Now()

	// Read file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse using existing LoadConfig logic
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	rc.logger.Info("config loaded and parsed",
		"duration_ms", time.Since(startTime).Milliseconds(),
		"size_bytes", len(data),
		"hash", rc.calculateHash(data),
	)

	return cfg, nil
}

// atomicApply applies new configuration atomically (Phase 4)
//
// Performance Target: < 50ms p95
func (rc *ReloadCoordinator) atomicApply(
	ctx context.Context,
	oldConfig *Config,
	newConfig *Config,
	diff *ConfigDiff,
) error {
	// Acquire distributed lock (if available)
	if rc.lockManager != nil {
		lockKey := "config:reload"
		lock, err := rc.lockManager.Acquire(ctx, lockKey, 30*time.Second)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		defer lock.Release(ctx)
	}

	// Backup old config to storage (if available)
	if rc.storage != nil {
		if err := rc.storage.Backup(ctx, oldConfig); err != nil {
			rc.logger.Warn("failed to backup old config", "error", err)
			// Non-critical, continue
		}
	}

	// Atomic swap (pointer replacement)
	rc.currentConfig.Store(newConfig)

	// Increment version
	rc.mu.Lock()
	rc.reloadVersion++
	newVersion := rc.reloadVersion
	rc.mu.Unlock()

	// Write audit log (if storage available)
	if rc.storage != nil {
		rc.writeAuditLog(ctx, newVersion, diff, "sighup")
	}

	rc.logger.Info("config applied atomically",
		"new_version", newVersion,
	)

	return nil
}

// reloadComponents reloads all affected components (Phase 5)
//
// Performance Target: < 300ms p95
func (rc *ReloadCoordinator) reloadComponents(
	ctx context.Context,
	newConfig *Config,
	affectedComponents []string,
) []ComponentReloadResult {
	startTime := time.Now()

	rc.logger.Info("reloading components",
		"affected", affectedComponents,
	)

	// Call reloader (parallel execution)
	reloadErrors := rc.reloader.ReloadAll(ctx, newConfig, affectedComponents)

	// Convert to ComponentReloadResult
	results := make([]ComponentReloadResult, 0, len(affectedComponents))
	for _, compName := range affectedComponents {
		result := ComponentReloadResult{
			Name:    compName,
			Success: true,
		}

		// Find error for this component
		for _, reloadErr := range reloadErrors {
			if reloadErr.Component == compName {
				result.Success = false
				result.Error = fmt.Errorf("%s", reloadErr.Error)
				result.Duration = reloadErr.Duration
				break
			}
		}

		results = append(results, result)
	}

	rc.logger.Info("components reload completed",
		"total_duration_ms", time.Since(startTime).Milliseconds(),
		"success_count", rc.countSuccessful(results),
		"failure_count", len(results)-rc.countSuccessful(results),
	)

	return results
}

// rollback rolls back to old configuration
//
// Performance Target: < 200ms p95
func (rc *ReloadCoordinator) rollback(ctx context.Context, oldConfig *Config) error {
	rc.logger.Warn("initiating rollback to previous configuration")

	// Atomic swap back to old config
	rc.currentConfig.Store(oldConfig)

	// Decrement version
	rc.mu.Lock()
	rc.reloadVersion--
	rc.mu.Unlock()

	// Reload all components with old config
	reloadErrors := rc.reloader.ReloadAll(ctx, oldConfig, nil)
	if len(reloadErrors) > 0 {
		return fmt.Errorf("rollback reload failed: %d component(s) failed", len(reloadErrors))
	}

	rc.logger.Info("rollback successful")
	return nil
}

// healthCheck performs health check after reload (Phase 6)
//
// Performance Target: < 50ms p95
func (rc *ReloadCoordinator) healthCheck(ctx context.Context) error {
	// TODO: Implement comprehensive health check
	// - Check database connectivity
	// - Check Redis connectivity
	// - Verify component registry operational
	// - Check critical services

	rc.logger.Info("health check passed")
	return nil
}

// GetCurrentConfig returns current configuration (thread-safe)
func (rc *ReloadCoordinator) GetCurrentConfig() *Config {
	return rc.currentConfig.Load().(*Config)
}

// GetReloadStatus returns current reload status
func (rc *ReloadCoordinator) GetReloadStatus() (version int64, status string, lastReload time.Time) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.reloadVersion, rc.lastReloadStatus, rc.lastReloadTime
}

// updateReloadStatus updates reload status
func (rc *ReloadCoordinator) updateReloadStatus(status string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.lastReloadStatus = status
	rc.lastReloadTime = time.Now()
}

// identifyAffectedComponents identifies components affected by config changes
func (rc *ReloadCoordinator) identifyAffectedComponents(diff *ConfigDiff) []string {
	affected := make(map[string]bool)

	// Check which sections changed
	for field := range diff.Modified {
		if startsWith(field, "registry") {
			affected["registry"] = true
		}
		if startsWith(field, "monitoring") {
			affected["monitoring"] = true
		}
		if startsWith(field, "dashboard") {
			affected["dashboard"] = true
		}
		if startsWith(field, "database") {
			affected["database"] = true
		}
		if startsWith(field, "redis") {
			affected["redis"] = true
		}
		if startsWith(field, "log") {
			affected["log_level"] = true
		}
	}

	// Convert to slice
	components := make([]string, 0, len(affected))
	for comp := range affected {
		components = append(components, comp)
	}

	return components
}

// isComponentCritical checks if component is critical
func (rc *ReloadCoordinator) isComponentCritical(componentName string) bool {
	// Critical components that must succeed for reload to be considered successful
	criticalComponents := map[string]bool{
		"registry": true,
		"database": true,
	}
	return criticalComponents[componentName]
}

// calculateHash calculates SHA256 hash of data
func (rc *ReloadCoordinator) calculateHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// countSuccessful counts successful component reloads
func (rc *ReloadCoordinator) countSuccessful(results []ComponentReloadResult) int {
	count := 0
	for _, r := range results {
		if r.Success {
			count++
		}
	}
	return count
}

// logValidationErrors logs validation errors
func (rc *ReloadCoordinator) logValidationErrors(errors []ValidationErrorDetail) {
	for _, err := range errors {
		rc.logger.Error("validation error",
			"field", err.Field,
			"message", err.Message,
			"code", err.Code,
		)
	}
}

// writeAuditLog writes audit log entry
func (rc *ReloadCoordinator) writeAuditLog(
	ctx context.Context,
	version int64,
	diff *ConfigDiff,
	source string,
) {
	// TODO: Write to PostgreSQL audit log table
	rc.logger.Info("audit log",
		"version", version,
		"source", source,
		"added_fields", len(diff.Added),
		"modified_fields", len(diff.Modified),
		"deleted_fields", len(diff.Deleted),
	)
}

// Helper function
func startsWith(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.HasPrefix(s, prefix)
}
