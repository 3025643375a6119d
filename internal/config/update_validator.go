package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultConfigValidator runs four passes over a candidate Config: struct
// tags via go-playground/validator, hand-written business rules per
// section, cross-field dependencies a tag can't express, and a handful
// of production security checks (no empty secrets).
type DefaultConfigValidator struct {
	v *validator.Validate

	// secretFields holds dotted field paths (e.g. "database.password")
	// redacted out of returned ValidationErrorDetail.Value.
	secretFields map[string]bool
}

// NewConfigValidator builds a validator with the custom tag checks this
// config schema needs beyond what go-playground/validator ships:
// port, positive, nonnegative, duration_positive, environment.
func NewConfigValidator() *DefaultConfigValidator {
	v := validator.New()

	// Register custom validators
	_ = v.RegisterValidation("port", validatePort)
	_ = v.RegisterValidation("positive", validatePositive)
	_ = v.RegisterValidation("nonnegative", validateNonNegative)
	_ = v.RegisterValidation("duration_positive", validateDurationPositive)
	_ = v.RegisterValidation("environment", validateEnvironment)

	// Build secret fields map for sanitization
	secretFields := buildSecretFieldsMap()

	return &DefaultConfigValidator{
		v:            v,
		secretFields: secretFields,
	}
}

// Validate runs all four passes and collects every error found, rather
// than stopping at the first.
func (cv *DefaultConfigValidator) Validate(cfg *Config, sections []string) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// Phase 1: Structural validation using validator tags
	if err := cv.v.Struct(cfg); err != nil {
		if validationErrs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrs {
				// Filter by sections if specified
				if len(sections) > 0 && !cv.isFieldInSections(e.StructNamespace(), sections) {
					continue
				}

				errors = append(errors, ValidationErrorDetail{
					Field:      cv.fieldPathFromNamespace(e.StructNamespace()),
					Message:    cv.formatValidationError(e),
					Code:       e.Tag(),
					Value:      cv.sanitizeValue(e.StructNamespace(), e.Value()),
					Constraint: cv.extractConstraint(e),
				})
			}
		}
	}

	// Phase 2: Business rule validation
	errors = append(errors, cv.validateBusinessRules(cfg, sections)...)

	// Phase 3: Cross-field validation
	errors = append(errors, cv.validateCrossFields(cfg, sections)...)

	// Phase 4: Security validation
	errors = append(errors, cv.validateSecurity(cfg, sections)...)

	return errors
}

// ValidatePartial scopes Validate to sections; cross-field rules whose
// other half lives outside sections still run.
func (cv *DefaultConfigValidator) ValidatePartial(cfg *Config, sections []string) []ValidationErrorDetail {
	return cv.Validate(cfg, sections)
}

// ValidateDiff catches changes that are structurally valid but risky:
// a host/port change on a live connection, or a big downgrade.
func (cv *DefaultConfigValidator) ValidateDiff(oldCfg *Config, newCfg *Config, diff *ConfigDiff) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// Check for critical changes
	if cv.hasCriticalDatabaseChange(oldCfg, newCfg) {
		errors = append(errors, ValidationErrorDetail{
			Field:   "database",
			Message: "critical database configuration change detected (host or port changed)",
			Code:    "critical_change",
		})
	}

	if cv.hasCriticalRedisChange(oldCfg, newCfg) {
		errors = append(errors, ValidationErrorDetail{
			Field:   "redis",
			Message: "critical redis configuration change detected (addr changed)",
			Code:    "critical_change",
		})
	}

	// Check for dangerous downgrades
	if newCfg.Database.MaxConnections < oldCfg.Database.MaxConnections/2 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "database.max_connections",
			Message:    fmt.Sprintf("dangerous downgrade: reducing max_connections by >50%% (from %d to %d)", oldCfg.Database.MaxConnections, newCfg.Database.MaxConnections),
			Code:       "dangerous_downgrade",
			Constraint: "should not reduce by more than 50%",
		})
	}

	return errors
}

// validateBusinessRules dispatches to one validator per config section.
func (cv *DefaultConfigValidator) validateBusinessRules(cfg *Config, sections []string) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// Validate server config
	if cv.shouldValidateSection("server", sections) {
		errors = append(errors, cv.validateServerConfig(&cfg.Server)...)
	}

	// Validate database config
	if cv.shouldValidateSection("database", sections) {
		errors = append(errors, cv.validateDatabaseConfig(&cfg.Database)...)
	}

	// Validate redis config
	if cv.shouldValidateSection("redis", sections) {
		errors = append(errors, cv.validateRedisConfig(&cfg.Redis)...)
	}

	// Validate registry config
	if cv.shouldValidateSection("registry", sections) {
		errors = append(errors, cv.validateRegistryConfig(&cfg.Registry)...)
	}

	// Validate monitoring config
	if cv.shouldValidateSection("monitoring", sections) {
		errors = append(errors, cv.validateMonitoringConfig(&cfg.Monitoring)...)
	}

	// Validate log config
	if cv.shouldValidateSection("log", sections) {
		errors = append(errors, cv.validateLogConfig(&cfg.Log)...)
	}

	// Validate cache config
	if cv.shouldValidateSection("cache", sections) {
		errors = append(errors, cv.validateCacheConfig(&cfg.Cache)...)
	}

	// Validate lock config
	if cv.shouldValidateSection("lock", sections) {
		errors = append(errors, cv.validateLockConfig(&cfg.Lock)...)
	}

	// Validate app config
	if cv.shouldValidateSection("app", sections) {
		errors = append(errors, cv.validateAppConfig(&cfg.App)...)
	}

	// Validate metrics config
	if cv.shouldValidateSection("metrics", sections) {
		errors = append(errors, cv.validateMetricsConfig(&cfg.Metrics)...)
	}

	// Validate dashboard config
	if cv.shouldValidateSection("dashboard", sections) {
		errors = append(errors, cv.validateDashboardConfig(&cfg.Dashboard)...)
	}

	return errors
}

// validateServerConfig validates server configuration
func (cv *DefaultConfigValidator) validateServerConfig(cfg *ServerConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// Port must be valid (1-65535)
	if cfg.Port < 1 || cfg.Port > 65535 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "server.port",
			Message:    fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
			Code:       "out_of_range",
			Value:      cfg.Port,
			Constraint: "min: 1, max: 65535",
		})
	}

	// Timeouts must be positive
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "server.read_timeout",
			Message:    "read_timeout must be positive",
			Code:       "invalid_value",
			Value:      cfg.ReadTimeout,
			Constraint: "min: 1s",
		})
	}

	if cfg.WriteTimeout <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "server.write_timeout",
			Message:    "write_timeout must be positive",
			Code:       "invalid_value",
			Value:      cfg.WriteTimeout,
			Constraint: "min: 1s",
		})
	}

	return errors
}

// validateDatabaseConfig validates database configuration
func (cv *DefaultConfigValidator) validateDatabaseConfig(cfg *DatabaseConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// MaxConnections >= MinConnections
	if cfg.MaxConnections < cfg.MinConnections {
		errors = append(errors, ValidationErrorDetail{
			Field:      "database.max_connections",
			Message:    fmt.Sprintf("max_connections (%d) must be >= min_connections (%d)", cfg.MaxConnections, cfg.MinConnections),
			Code:       "invalid_range",
			Constraint: fmt.Sprintf("min: %d", cfg.MinConnections),
		})
	}

	// MinConnections must be positive
	if cfg.MinConnections < 1 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "database.min_connections",
			Message:    "min_connections must be at least 1",
			Code:       "out_of_range",
			Value:      cfg.MinConnections,
			Constraint: "min: 1",
		})
	}

	// MaxConnections reasonable limit
	if cfg.MaxConnections > 1000 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "database.max_connections",
			Message:    fmt.Sprintf("max_connections (%d) seems too high, consider reducing", cfg.MaxConnections),
			Code:       "suspicious_value",
			Value:      cfg.MaxConnections,
			Constraint: "recommended max: 1000",
		})
	}

	// Port must be valid
	if cfg.Port < 1 || cfg.Port > 65535 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "database.port",
			Message:    fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
			Code:       "out_of_range",
			Value:      cfg.Port,
			Constraint: "min: 1, max: 65535",
		})
	}

	// Driver must be supported
	validDrivers := map[string]bool{"postgres": true, "postgresql": true, "sqlite": true}
	if !validDrivers[strings.ToLower(cfg.Driver)] {
		errors = append(errors, ValidationErrorDetail{
			Field:      "database.driver",
			Message:    fmt.Sprintf("unsupported database driver: %s", cfg.Driver),
			Code:       "invalid_value",
			Value:      cfg.Driver,
			Constraint: "supported: postgres, postgresql, sqlite",
		})
	}

	return errors
}

// validateRedisConfig validates redis configuration
func (cv *DefaultConfigValidator) validateRedisConfig(cfg *RedisConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// Addr must not be empty
	if cfg.Addr == "" {
		errors = append(errors, ValidationErrorDetail{
			Field:   "redis.addr",
			Message: "redis address is required",
			Code:    "required",
		})
	}

	// DB must be non-negative
	if cfg.DB < 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "redis.db",
			Message:    "redis db must be non-negative",
			Code:       "out_of_range",
			Value:      cfg.DB,
			Constraint: "min: 0",
		})
	}

	// Pool size must be positive
	if cfg.PoolSize < 1 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "redis.pool_size",
			Message:    "pool_size must be at least 1",
			Code:       "out_of_range",
			Value:      cfg.PoolSize,
			Constraint: "min: 1",
		})
	}

	return errors
}

// validateRegistryConfig validates component registry configuration
func (cv *DefaultConfigValidator) validateRegistryConfig(cfg *RegistryConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	if cfg.HeartbeatInterval <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "registry.heartbeat_interval",
			Message:    "heartbeat_interval must be positive",
			Code:       "out_of_range",
			Value:      cfg.HeartbeatInterval,
			Constraint: "min: 1ns",
		})
	}

	// Degraded threshold must exceed healthy threshold, else the health
	// band never reaches "degraded" before jumping straight to unhealthy.
	if cfg.DegradedThreshold <= cfg.HealthyThreshold {
		errors = append(errors, ValidationErrorDetail{
			Field:      "registry.degraded_threshold",
			Message:    "degraded_threshold must be greater than healthy_threshold",
			Code:       "invalid_value",
			Value:      cfg.DegradedThreshold,
			Constraint: "> registry.healthy_threshold",
		})
	}

	if cfg.StartupTimeout <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "registry.startup_timeout",
			Message:    "startup_timeout must be positive",
			Code:       "out_of_range",
			Value:      cfg.StartupTimeout,
			Constraint: "min: 1ns",
		})
	}

	return errors
}

// validateMonitoringConfig validates monitoring cycle configuration
func (cv *DefaultConfigValidator) validateMonitoringConfig(cfg *MonitoringConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	if cfg.HealthCheckInterval <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "monitoring.health_check_interval",
			Message:    "health_check_interval must be positive",
			Code:       "out_of_range",
			Value:      cfg.HealthCheckInterval,
			Constraint: "min: 1ns",
		})
	}

	if cfg.MetricsInterval <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "monitoring.metrics_interval",
			Message:    "metrics_interval must be positive",
			Code:       "out_of_range",
			Value:      cfg.MetricsInterval,
			Constraint: "min: 1ns",
		})
	}

	if cfg.HealthHistoryLimit <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "monitoring.health_history_limit",
			Message:    "health_history_limit must be positive",
			Code:       "out_of_range",
			Value:      cfg.HealthHistoryLimit,
			Constraint: "min: 1",
		})
	}

	if cfg.MetricsHistoryLimit <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "monitoring.metrics_history_limit",
			Message:    "metrics_history_limit must be positive",
			Code:       "out_of_range",
			Value:      cfg.MetricsHistoryLimit,
			Constraint: "min: 1",
		})
	}

	return errors
}

// validateLogConfig validates log configuration
func (cv *DefaultConfigValidator) validateLogConfig(cfg *LogConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// Log level must be valid
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Level)] {
		errors = append(errors, ValidationErrorDetail{
			Field:      "log.level",
			Message:    fmt.Sprintf("invalid log level: %s", cfg.Level),
			Code:       "invalid_value",
			Value:      cfg.Level,
			Constraint: "supported: debug, info, warn, error",
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Format)] {
		errors = append(errors, ValidationErrorDetail{
			Field:      "log.format",
			Message:    fmt.Sprintf("invalid log format: %s", cfg.Format),
			Code:       "invalid_value",
			Value:      cfg.Format,
			Constraint: "supported: json, text",
		})
	}

	return errors
}

// validateCacheConfig validates cache configuration
func (cv *DefaultConfigValidator) validateCacheConfig(cfg *CacheConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// DefaultTTL must be positive
	if cfg.DefaultTTL <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "cache.default_ttl",
			Message:    "default_ttl must be positive",
			Code:       "invalid_value",
			Value:      cfg.DefaultTTL,
			Constraint: "min: 1s",
		})
	}

	// MaxTTL >= DefaultTTL
	if cfg.MaxTTL < cfg.DefaultTTL {
		errors = append(errors, ValidationErrorDetail{
			Field:      "cache.max_ttl",
			Message:    fmt.Sprintf("max_ttl (%v) must be >= default_ttl (%v)", cfg.MaxTTL, cfg.DefaultTTL),
			Code:       "invalid_range",
			Constraint: fmt.Sprintf("min: %v", cfg.DefaultTTL),
		})
	}

	return errors
}

// validateLockConfig validates lock configuration
func (cv *DefaultConfigValidator) validateLockConfig(cfg *LockConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// TTL must be positive
	if cfg.TTL <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "lock.ttl",
			Message:    "ttl must be positive",
			Code:       "invalid_value",
			Value:      cfg.TTL,
			Constraint: "min: 1s",
		})
	}

	return errors
}

// validateAppConfig validates app configuration
func (cv *DefaultConfigValidator) validateAppConfig(cfg *AppConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// Environment must be valid
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[strings.ToLower(cfg.Environment)] {
		errors = append(errors, ValidationErrorDetail{
			Field:      "app.environment",
			Message:    fmt.Sprintf("invalid environment: %s", cfg.Environment),
			Code:       "invalid_value",
			Value:      cfg.Environment,
			Constraint: "supported: development, staging, production",
		})
	}

	// MaxWorkers must be positive
	if cfg.MaxWorkers < 1 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "app.max_workers",
			Message:    "max_workers must be at least 1",
			Code:       "out_of_range",
			Value:      cfg.MaxWorkers,
			Constraint: "min: 1",
		})
	}

	return errors
}

// validateMetricsConfig validates metrics configuration
func (cv *DefaultConfigValidator) validateMetricsConfig(cfg *MetricsConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// If enabled, port must be valid
	if cfg.Enabled && (cfg.Port < 1 || cfg.Port > 65535) {
		errors = append(errors, ValidationErrorDetail{
			Field:      "metrics.port",
			Message:    fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
			Code:       "out_of_range",
			Value:      cfg.Port,
			Constraint: "min: 1, max: 65535",
		})
	}

	return errors
}

// validateDashboardConfig validates the monitoring dashboard endpoint configuration
func (cv *DefaultConfigValidator) validateDashboardConfig(cfg *DashboardConfig) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// MaxRequestSize must be positive
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, ValidationErrorDetail{
			Field:      "dashboard.max_request_size",
			Message:    "max_request_size must be positive",
			Code:       "invalid_value",
			Value:      cfg.MaxRequestSize,
			Constraint: "min: 1",
		})
	}

	return errors
}

// validateCrossFields checks rules spanning more than one section.
func (cv *DefaultConfigValidator) validateCrossFields(cfg *Config, sections []string) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// If authentication enabled, API key or JWT secret required
	if cfg.Dashboard.Authentication.Enabled {
		if cfg.Dashboard.Authentication.APIKey == "" && cfg.Dashboard.Authentication.JWTSecret == "" {
			errors = append(errors, ValidationErrorDetail{
				Field:   "dashboard.authentication",
				Message: "either api_key or jwt_secret is required when authentication.enabled=true",
				Code:    "required_conditional",
			})
		}
	}

	return errors
}

// validateSecurity flags production configs with empty secrets.
func (cv *DefaultConfigValidator) validateSecurity(cfg *Config, sections []string) []ValidationErrorDetail {
	errors := make([]ValidationErrorDetail, 0)

	// In production, database password should not be empty
	if strings.ToLower(cfg.App.Environment) == "production" {
		if cfg.Database.Password == "" {
			errors = append(errors, ValidationErrorDetail{
				Field:   "database.password",
				Message: "database password should not be empty in production",
				Code:    "security_warning",
			})
		}

		if cfg.Dashboard.Authentication.Enabled && cfg.Dashboard.Authentication.APIKey == "" && cfg.Dashboard.Authentication.JWTSecret == "" {
			errors = append(errors, ValidationErrorDetail{
				Field:   "dashboard.authentication",
				Message: "dashboard authentication credentials should not be empty when enabled in production",
				Code:    "security_warning",
			})
		}
	}

	return errors
}

// validatePort validates port number (1-65535)
func validatePort(fl validator.FieldLevel) bool {
	port := fl.Field().Int()
	return port > 0 && port <= 65535
}

// validatePositive validates positive integer (> 0)
func validatePositive(fl validator.FieldLevel) bool {
	return fl.Field().Int() > 0
}

// validateNonNegative validates non-negative integer (>= 0)
func validateNonNegative(fl validator.FieldLevel) bool {
	return fl.Field().Int() >= 0
}

// validateDurationPositive validates positive duration
func validateDurationPositive(fl validator.FieldLevel) bool {
	duration := fl.Field().Int()
	return duration > 0
}

// validateEnvironment validates environment name
func validateEnvironment(fl validator.FieldLevel) bool {
	env := strings.ToLower(fl.Field().String())
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true, "dev": true, "prod": true}
	return validEnvs[env]
}

// formatValidationError formats validator error into human-readable message
func (cv *DefaultConfigValidator) formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "port":
		return "must be a valid port number (1-65535)"
	case "positive":
		return "must be a positive number (> 0)"
	case "nonnegative":
		return "must be non-negative (>= 0)"
	case "duration_positive":
		return "must be a positive duration"
	case "environment":
		return "must be a valid environment (development, staging, production)"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// extractConstraint extracts constraint from validation error
func (cv *DefaultConfigValidator) extractConstraint(e validator.FieldError) string {
	switch e.Tag() {
	case "min":
		return fmt.Sprintf("min: %s", e.Param())
	case "max":
		return fmt.Sprintf("max: %s", e.Param())
	case "port":
		return "min: 1, max: 65535"
	case "positive":
		return "min: 1"
	case "nonnegative":
		return "min: 0"
	case "oneof":
		return fmt.Sprintf("one of: %s", e.Param())
	default:
		return ""
	}
}

// fieldPathFromNamespace converts struct namespace to field path
// Example: "Config.Server.Port" -> "server.port"
func (cv *DefaultConfigValidator) fieldPathFromNamespace(namespace string) string {
	// Remove "Config." prefix
	path := strings.TrimPrefix(namespace, "Config.")

	// Convert to lowercase with dots
	parts := strings.Split(path, ".")
	for i, part := range parts {
		// Convert camelCase to snake_case
		parts[i] = toSnakeCase(part)
	}

	return strings.Join(parts, ".")
}

// toSnakeCase converts camelCase to snake_case
func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		result = append(result, r)
	}
	return strings.ToLower(string(result))
}

// isFieldInSections checks if field belongs to specified sections
func (cv *DefaultConfigValidator) isFieldInSections(namespace string, sections []string) bool {
	if len(sections) == 0 {
		return true // No filter, include all
	}

	fieldPath := cv.fieldPathFromNamespace(namespace)
	for _, section := range sections {
		if strings.HasPrefix(fieldPath, section+".") || fieldPath == section {
			return true
		}
	}

	return false
}

// shouldValidateSection checks if section should be validated
func (cv *DefaultConfigValidator) shouldValidateSection(section string, sections []string) bool {
	if len(sections) == 0 {
		return true // No filter, validate all
	}

	for _, s := range sections {
		if s == section {
			return true
		}
	}

	return false
}

// sanitizeValue sanitizes value if it's a secret field
func (cv *DefaultConfigValidator) sanitizeValue(namespace string, value interface{}) interface{} {
	fieldPath := cv.fieldPathFromNamespace(namespace)

	if cv.secretFields[fieldPath] {
		return "***REDACTED***"
	}

	return value
}

// buildSecretFieldsMap builds map of secret field paths
func buildSecretFieldsMap() map[string]bool {
	return map[string]bool{
		"database.password":                 true,
		"redis.password":                    true,
		"dashboard.authentication.api_key":  true,
		"dashboard.authentication.jwt_secret": true,
	}
}

// hasCriticalDatabaseChange checks if database host or port changed
func (cv *DefaultConfigValidator) hasCriticalDatabaseChange(oldCfg *Config, newCfg *Config) bool {
	return oldCfg.Database.Host != newCfg.Database.Host ||
		oldCfg.Database.Port != newCfg.Database.Port
}

// hasCriticalRedisChange checks if redis address changed
func (cv *DefaultConfigValidator) hasCriticalRedisChange(oldCfg *Config, newCfg *Config) bool {
	return oldCfg.Redis.Addr != newCfg.Redis.Addr
}

var _ ConfigValidator = (*DefaultConfigValidator)(nil)
