package config

import (
	"context"
	"log/slog"

	"github.com/packetflow/iccr/pkg/logger"
)

// LogLevelReloadable adapts a running process's *slog.LevelVar to the
// Reloadable interface, so SIGHUP-triggered config reloads can raise or
// lower log verbosity without a restart.
type LogLevelReloadable struct {
	level *slog.LevelVar
	log   *slog.Logger
}

// NewLogLevelReloadable wraps level for registration with a
// DefaultConfigReloader.
func NewLogLevelReloadable(level *slog.LevelVar, log *slog.Logger) *LogLevelReloadable {
	return &LogLevelReloadable{level: level, log: log}
}

// Reload implements Reloadable.
func (l *LogLevelReloadable) Reload(_ context.Context, cfg *Config) error {
	newLevel := logger.ParseLevel(cfg.Log.Level)
	if l.level.Level() == newLevel {
		return nil
	}
	l.log.Info("log level changed by config reload",
		"old_level", l.level.Level().String(),
		"new_level", newLevel.String(),
	)
	l.level.Set(newLevel)
	return nil
}

// Name implements Reloadable.
func (l *LogLevelReloadable) Name() string { return "log_level" }

// IsCritical implements Reloadable. A bad log level is never worth
// rolling back a config change for.
func (l *LogLevelReloadable) IsCritical() bool { return false }
