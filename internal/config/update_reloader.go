package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/packetflow/iccr/internal/metrics"
)

// DefaultConfigReloader holds a registry of Reloadable components and
// fans a config change out to whichever of them ReloadAll is asked to
// touch, each under its own goroutine.
type DefaultConfigReloader struct {
	components []Reloadable
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewConfigReloader builds an empty reloader; components register
// themselves at startup via Register.
func NewConfigReloader(logger *slog.Logger) *DefaultConfigReloader {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultConfigReloader{
		components: make([]Reloadable, 0),
		logger:     logger,
	}
}

// Register adds component, skipping a duplicate Name().
func (r *DefaultConfigReloader) Register(component Reloadable) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check if already registered (by name)
	for _, existing := range r.components {
		if existing.Name() == component.Name() {
			r.logger.Warn("component already registered, skipping",
				"component", component.Name(),
			)
			return
		}
	}

	r.components = append(r.components, component)
	r.logger.Info("component registered for hot reload",
		"component", component.Name(),
		"critical", component.IsCritical(),
		"total_components", len(r.components),
	)
}

// Unregister drops componentName from the registry.
func (r *DefaultConfigReloader) Unregister(componentName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, component := range r.components {
		if component.Name() == componentName {
			// Remove component from slice
			r.components = append(r.components[:i], r.components[i+1:]...)
			r.logger.Info("component unregistered from hot reload",
				"component", componentName,
				"total_components", len(r.components),
			)
			return
		}
	}

	r.logger.Warn("component not found for unregister",
		"component", componentName,
	)
}

// ReloadAll reloads affectedComponents (or everything registered, if
// empty) concurrently under a 30s timeout and returns one ReloadError
// per failure. The caller decides whether to roll back based on
// whether any of those failures came from a critical component.
func (r *DefaultConfigReloader) ReloadAll(
	ctx context.Context,
	cfg *Config,
	affectedComponents []string,
) []ReloadError {
	r.mu.RLock()
	defer r.mu.RUnlock()

	startTime := time.Now()

	r.logger.Info("starting hot reload",
		"total_components", len(r.components),
		"affected_components", affectedComponents,
	)

	// Filter components if affected list specified
	componentsToReload := r.filterComponents(affectedComponents)
	if len(componentsToReload) == 0 {
		r.logger.Info("no components need reload")
		return nil
	}

	// Create context with timeout (30s default)
	reloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Channel for collecting reload results
	type reloadResult struct {
		component string
		critical  bool
		err       error
		duration  time.Duration
	}
	results := make(chan reloadResult, len(componentsToReload))

	// Launch parallel reload goroutines
	var wg sync.WaitGroup
	for _, component := range componentsToReload {
		wg.Add(1)
		go func(comp Reloadable) {
			defer wg.Done()

			compStartTime := time.Now()
			r.logger.Info("reloading component",
				"component", comp.Name(),
				"critical", comp.IsCritical(),
			)

			err := comp.Reload(reloadCtx, cfg)
			duration := time.Since(compStartTime)
			metrics.ConfigReloadComponentDuration.WithLabelValues(comp.Name()).Observe(duration.Seconds())

			results <- reloadResult{
				component: comp.Name(),
				critical:  comp.IsCritical(),
				err:       err,
				duration:  duration,
			}
		}(component)
	}

	// Wait for all goroutines to complete
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results
	reloadErrors := make([]ReloadError, 0)
	hasCriticalError := false

	for result := range results {
		if result.err != nil {
			r.logger.Error("component reload failed",
				"component", result.component,
				"critical", result.critical,
				"error", result.err,
				"duration_ms", result.duration.Milliseconds(),
			)

			reloadErrors = append(reloadErrors, ReloadError{
				Component: result.component,
				Error:     result.err.Error(),
				Critical:  result.critical,
				Duration:  result.duration,
			})

			if result.critical {
				hasCriticalError = true
			}
		} else {
			r.logger.Info("component reloaded successfully",
				"component", result.component,
				"duration_ms", result.duration.Milliseconds(),
			)
		}
	}

	totalDuration := time.Since(startTime)

	// Log summary
	if len(reloadErrors) == 0 {
		r.logger.Info("hot reload completed successfully",
			"components_reloaded", len(componentsToReload),
			"duration_ms", totalDuration.Milliseconds(),
		)
	} else {
		r.logger.Warn("hot reload completed with errors",
			"components_reloaded", len(componentsToReload),
			"errors", len(reloadErrors),
			"critical_errors", hasCriticalError,
			"duration_ms", totalDuration.Milliseconds(),
		)
	}

	return reloadErrors
}

// GetRegisteredComponents lists every currently-registered name.
func (r *DefaultConfigReloader) GetRegisteredComponents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.components))
	for i, component := range r.components {
		names[i] = component.Name()
	}

	return names
}

// filterComponents narrows r.components down to affectedComponents.
func (r *DefaultConfigReloader) filterComponents(affectedComponents []string) []Reloadable {
	// If no filter, return all components
	if len(affectedComponents) == 0 {
		return r.components
	}

	// Build set for O(1) lookup
	affectedSet := make(map[string]bool)
	for _, name := range affectedComponents {
		affectedSet[name] = true
	}

	// Filter components
	filtered := make([]Reloadable, 0)
	for _, component := range r.components {
		if affectedSet[component.Name()] {
			filtered = append(filtered, component)
		}
	}

	return filtered
}

// HasCriticalErrors checks if error list contains critical errors
func HasCriticalErrors(errors []ReloadError) bool {
	for _, err := range errors {
		if err.Critical {
			return true
		}
	}
	return false
}

// FormatReloadErrors formats reload errors into human-readable string
func FormatReloadErrors(errors []ReloadError) string {
	if len(errors) == 0 {
		return "No errors"
	}

	var result string
	for i, err := range errors {
		criticalMarker := ""
		if err.Critical {
			criticalMarker = " [CRITICAL]"
		}
		result += fmt.Sprintf("%d. %s%s: %s (took %v)\n",
			i+1, err.Component, criticalMarker, err.Error, err.Duration)
	}

	return result
}

var _ ConfigReloader = (*DefaultConfigReloader)(nil)
