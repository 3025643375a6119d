package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/packetflow/iccr/internal/capability"
	"github.com/packetflow/iccr/internal/comm"
	"github.com/packetflow/iccr/internal/config"
	"github.com/packetflow/iccr/internal/dynconfig"
	"github.com/packetflow/iccr/internal/infrastructure/cache"
	"github.com/packetflow/iccr/internal/infrastructure/lock"
	"github.com/packetflow/iccr/internal/intent"
	"github.com/packetflow/iccr/internal/middleware"
	"github.com/packetflow/iccr/internal/monitoring"
	"github.com/packetflow/iccr/internal/realtime"
	"github.com/packetflow/iccr/internal/registry"
	"github.com/packetflow/iccr/pkg/logger"
	"github.com/packetflow/iccr/pkg/metrics"
)

// splitCSV parses the comma-separated string fields DashboardConfig's
// CORS section loads from YAML/env into the slices middleware.CORSConfig
// expects.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ICCR runtime and its monitoring dashboard",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, logLevel := logger.NewDynamicLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	log.Info("starting packetflow", "profile", cfg.Profile, "environment", cfg.App.Environment)

	graph := capability.NewGraph()
	reg := registry.New(log)
	bus := comm.New(reg, graph)
	store := dynconfig.New()
	// The intent router and validator are the entry point for embedding
	// code (plugins, an ingestion adapter) to submit intents; this
	// command only stands up the registry/comm/monitoring runtime and
	// its dashboard, so both are constructed but not yet exposed over
	// HTTP here.
	router := intent.NewRouter(graph)
	validator := intent.NewValidator()
	_, _ = router, validator

	if cfg.Redis.Addr != "" {
		remote, err := cache.NewRedisCache(&cache.CacheConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			MaxRetries:   cfg.Redis.MaxRetries,
		}, log)
		if err != nil {
			log.Warn("redis unavailable, continuing without cross-process pending/version cache", "error", err)
		} else {
			bus.UseRemoteCache(remote)
			store.UseRemoteCache(remote)
			store.UseDistributedLock(lock.NewLockManager(remote.GetClient(), &lock.LockConfig{
				TTL:            5 * time.Second,
				MaxRetries:     3,
				RetryInterval:  100 * time.Millisecond,
				AcquireTimeout: 2 * time.Second,
				ReleaseTimeout: 2 * time.Second,
				ValuePrefix:    "packetflow-dynconfig",
			}, log))

			if err := reg.Register("redis", "infrastructure.cache", nil); err != nil {
				log.Warn("failed to register redis component", "error", err)
			} else {
				reg.SetHealthChecker("redis", remote)
			}
		}
	}

	promReg := prometheus.NewRegistry()
	mon := monitoring.New(reg, promReg, log)
	mon.EnableRealtime(realtime.NewRealtimeMetrics(cfg.App.Name))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloadCoordinator *config.ReloadCoordinator
	if configPath != "" {
		storage, lockMgr, closeStorage, err := config.NewStorageBackend(ctx, cfg, log)
		if err != nil {
			log.Warn("config storage backend unavailable, hot reload will run without persisted history or distributed locking", "error", err)
		} else if closeStorage != nil {
			defer closeStorage()
		}

		reloader := config.NewConfigReloader(log)
		reloader.Register(config.NewLogLevelReloadable(logLevel, log))

		reloadCoordinator = config.NewReloadCoordinator(
			cfg,
			configPath,
			config.NewConfigValidator(),
			config.NewConfigComparator(),
			reloader,
			storage,
			lockMgr,
			log,
		)
	}

	healthInterval := cfg.Monitoring.HealthCheckInterval
	if healthInterval <= 0 {
		healthInterval = 30 * time.Second
	}
	metricsInterval := cfg.Monitoring.MetricsInterval
	if metricsInterval <= 0 {
		metricsInterval = 60 * time.Second
	}
	mon.Start(ctx, healthInterval, metricsInterval)

	metricsRegistry := metrics.NewMetricsRegistry(cfg.App.Name)
	stack := middleware.BuildDashboardMiddlewareStack(&middleware.MiddlewareConfig{
		Logger:          log,
		MetricsRegistry: metricsRegistry,
		RateLimiter: &middleware.RateLimitConfig{
			Enabled:     cfg.Dashboard.RateLimiting.Enabled,
			PerIPLimit:  cfg.Dashboard.RateLimiting.PerIPLimit,
			GlobalLimit: cfg.Dashboard.RateLimiting.GlobalLimit,
			Logger:      log,
		},
		AuthConfig: &middleware.AuthConfig{
			Enabled:   cfg.Dashboard.Authentication.Enabled,
			Type:      cfg.Dashboard.Authentication.Type,
			APIKey:    cfg.Dashboard.Authentication.APIKey,
			JWTSecret: cfg.Dashboard.Authentication.JWTSecret,
			Logger:    log,
		},
		CORSConfig: &middleware.CORSConfig{
			Enabled:        cfg.Dashboard.CORS.Enabled,
			AllowedOrigins: splitCSV(cfg.Dashboard.CORS.AllowedOrigins),
			AllowedMethods: splitCSV(cfg.Dashboard.CORS.AllowedMethods),
			AllowedHeaders: splitCSV(cfg.Dashboard.CORS.AllowedHeaders),
		},
		MaxRequestSize: int(cfg.Dashboard.MaxRequestSize),
		RequestTimeout: cfg.Dashboard.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      stack(mon.Router()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	reload := make(chan os.Signal, 1)
	if reloadCoordinator != nil {
		signal.Notify(reload, syscall.SIGHUP)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("dashboard listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

waitLoop:
	for {
		select {
		case err := <-serverErr:
			return fmt.Errorf("dashboard server failed: %w", err)
		case <-reload:
			log.Info("SIGHUP received, reloading config")
			reloadCtx, reloadCancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := reloadCoordinator.ReloadFromFile(reloadCtx, configPath); err != nil {
				log.Error("config reload failed", "error", err)
			}
			reloadCancel()
		case <-quit:
			log.Info("shutdown signal received")
			break waitLoop
		}
	}

	cancel() // stop monitoring cycles and the realtime bus

	shutdownTimeout := cfg.Server.GracefulShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("packetflow stopped")
	return nil
}
