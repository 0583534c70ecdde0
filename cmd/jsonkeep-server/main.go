package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/core/service"
	"github.com/yndnr/jsonkeep-go/internal/infra/buildinfo"
	"github.com/yndnr/jsonkeep-go/internal/infra/confloader"
	"github.com/yndnr/jsonkeep-go/internal/infra/shutdown"
	"github.com/yndnr/jsonkeep-go/internal/infra/tlsroots"
	"github.com/yndnr/jsonkeep-go/internal/server/config"
	"github.com/yndnr/jsonkeep-go/internal/server/httpserver"
	"github.com/yndnr/jsonkeep-go/internal/server/redisserver"
	"github.com/yndnr/jsonkeep-go/internal/storage/keyring"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/logger"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		logLevel    = flag.String("log-level", "", "Override the configured log level")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("jsonkeep-server %s\n", buildinfo.String())
		return nil
	}

	// Load configuration
	cfg, err := loadConfig(*configFile, *logLevel)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting jsonkeep-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)

	if err := os.MkdirAll(cfg.Storage.Root, 0o700); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}

	// Metrics registry; created first so the store service can count
	// catalog re-attachments
	metrics := metric.NewRegistry()

	// Store service; the catalog re-attaches stores across restarts
	storeSvc, err := service.NewStoreService(&service.StoreServiceConfig{
		CatalogPath: cfg.CatalogPath(),
		Logger:      log,
		Metrics:     metrics,
	})
	if err != nil {
		return fmt.Errorf("init store service: %w", err)
	}

	// API keyring and auth service
	ring, err := keyring.Open(cfg.KeyringPath())
	if err != nil {
		return fmt.Errorf("open keyring: %w", err)
	}
	authSvc := service.NewAuthService(ring, &service.AuthServiceConfig{Logger: log})

	ctx := context.Background()
	if cfg.Auth.Enabled && cfg.Auth.BootstrapAdmin && ring.Len() == 0 {
		if err := bootstrapAdmin(ctx, authSvc, cfg.Auth.BootstrapSecret, log); err != nil {
			return fmt.Errorf("bootstrap admin key: %w", err)
		}
	}

	// The RESP surface needs db0 for SELECT 0 to work out of the box
	if cfg.Server.RESP.Enabled {
		if err := attachDefaultStore(ctx, storeSvc, cfg); err != nil {
			return fmt.Errorf("attach db0: %w", err)
		}
	}

	// Scrape-time per-store gauges on top of the counter registry
	metrics.MustRegister(metric.NewCollector(&storeStats{svc: storeSvc}))

	// HTTP router and server
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		StoreService:        storeSvc,
		AuthService:         authSvc,
		Config:              cfg,
		Metrics:             metrics,
		Logger:              log,
		AuthRequired:        cfg.Auth.Enabled,
		MetricsEnabled:      cfg.Metrics.Enabled,
		MetricsAuthRequired: cfg.Metrics.RequireAuth,
		SkipAuthPaths:       []string{"/healthz", "/readyz"},
	})

	var (
		httpOpts    []httpserver.Option
		certWatcher *tlsroots.Watcher
	)
	useTLS := cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != ""
	if useTLS {
		certWatcher, err = tlsroots.NewWatcher(
			cfg.Server.HTTP.TLSCertFile,
			cfg.Server.HTTP.TLSKeyFile,
			tlsroots.WithLogger(slog.Default()),
		)
		if err != nil {
			return fmt.Errorf("load tls certificate: %w", err)
		}
		certWatcher.StartAsync()
		httpOpts = append(httpOpts, httpserver.WithTLSConfig(&tls.Config{
			GetCertificate: certWatcher.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}))
	}
	httpServer := httpserver.New(cfg.Server.HTTP, router, httpOpts...)

	// Redis-protocol listener
	var (
		respServer      *redisserver.Server
		respCertWatcher *tlsroots.Watcher
	)
	if cfg.Server.RESP.Enabled {
		respCfg := redisserver.DefaultConfig()
		respCfg.Addr = cfg.Server.RESP.Addr
		if cfg.Server.RESP.IdleTimeout > 0 {
			respCfg.IdleTimeout = cfg.Server.RESP.IdleTimeout
		}
		respCfg.AuthDisabled = !cfg.Auth.Enabled
		if cfg.Server.RESP.TLSCertFile != "" {
			// Share the HTTP watcher when both listeners use the same
			// certificate pair.
			w := certWatcher
			if w == nil ||
				cfg.Server.RESP.TLSCertFile != cfg.Server.HTTP.TLSCertFile ||
				cfg.Server.RESP.TLSKeyFile != cfg.Server.HTTP.TLSKeyFile {
				respCertWatcher, err = tlsroots.NewWatcher(
					cfg.Server.RESP.TLSCertFile,
					cfg.Server.RESP.TLSKeyFile,
					tlsroots.WithLogger(slog.Default()),
				)
				if err != nil {
					return fmt.Errorf("load resp tls certificate: %w", err)
				}
				respCertWatcher.StartAsync()
				w = respCertWatcher
			}
			respCfg.TLSConfig = &tls.Config{
				GetCertificate: w.GetCertificate,
				MinVersion:     tls.VersionTLS12,
			}
		}
		respServer = redisserver.New(respCfg, storeSvc, authSvc, log, metrics)
		if err := respServer.Start(ctx); err != nil {
			return fmt.Errorf("start redis listener: %w", err)
		}
	}

	// Config watcher: log level follows config file edits
	confWatcher := watchConfig(*configFile, *logLevel, log)

	// Graceful shutdown; hooks run in reverse registration order
	shutdownHandler := shutdown.NewHandler(30*time.Second, log)
	shutdownHandler.OnShutdown("store-service", func(ctx context.Context) error {
		return storeSvc.Close()
	})
	shutdownHandler.OnShutdown("keyring", func(ctx context.Context) error {
		return ring.Close()
	})
	if confWatcher != nil {
		shutdownHandler.OnShutdown("config-watcher", func(ctx context.Context) error {
			return confWatcher.Stop()
		})
	}
	if certWatcher != nil {
		shutdownHandler.OnShutdown("cert-watcher", func(ctx context.Context) error {
			certWatcher.Stop()
			return nil
		})
	}
	if respCertWatcher != nil {
		shutdownHandler.OnShutdown("resp-cert-watcher", func(ctx context.Context) error {
			respCertWatcher.Stop()
			return nil
		})
	}
	if respServer != nil {
		shutdownHandler.OnShutdown("redis-listener", respServer.Shutdown)
	}
	shutdownHandler.OnShutdown("http-server", httpServer.Shutdown)

	// Start HTTP server in goroutine
	go func() {
		log.Info("http server listening", "addr", cfg.Server.HTTP.Addr, "tls", useTLS)

		var err error
		if useTLS {
			// Certificates come from the watcher via GetCertificate
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			shutdownHandler.Trigger("http server failed")
		}
	}()

	log.Info("server started")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment, layers the
// --log-level flag on top, and verifies the result.
func loadConfig(configFile, logLevel string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	var overrides []map[string]any
	if logLevel != "" {
		overrides = append(overrides, map[string]any{"log.level": logLevel})
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg, overrides...); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger builds the process logger and installs it as the default
// for both the logger package and slog.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	logger.SetDefault(log)
	return log, nil
}

// bootstrapAdmin creates the first admin key on a fresh keyring. The
// secret goes to stderr because the structured logger redacts jkas_
// values; this is the only time it is visible.
func bootstrapAdmin(ctx context.Context, authSvc *service.AuthService, secret string, log logger.Logger) error {
	created, err := authSvc.BootstrapAdminKey(ctx, secret)
	if err != nil {
		return err
	}

	log.Info("bootstrap admin key created", "key_id", created.KeyID)
	fmt.Fprintf(os.Stderr,
		"\nBootstrap admin API key created. Save the secret now; it cannot be shown again.\n\n"+
			"  Key ID: %s\n"+
			"  Secret: %s\n\n",
		created.KeyID, created.Secret)
	return nil
}

// attachDefaultStore attaches db0 under the storage root, inheriting
// the configured snapshot policy. A store already in the catalog from
// a previous run is left as is.
func attachDefaultStore(ctx context.Context, storeSvc *service.StoreService, cfg *config.ServerConfig) error {
	req := &service.AttachStoreRequest{
		Name:       "db0",
		Path:       cfg.StorePath("db0"),
		Indented:   cfg.Storage.Indent,
		AttachedBy: "config",
	}
	if cfg.Storage.Snapshots.Enabled {
		req.Snapshots = domain.SnapshotPolicy{
			Enabled:    true,
			Dir:        cfg.SnapshotDir(),
			IntervalMS: cfg.Storage.Snapshots.Interval.Milliseconds(),
			Indented:   cfg.Storage.Indent,
			Max:        cfg.Storage.Snapshots.Keep,
		}
	}

	if _, err := storeSvc.Attach(ctx, req); err != nil {
		if errors.Is(err, domain.ErrStoreConflict) {
			return nil
		}
		return err
	}
	return nil
}

// watchConfig reloads the log level when the config file changes. A
// --log-level flag pins the level, so no watcher is started then.
func watchConfig(configFile, flagLevel string, log logger.Logger) *confloader.Watcher {
	if configFile == "" || flagLevel != "" {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(slog.Default()))
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return nil
	}
	if err := w.Watch(configFile); err != nil {
		log.Warn("config watch failed", "path", configFile, "error", err)
		w.Stop()
		return nil
	}

	w.OnChange(func(path string) {
		fresh := config.Default()
		loader := confloader.NewLoader(confloader.WithConfigFile(configFile))
		if err := loader.Load(fresh); err != nil {
			log.Warn("config reload failed", "path", path, "error", err)
			return
		}

		if fresh.Log.Level != logger.GetLevel() {
			logger.SetLevel(fresh.Log.Level)
			log.Info("log level changed", "level", fresh.Log.Level)
		}
	})

	w.StartAsync()
	return w
}

// storeStats adapts the store service to the metrics collector.
type storeStats struct {
	svc *service.StoreService
}

// StoreStats samples every attached store at scrape time.
func (a *storeStats) StoreStats() []metric.StoreStat {
	ctx := context.Background()
	list, err := a.svc.ListStores(ctx)
	if err != nil {
		return nil
	}

	stats := make([]metric.StoreStat, 0, list.Total)
	for _, info := range list.Items {
		stat := metric.StoreStat{Name: info.Name}
		if desc, err := a.svc.Describe(ctx, &service.DescribeStoreRequest{Name: info.Name}); err == nil {
			stat.Keys = desc.Stats.Keys
			stat.SchedulerHalted = desc.SchedulerHalted
		}
		if fi, err := os.Stat(info.Path); err == nil {
			stat.FileBytes = fi.Size()
		}
		stats = append(stats, stat)
	}
	return stats
}
