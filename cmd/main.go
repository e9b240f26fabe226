package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/okian/bareme/internal/adapters/cache"
	"github.com/okian/bareme/internal/adapters/http/api"
	"github.com/okian/bareme/internal/adapters/http/swagger"
	"github.com/okian/bareme/internal/adapters/portal"
	app "github.com/okian/bareme/internal/app"
	"github.com/okian/bareme/internal/config"
	"github.com/okian/bareme/internal/domain/scoring"
	"github.com/okian/bareme/pkg/logger"
	"github.com/okian/bareme/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// HTTP server timeout constants. The write timeout covers the portal round trips.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 60 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if cfg.DeviceUUID == "" {
		cfg.DeviceUUID = uuid.NewString()
		loggerInstance.Info(ctx, "generated device uuid", logger.String("device_uuid", cfg.DeviceUUID))
	}

	reportCache := newReportCache(ctx, cfg)
	defer func() { _ = reportCache.Close() }()

	svc := newService(cfg, reportCache, loggerInstance)

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, loggerInstance),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return nil
}

// newReportCache connects the Redis cache when enabled. A disabled or
// unreachable cache is returned as a no-op.
func newReportCache(ctx context.Context, cfg *config.Config) *cache.ReportCache {
	if !cfg.CacheEnabled {
		return cache.Disabled()
	}
	return cache.NewRedis(ctx, &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cache.WithLogger(logger.Named("cache")))
}

// newService wires the portal client and the scoring table into the report service.
func newService(cfg *config.Config, reportCache *cache.ReportCache, log logger.Logger) *app.Service {
	client := portal.NewHTTPClient(cfg.PortalBaseURL,
		portal.WithTimeout(time.Duration(cfg.PortalTimeoutMS)*time.Millisecond),
		portal.WithMaxRetries(cfg.PortalMaxRetries),
		portal.WithLogger(log.Named("portal")),
	)

	opts := []app.Option{
		app.WithLogger(log.Named(app.LogComponent)),
		app.WithAuthenticator(client),
		app.WithPinCode(cfg.PinCode),
		app.WithDeviceUUID(cfg.DeviceUUID),
		app.WithBareme(scoring.DefaultBareme().Merge(cfg.LevelPoints)),
		app.WithRoundingStep(cfg.RoundingStep),
		app.WithCacheTTL(time.Duration(cfg.CacheTTLSeconds) * time.Second),
	}
	if reportCache.Enabled() {
		opts = append(opts, app.WithCache(reportCache))
	}
	return app.New(opts...)
}

// newMux registers the docs and business routes.
func newMux(ctx context.Context, svc *app.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Register API docs under /api-docs
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc, api.WithLogger(log))
	apiServer.Register(ctx, mux)

	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval) // Update every 10 seconds
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	// Update memory usage
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	// Update goroutine count
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	// Update GC pause time
	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
