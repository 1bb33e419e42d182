package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/whovapes/internal/adapters/http/api"
	"github.com/okian/whovapes/internal/adapters/http/swagger"
	"github.com/okian/whovapes/internal/adapters/repository"
	"github.com/okian/whovapes/internal/adapters/wikipedia"
	app "github.com/okian/whovapes/internal/app"
	"github.com/okian/whovapes/internal/config"
	"github.com/okian/whovapes/pkg/logger"
	"github.com/okian/whovapes/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 15 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
	wikipediaRateWindow    = time.Minute
)

// application is everything main owns and must shut down.
type application struct {
	store   *repository.GormStore
	service *app.Service
	handler http.Handler
}

func main() {
	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(); err != nil {
		logger.Get().Error(context.Background(), "whovapes exited", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run() error {
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			log.Warn(ctx, "store close failed", logger.Error(err))
		}
	}()

	if err := a.service.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, a.service)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			a.service.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	a.service.Stop(shutdownCtx)

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// build wires the store, Wikipedia client, service and HTTP handler from cfg.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN,
		repository.WithScanPageSize(cfg.ScanPageSize),
		repository.WithLogger(log.Named("store")),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	wiki := wikipedia.New(
		wikipedia.WithBaseURL(cfg.WikipediaBaseURL),
		wikipedia.WithTimeout(cfg.WikipediaTimeout()),
		wikipedia.WithCacheTTL(cfg.WikipediaCacheTTL()),
		wikipedia.WithCacheSize(cfg.WikipediaCacheSize),
		wikipedia.WithRateLimit(cfg.WikipediaRateLimit, wikipediaRateWindow),
		wikipedia.WithConcurrency(cfg.WikipediaEnrichConcurrency),
		wikipedia.WithLogger(log.Named("wikipedia")),
	)

	svc := app.New(store,
		app.WithLogger(log.Named("service")),
		app.WithDefaultK(cfg.DefaultKFactor),
		app.WithVoteQuota(cfg.VoteLimit, cfg.VoteWindow()),
		app.WithConfirmVoteQuota(cfg.ConfirmVoteLimit, cfg.ConfirmVoteWindow()),
		app.WithAdminSecret(cfg.AdminSecret),
		app.WithSkipQueueSize(cfg.SkipQueueSize),
		app.WithWorkerCount(cfg.SkipWorkerCount),
		app.WithMaxRecentMatches(cfg.MaxRecentMatches),
		app.WithIdempotencyCacheSize(cfg.IdempotencyCacheSize),
		app.WithPairSnapshotTTL(cfg.SnapshotTTL()),
		app.WithEnricher(wiki),
	)
	if cfg.AdminSecret == "" {
		log.Warn(ctx, "admin_secret is empty; admin endpoints are disabled")
	}

	apiServer := api.NewServer(svc,
		api.WithLogger(log.Named("http")),
		api.WithTrustedProxies(proxies...),
	)
	handler := apiServer.Handler(ctx, api.CORSConfig{AllowedOrigins: cfg.Origins()},
		func(mux *http.ServeMux) { swagger.Register(ctx, mux) },
	)

	return &application{store: store, service: svc, handler: handler}, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
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

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics refreshes the skip queue and worker gauges.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	queued, workers := svc.Workload(ctx)
	metrics.UpdateQueueSize(queued)
	metrics.UpdateWorkerCount(workers)
}
