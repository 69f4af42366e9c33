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

	"github.com/okian/funbet/internal/adapters/http/api"
	"github.com/okian/funbet/internal/adapters/http/swagger"
	"github.com/okian/funbet/internal/adapters/notify"
	"github.com/okian/funbet/internal/adapters/repository"
	app "github.com/okian/funbet/internal/app"
	"github.com/okian/funbet/internal/config"
	"github.com/okian/funbet/internal/domain/wagerbook"
	"github.com/okian/funbet/pkg/logger"
	"github.com/okian/funbet/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		// Logger isn't available yet.
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Get().Error(ctx, "failed to load config", logger.Error(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "funbet exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled and then shuts everything down.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	mopts, err := metricsOptions(cfg)
	if err != nil {
		return err
	}
	metrics.Configure(mopts...)

	svc, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)

	srv := newHTTPServer(ctx, cfg, svc)
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(serr))
	}
	if serr := svc.Stop(shutdownCtx); serr != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(serr))
	}
	log.Info(ctx, "server stopped")
	return err
}

// metricsOptions maps the metrics_* settings onto manager options.
func metricsOptions(cfg *config.Config) ([]metrics.Option, error) {
	buckets, err := cfg.HistogramBuckets()
	if err != nil {
		return nil, err
	}
	labels, err := cfg.ConstLabels()
	if err != nil {
		return nil, err
	}
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithMetricPrefix(cfg.MetricsPrefix),
		metrics.WithHistogramBuckets(buckets),
		metrics.WithCustomLabels(labels),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
	}, nil
}

// buildService opens the configured store and notifier and hands them to a
// new, not yet started, service.
func buildService(ctx context.Context, cfg *config.Config) (*app.Service, error) {
	mode, err := wagerbook.ParseMode(cfg.BettorStrategy)
	if err != nil {
		return nil, err
	}
	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.StoreTarget())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	pub, err := notify.Open(ctx, cfg.NotifyDriver,
		notify.WithKafka(cfg.Brokers(), cfg.KafkaTopic),
		notify.WithRedis(cfg.RedisAddr, cfg.RedisChannel),
		notify.WithNATS(cfg.NATSURL, cfg.NATSSubject),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open notifier: %w", err)
	}
	logger.Get().Info(ctx, "backends selected",
		logger.String("store", cfg.StoreDriver),
		logger.String("notify", cfg.NotifyDriver))

	return app.New(
		app.WithLogger(logger.Get()),
		app.WithStore(store),
		app.WithPublisher(pub),
		app.WithBailoutFloor(cfg.BailoutFloor),
		app.WithBettorMode(mode),
		app.WithBettorLimit(cfg.BettorDisplayCount),
		app.WithQueueSize(cfg.SettlementQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDegradedAfter(cfg.PayoutDegradedAfter()),
		app.WithStartingBalance(cfg.StartingBalance),
	), nil
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(svc, svc, api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit)).Register(ctx, mux)
	swagger.Register(ctx, mux)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater refreshes the system gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
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

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
