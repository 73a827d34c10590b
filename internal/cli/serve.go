package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/summons-reconcile/internal/api"
	"github.com/eshaffer321/summons-reconcile/internal/application/service"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/logging"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/storage"
	"github.com/eshaffer321/summons-reconcile/internal/observability"
)

const shutdownTimeout = 30 * time.Second

// RunServe runs the API server until ctx is cancelled.
func RunServe(ctx context.Context, cfg *config.Config, flags ServeFlags) error {
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	var (
		metrics  *observability.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Observability.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(reg)
		gatherer = reg
	}

	svc := service.NewReconcileService(cfg.Matching, store, metrics, logger)

	apiCfg := api.Config{
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.API.AllowedOrigins,
		MetricsPath:    cfg.Observability.Metrics.Path,
	}
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}
	server := api.NewServer(apiCfg, store, svc, gatherer, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := svc.Close(); err != nil {
			logger.Error("failed to stop reconciliation", slog.Any("error", err))
		}
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}
