package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/weather-anomaly-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-anomaly-service/internal/adapter/kafka"
	"github.com/couchcryptid/weather-anomaly-service/internal/adapter/zonal"
	"github.com/couchcryptid/weather-anomaly-service/internal/analysis"
	"github.com/couchcryptid/weather-anomaly-service/internal/config"
	"github.com/couchcryptid/weather-anomaly-service/internal/domain"
	"github.com/couchcryptid/weather-anomaly-service/internal/geo"
	"github.com/couchcryptid/weather-anomaly-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	units, err := geo.LoadUnits(cfg.BoundaryPath)
	if err != nil {
		logger.Error("failed to load boundary dataset", "path", cfg.BoundaryPath, "error", err)
		os.Exit(1)
	}
	baselines, err := domain.LoadBaselines(cfg.BaselinePath)
	if err != nil {
		logger.Error("failed to load baselines", "path", cfg.BaselinePath, "error", err)
		os.Exit(1)
	}
	logger.Info("reference data loaded", "units", len(units), "baseline_records", baselines.Len())

	client := zonal.NewClient(cfg.ZonalBaseURL, cfg.ZonalTimeout, logger, metrics)
	backend := zonal.NewCachedAggregator(client, cfg.ZonalCacheSize, metrics)

	// Results sink (feature-flagged via KAFKA_BROKERS / KAFKA_ENABLED).
	var sink analysis.ResultSink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		logger.Info("kafka result sink enabled", "topic", cfg.KafkaResultTopic)
	} else {
		logger.Info("kafka result sink disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	scheduler := analysis.NewScheduler(backend, baselines, logger, metrics, clock, cfg.BatchSize, cfg.BatchDelay)
	service := analysis.NewService(ctx, scheduler, units, logger, metrics, clock, sink)
	index := geo.NewIndex(units)

	srv := httpadapter.NewServer(cfg.HTTPAddr, service, index, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
