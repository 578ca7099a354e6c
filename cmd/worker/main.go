// Package main provides the entrypoint for the CleanAirRoute cache warmer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/airquality/cleanairapi"
	"github.com/cleanairroute/cleanairroute/internal/config"
	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/provider/resilience"
	"github.com/cleanairroute/cleanairroute/internal/telemetry"
	"github.com/cleanairroute/cleanairroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// localWarmInterval drives the fallback timer when no Pub/Sub subscription
// is configured. It matches the current-conditions TTL so cache entries
// never go cold between runs.
const localWarmInterval = 10 * time.Minute

func main() {
	const serviceName = "cleanairroute-worker"

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("loading configuration failed")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting CleanAirRoute cache warmer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	bounds, err := geo.ParseBounds(cfg.Worker.MetroBounds)
	if err != nil {
		log.Fatal().Err(err).Str("bounds", cfg.Worker.MetroBounds).Msg("invalid metro bounds")
	}
	area := worker.SeoulMetroArea()
	area.Bounds = bounds

	registry := resilience.NewRegistry()
	airClient := cleanairapi.NewClient(cleanairapi.ClientConfig{
		BaseURL:  cfg.Providers.AirBaseURL,
		APIKey:   cfg.Providers.AirAPIKey.Unmask(),
		Registry: registry,
		Logger:   log,
	})
	// The metro warm plan holds more cells than the default cache cap, so
	// give the worker's cache room for a full run plus the overlay.
	airService := airquality.NewService(airquality.ServiceConfig{
		Provider:   airClient,
		Logger:     log,
		MaxEntries: 512,
	})
	defer airService.Close()

	warmConfig := worker.WarmConfig{
		Area:        area,
		Resolution:  cfg.Worker.H3Resolution,
		Concurrency: cfg.Worker.Concurrency,
		CellTimeout: cfg.Worker.CellTimeout,
		WarmCurrent: true,
		WarmHeatmap: true,
	}
	warmJob := worker.NewWarmJob(worker.WarmJobConfig{
		Config:     warmConfig,
		Logger:     log,
		AirQuality: airService,
	})
	log.Info().
		Str("area", area.Name).
		Int("total_cells", warmConfig.TotalCells()).
		Int("resolution", warmConfig.Resolution).
		Msg("warm plan ready")

	// Pub/Sub client setup happens before the loop starts so a broken
	// subscription fails the process instead of idling.
	var handler *worker.PubSubHandler
	if cfg.Worker.ProjectID != "" {
		handler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.ProjectID,
			SubscriptionName: cfg.Worker.SubscriptionID,
			WarmJob:          warmJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()
	}

	// Health endpoint for Cloud Run, with warm metrics attached.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"metrics": warmJob.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health endpoint listening")
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Error().Err(serveErr).Msg("health server error")
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if handler != nil {
			// Receive blocks until the context is cancelled and every
			// outstanding message has been handled.
			if recvErr := handler.Start(ctx); recvErr != nil && !errors.Is(recvErr, context.Canceled) {
				log.Error().Err(recvErr).Msg("pubsub receive failed")
			}
			return
		}
		runLocalWarmLoop(ctx, log, warmJob)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down cache warmer")
	cancel()

	// Let in-flight warm runs drain before tearing down the health server.
	select {
	case <-loopDone:
	case <-time.After(30 * time.Second):
		log.Warn().Msg("warm loop did not drain in time")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shut down")
	}

	log.Info().Msg("cache warmer stopped")
}

// runLocalWarmLoop warms on a fixed interval when no Pub/Sub subscription is
// configured, so local environments still get hot caches.
func runLocalWarmLoop(ctx context.Context, log zerolog.Logger, job *worker.WarmJob) {
	log.Info().
		Dur("interval", localWarmInterval).
		Msg("no pubsub project configured, warming on a local timer")

	job.Run(ctx)

	ticker := time.NewTicker(localWarmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job.Run(ctx)
		}
	}
}
