// Package main provides the entrypoint for the CleanAirRoute API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/airquality/cleanairapi"
	"github.com/cleanairroute/cleanairroute/internal/api"
	"github.com/cleanairroute/cleanairroute/internal/api/middleware"
	"github.com/cleanairroute/cleanairroute/internal/auth"
	"github.com/cleanairroute/cleanairroute/internal/config"
	"github.com/cleanairroute/cleanairroute/internal/database"
	"github.com/cleanairroute/cleanairroute/internal/device"
	"github.com/cleanairroute/cleanairroute/internal/geocode"
	"github.com/cleanairroute/cleanairroute/internal/geocode/kakao"
	"github.com/cleanairroute/cleanairroute/internal/prefs"
	"github.com/cleanairroute/cleanairroute/internal/provider/resilience"
	"github.com/cleanairroute/cleanairroute/internal/routing"
	"github.com/cleanairroute/cleanairroute/internal/routing/routeapi"
	"github.com/cleanairroute/cleanairroute/internal/search"
	"github.com/cleanairroute/cleanairroute/internal/session"
	"github.com/cleanairroute/cleanairroute/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "cleanairroute-api"

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("loading configuration failed")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	// Setup structured logging
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
		Msg("starting CleanAirRoute API")

	if cfg.UsingDevSigningKey() {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	pool, err := database.Connect(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password.Unmask(),
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Name).
		Msg("database connected")

	// Upstream clients share one registry so the breaker states surface
	// together on /v1/ops/breakers.
	registry := resilience.NewRegistry()

	airClient := cleanairapi.NewClient(cleanairapi.ClientConfig{
		BaseURL:  cfg.Providers.AirBaseURL,
		APIKey:   cfg.Providers.AirAPIKey.Unmask(),
		Registry: registry,
		Logger:   log,
	})
	routeClient := routeapi.NewClient(routeapi.ClientConfig{
		BaseURL:  cfg.Providers.RouteBaseURL,
		APIKey:   cfg.Providers.RouteAPIKey.Unmask(),
		Registry: registry,
		Logger:   log,
	})
	geoClient := kakao.NewClient(kakao.ClientConfig{
		APIKey:   cfg.Providers.KakaoAPIKey.Unmask(),
		Registry: registry,
		Logger:   log,
	})

	// Initialize domain services
	airService := airquality.NewService(airquality.ServiceConfig{Provider: airClient, Logger: log})
	defer airService.Close()
	routingService := routing.NewService(routing.ServiceConfig{Provider: routeClient, Logger: log})
	defer routingService.Close()
	geocodeService := geocode.NewService(geocode.ServiceConfig{Geocoder: geoClient, Logger: log})
	defer geocodeService.Close()
	prefsService := prefs.NewService(prefs.ServiceConfig{Repo: prefs.NewPostgresRepository(pool), Logger: log})
	defer prefsService.Close()
	deviceService := device.NewService(device.ServiceConfig{Repo: device.NewPostgresRepository(pool), Logger: log})
	log.Info().Msg("domain services initialized")

	tokenService := auth.NewTokenService(auth.TokenConfig{
		SigningKey: cfg.Auth.SigningKey.Unmask(),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})

	// One live session per device, evicted when idle
	sessionManager := session.NewManager(session.ManagerConfig{
		Prefs:      prefsService,
		SearchRepo: search.NewPostgresRepository(pool),
		AirQuality: airService,
		Routing:    routingService,
		Geocoder:   geocodeService,
		Aspect:     cfg.Session.Aspect,
		IdleTTL:    cfg.Session.IdleTTL,
		SweepEvery: cfg.Session.SweepEvery,
		Logger:     log,
	})
	defer sessionManager.Close()
	log.Info().
		Dur("idle_ttl", cfg.Session.IdleTTL).
		Msg("session manager initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   serviceName,
		Metrics:       metrics,
		Sessions:      sessionManager,
		Devices:       deviceService,
		Tokens:        tokenService,
		AirQuality:    airService,
		Providers:     registry,
		RatePerMinute: cfg.Server.RatePerMinute,
		Ready:         pool.Ping,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
