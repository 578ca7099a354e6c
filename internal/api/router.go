// Package api provides the HTTP surface of the CleanAirRoute session service.
package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/api/handler"
	"github.com/cleanairroute/cleanairroute/internal/api/middleware"
	"github.com/cleanairroute/cleanairroute/internal/auth"
	"github.com/cleanairroute/cleanairroute/internal/device"
	"github.com/cleanairroute/cleanairroute/internal/provider/resilience"
	"github.com/cleanairroute/cleanairroute/internal/session"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Sessions   *session.Manager
	Devices    *device.Service
	Tokens     *auth.TokenService
	AirQuality *airquality.Service

	// Providers surfaces upstream circuit breakers on the ops endpoints.
	Providers *resilience.Registry

	// RatePerMinute is the per-token request budget (default 100).
	RatePerMinute int

	// Ready probes the backing store for /readyz.
	Ready func(ctx context.Context) error
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "cleanairroute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:    cfg.Version,
		BuildTime:  cfg.BuildTime,
		AirQuality: cfg.AirQuality,
		Providers:  cfg.Providers,
		Sessions:   cfg.Sessions,
		Ready:      cfg.Ready,
	})
	sessionHandler := handler.NewSessionHandler(cfg.Devices, cfg.Tokens, cfg.Sessions)
	viewportHandler := handler.NewViewportHandler(cfg.Sessions)
	searchHandler := handler.NewSearchHandler(cfg.Sessions)
	favoritesHandler := handler.NewFavoritesHandler(cfg.Sessions)
	notificationsHandler := handler.NewNotificationsHandler(cfg.Sessions)
	airQualityHandler := handler.NewAirQualityHandler(cfg.AirQuality)
	metadataHandler := handler.NewMetadataHandler()

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.Tokens)

	// Rate limits: issuance is IP-scoped, everything behind a token is
	// device-scoped so one noisy device cannot starve an IP it shares.
	issueRateLimit := middleware.RateLimitByIP(middleware.IssueRateLimit)
	publicRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	deviceRateLimit := middleware.RateLimitByDevice(middleware.PerTokenRateLimit(cfg.RatePerMinute))

	// Probes at the root, out of the versioned tree
	r.Get("/healthz", opsHandler.Health)
	r.Get("/readyz", opsHandler.Readiness)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Session issuance (public) - strict rate limiting
		r.With(issueRateLimit).Post("/sessions", sessionHandler.Issue)

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/cache", opsHandler.CacheReport)
			r.Get("/breakers", opsHandler.Breakers)
		})

		// Metadata endpoints (public) - standard rate limiting
		r.Route("/metadata", func(r chi.Router) {
			r.Use(publicRateLimit)
			r.Get("/pollutants", metadataHandler.Pollutants)
		})

		// Air quality endpoints (authenticated) - shared cache underneath
		r.Route("/air-quality", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(deviceRateLimit)
			r.Get("/current", airQualityHandler.Current)
			r.Get("/forecast", airQualityHandler.Forecast)
			r.Get("/heatmap", airQualityHandler.Heatmap)
		})

		// Session surface (authenticated) - one session per device
		r.Route("/session", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(deviceRateLimit)

			r.Get("/state", sessionHandler.State)

			r.Route("/viewport", func(r chi.Router) {
				r.Post("/camera", viewportHandler.Camera)
				r.Post("/fit", viewportHandler.Fit)
				r.Post("/toggles", viewportHandler.Toggles)
			})

			r.Post("/map/click", viewportHandler.MapClick)

			r.Route("/search", func(r chi.Router) {
				r.Post("/start", searchHandler.Start)
				r.Post("/end", searchHandler.End)
				r.Post("/swap", searchHandler.Swap)
				r.Post("/execute", searchHandler.Execute)
			})

			r.Route("/routes", func(r chi.Router) {
				r.Post("/{routeId}/select", searchHandler.Select)
				r.Delete("/selection", searchHandler.ClearSelection)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationsHandler.List)
				r.Delete("/", notificationsHandler.DismissAll)
				r.Delete("/{notificationId}", notificationsHandler.Dismiss)
			})

			r.Route("/favorites", func(r chi.Router) {
				r.Get("/", favoritesHandler.List)
				r.Post("/", favoritesHandler.Create)
				r.Delete("/{favoriteId}", favoritesHandler.Delete)
			})

			r.Get("/history", searchHandler.History)
			r.Get("/recents", searchHandler.Recents)
		})
	})

	return r
}
