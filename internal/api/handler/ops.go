package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
	"github.com/cleanairroute/cleanairroute/internal/provider/resilience"
	"github.com/cleanairroute/cleanairroute/internal/session"
)

// readinessTimeout bounds each dependency probe.
const readinessTimeout = 5 * time.Second

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	air       *airquality.Service
	providers *resilience.Registry
	sessions  *session.Manager
	ready     func(ctx context.Context) error
}

// OpsConfig wires the subsystems the operational endpoints report on.
type OpsConfig struct {
	Version   string
	BuildTime string
	// AirQuality exposes the shared cache counters (optional).
	AirQuality *airquality.Service
	// Providers tracks upstream circuit breakers (optional).
	Providers *resilience.Registry
	// Sessions reports live session occupancy (optional).
	Sessions *session.Manager
	// Ready probes the backing store, typically a database ping (optional).
	Ready func(ctx context.Context) error
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		air:       cfg.AirQuality,
		providers: cfg.Providers,
		sessions:  cfg.Sessions,
		ready:     cfg.Ready,
	}
}

// Health handles GET /healthz - liveness check.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// Readiness handles GET /readyz - readiness check against dependencies.
func (h *OpsHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	readiness := models.Readiness{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Checks: map[string]string{},
	}
	status := http.StatusOK

	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			readiness.Status = models.HealthStatusFail
			readiness.Checks["store"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			readiness.Checks["store"] = "ok"
		}
	}

	response.JSON(w, r, status, readiness)
}

// CacheReport handles GET /v1/ops/cache - shared cache counters.
func (h *OpsHandler) CacheReport(w http.ResponseWriter, r *http.Request) {
	report := models.CacheReport{}
	if h.air != nil {
		report.Caches = h.air.CacheStats()
	}
	if h.sessions != nil {
		report.Sessions = h.sessions.Len()
	}
	response.JSON(w, r, http.StatusOK, report)
}

// Breakers handles GET /v1/ops/breakers - upstream circuit states.
func (h *OpsHandler) Breakers(w http.ResponseWriter, r *http.Request) {
	var report models.BreakerReport
	if h.providers != nil {
		report = models.BreakerReportFromHealth(h.providers.GetAllHealth())
	}
	if report.Providers == nil {
		report.Providers = []models.BreakerStatus{}
	}
	response.JSON(w, r, http.StatusOK, report)
}
