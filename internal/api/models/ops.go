package models

import (
	"sort"

	"github.com/cleanairroute/cleanairroute/internal/cache"
	"github.com/cleanairroute/cleanairroute/internal/provider/resilience"
)

// HealthStatus represents the health status of the service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health is the liveness response.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// Readiness is the readiness response with per-dependency checks.
type Readiness struct {
	Status HealthStatus      `json:"status"`
	Time   Timestamp         `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}

// CacheReport surfaces the shared cache counters and session occupancy.
type CacheReport struct {
	Sessions int           `json:"sessions"`
	Caches   []cache.Stats `json:"caches"`
}

// BreakerStatus is the circuit state of one upstream provider.
type BreakerStatus struct {
	Provider            string     `json:"provider"`
	State               string     `json:"state"`
	Requests            uint32     `json:"requests"`
	TotalSuccesses      uint32     `json:"total_successes"`
	TotalFailures       uint32     `json:"total_failures"`
	ConsecutiveFailures uint32     `json:"consecutive_failures"`
	LastSuccessAt       *Timestamp `json:"last_success_at,omitempty"`
	LastFailureAt       *Timestamp `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// BreakerReport lists provider circuit states, sorted by provider name.
type BreakerReport struct {
	Providers []BreakerStatus `json:"providers"`
}

// BreakerReportFromHealth maps registry health entries to the wire form.
func BreakerReportFromHealth(health []*resilience.ProviderHealth) BreakerReport {
	out := BreakerReport{Providers: make([]BreakerStatus, 0, len(health))}
	for _, h := range health {
		out.Providers = append(out.Providers, BreakerStatus{
			Provider:            h.Name,
			State:               h.CircuitState.String(),
			Requests:            h.Counts.Requests,
			TotalSuccesses:      h.Counts.TotalSuccesses,
			TotalFailures:       h.Counts.TotalFailures,
			ConsecutiveFailures: h.Counts.ConsecutiveFailures,
			LastSuccessAt:       timestampPtr(h.LastSuccessAt),
			LastFailureAt:       timestampPtr(h.LastFailureAt),
			LastError:           h.LastError,
		})
	}
	sort.Slice(out.Providers, func(i, j int) bool {
		return out.Providers[i].Provider < out.Providers[j].Provider
	})
	return out
}
