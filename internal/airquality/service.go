package airquality

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/cache"
	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// Per-fetch upstream timeouts.
const (
	currentFetchTimeout  = 15 * time.Second
	heatmapFetchTimeout  = 15 * time.Second
	forecastFetchTimeout = 20 * time.Second
)

// Cache key grid: readings inside the same 0.01 degree cell share an entry.
const cacheCellDeg = 0.01

// Forecast horizon limits, matching the gateway contract.
const (
	minForecastHorizon     = 1
	maxForecastHorizon     = 168
	defaultForecastHorizon = 72
)

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Provider is the air quality data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CurrentTTL caches current conditions (default: 10 minutes).
	CurrentTTL time.Duration

	// HeatmapTTL caches heatmap tiles (default: 15 minutes).
	HeatmapTTL time.Duration

	// ForecastTTL caches forecasts (default: 30 minutes).
	ForecastTTL time.Duration

	// StaleFor allows serving expired entries while revalidating and on
	// provider errors (default: 30 minutes).
	StaleFor time.Duration

	// MaxEntries caps each cache namespace (default: 256).
	MaxEntries int

	// Clock overrides time for tests.
	Clock cache.Clock
}

// Service provides air quality data with per-dataset caching.
type Service struct {
	provider Provider
	logger   zerolog.Logger

	current  *cache.Store[*Conditions]
	heatmap  *cache.Store[*Heatmap]
	forecast *cache.Store[*Forecast]
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	currentTTL := cfg.CurrentTTL
	if currentTTL == 0 {
		currentTTL = 10 * time.Minute
	}
	heatmapTTL := cfg.HeatmapTTL
	if heatmapTTL == 0 {
		heatmapTTL = 15 * time.Minute
	}
	forecastTTL := cfg.ForecastTTL
	if forecastTTL == 0 {
		forecastTTL = 30 * time.Minute
	}
	staleFor := cfg.StaleFor
	if staleFor == 0 {
		staleFor = 30 * time.Minute
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		current: cache.New[*Conditions](cache.Config{
			Name:         "aq_current",
			TTL:          currentTTL,
			StaleFor:     staleFor,
			MaxEntries:   cfg.MaxEntries,
			FetchTimeout: currentFetchTimeout,
			Clock:        cfg.Clock,
			Logger:       cfg.Logger,
		}),
		heatmap: cache.New[*Heatmap](cache.Config{
			Name:         "aq_heatmap",
			TTL:          heatmapTTL,
			StaleFor:     staleFor,
			MaxEntries:   cfg.MaxEntries,
			FetchTimeout: heatmapFetchTimeout,
			Clock:        cfg.Clock,
			Logger:       cfg.Logger,
		}),
		forecast: cache.New[*Forecast](cache.Config{
			Name:         "aq_forecast",
			TTL:          forecastTTL,
			StaleFor:     staleFor,
			MaxEntries:   cfg.MaxEntries,
			FetchTimeout: forecastFetchTimeout,
			Clock:        cfg.Clock,
			Logger:       cfg.Logger,
		}),
	}
}

// Current returns current conditions around a point. Requests within the same
// 0.01 degree grid cell share a cache entry.
func (s *Service) Current(ctx context.Context, p geo.Point) (*Conditions, error) {
	if err := geo.ValidatePoint(p); err != nil {
		return nil, ErrInvalidCoordinates
	}

	key := geo.QuantizeKey(p, cacheCellDeg)
	return s.current.Get(ctx, key, func(ctx context.Context) (*Conditions, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, currentFetchTimeout)
		defer cancel()

		s.logger.Debug().Str("key", key).Msg("fetching current conditions")
		return s.provider.Current(fetchCtx, p)
	})
}

// HeatmapByBounds returns the pollution overlay for the given bounds. The
// cache key quantizes the bounds corners so small pans reuse the same tile.
func (s *Service) HeatmapByBounds(ctx context.Context, b geo.Bounds, pollutant Pollutant) (*Heatmap, error) {
	if err := geo.ValidateBounds(b); err != nil {
		return nil, err
	}
	if pollutant == "" {
		pollutant = PollutantPM25
	}
	if !heatmapPollutantSupported(pollutant) {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "UNSUPPORTED_POLLUTANT",
			Message:  "pollutant not available as a heatmap layer: " + string(pollutant),
			Err:      ErrNoData,
		}
	}

	key := b.QuantizedKey(cacheCellDeg) + ":" + string(pollutant)
	return s.heatmap.Get(ctx, key, func(ctx context.Context) (*Heatmap, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, heatmapFetchTimeout)
		defer cancel()

		s.logger.Debug().Str("key", key).Msg("fetching heatmap tile")
		return s.provider.Heatmap(fetchCtx, b, pollutant)
	})
}

// ForecastAt returns hourly predictions for a point. The horizon is clamped
// to the gateway's 1-168 hour range; zero selects the 72 hour default.
func (s *Service) ForecastAt(ctx context.Context, p geo.Point, horizonHours int) (*Forecast, error) {
	if err := geo.ValidatePoint(p); err != nil {
		return nil, ErrInvalidCoordinates
	}
	if horizonHours == 0 {
		horizonHours = defaultForecastHorizon
	}
	if horizonHours < minForecastHorizon {
		horizonHours = minForecastHorizon
	}
	if horizonHours > maxForecastHorizon {
		horizonHours = maxForecastHorizon
	}

	key := geo.QuantizeKey(p, cacheCellDeg) + ":" + strconv.Itoa(horizonHours)
	return s.forecast.Get(ctx, key, func(ctx context.Context) (*Forecast, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, forecastFetchTimeout)
		defer cancel()

		s.logger.Debug().Str("key", key).Int("horizon_hours", horizonHours).Msg("fetching forecast")
		return s.provider.Forecast(fetchCtx, p, horizonHours)
	})
}

func heatmapPollutantSupported(p Pollutant) bool {
	for _, supported := range HeatmapPollutants {
		if p == supported {
			return true
		}
	}
	return false
}

// InvalidateAll clears every cache namespace.
func (s *Service) InvalidateAll() {
	s.current.InvalidateAll()
	s.heatmap.InvalidateAll()
	s.forecast.InvalidateAll()
}

// CacheStats reports counters for each namespace.
func (s *Service) CacheStats() []cache.Stats {
	return []cache.Stats{
		s.current.Stats(),
		s.heatmap.Stats(),
		s.forecast.Stats(),
	}
}

// Close releases cache resources.
func (s *Service) Close() {
	s.current.Close()
	s.heatmap.Close()
	s.forecast.Close()
}
