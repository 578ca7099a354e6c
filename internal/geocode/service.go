package geocode

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/cache"
	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// geocodeTimeout bounds a single upstream lookup.
const geocodeTimeout = 10 * time.Second

// ServiceConfig holds configuration for the geocoding service.
type ServiceConfig struct {
	// Geocoder is the upstream address resolver.
	Geocoder Geocoder

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long resolved addresses stay fresh (default: 24 hours).
	// Addresses move rarely, so a long TTL is appropriate.
	CacheTTL time.Duration

	// MaxEntries caps the cache (default: 512).
	MaxEntries int

	// Clock overrides time for tests.
	Clock cache.Clock
}

// Service resolves addresses through a long-lived cache keyed by the
// normalized query.
type Service struct {
	geocoder Geocoder
	logger   zerolog.Logger
	results  *cache.Store[geo.Location]
}

// NewService creates a new geocoding service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}
	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = 512
	}

	return &Service{
		geocoder: cfg.Geocoder,
		logger:   cfg.Logger,
		results: cache.New[geo.Location](cache.Config{
			Name:         "geocode",
			TTL:          cacheTTL,
			MaxEntries:   maxEntries,
			FetchTimeout: geocodeTimeout,
			Clock:        cfg.Clock,
			Logger:       cfg.Logger,
		}),
	}
}

// Geocode resolves an address. Queries differing only in case or spacing
// share a cache entry. Failures are expected to be consumed silently by the
// caller; this only logs at Debug.
func (s *Service) Geocode(ctx context.Context, address string) (geo.Location, error) {
	query := NormalizeQuery(address)
	if query == "" {
		return geo.Location{}, ErrEmptyQuery
	}

	return s.results.Get(ctx, query, func(ctx context.Context) (geo.Location, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, geocodeTimeout)
		defer cancel()

		s.logger.Debug().Str("query", query).Str("provider", s.geocoder.Name()).Msg("geocoding address")
		loc, err := s.geocoder.Geocode(fetchCtx, query)
		if err != nil {
			s.logger.Debug().Err(err).Str("query", query).Msg("geocoding failed")
			return geo.Location{}, err
		}
		return loc, nil
	})
}

// ProviderName returns the upstream provider name.
func (s *Service) ProviderName() string {
	return s.geocoder.Name()
}

// InvalidateCache clears all cached resolutions.
func (s *Service) InvalidateCache() {
	s.results.InvalidateAll()
}

// CacheStats reports cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.results.Stats()
}

// Close releases cache resources.
func (s *Service) Close() {
	s.results.Close()
}
