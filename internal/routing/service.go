package routing

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/cache"
	"github.com/cleanairroute/cleanairroute/internal/geo"
)

const (
	// searchTimeout bounds a single route engine call.
	searchTimeout = 30 * time.Second

	// cacheCellDeg groups nearby endpoints into one cache entry (~1.1km).
	cacheCellDeg = 0.01
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the route search provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long computed routes stay fresh (default: 5 minutes).
	CacheTTL time.Duration

	// StaleFor allows serving expired results while revalidating or when
	// the provider errors (default: 15 minutes).
	StaleFor time.Duration

	// MaxEntries bounds the route cache (default: 128).
	MaxEntries int

	// Clock overrides time for tests.
	Clock cache.Clock
}

// Service provides cached route search with air-quality aware ranking.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	results  *cache.Store[*SearchResult]
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	staleFor := cfg.StaleFor
	if staleFor == 0 {
		staleFor = 15 * time.Minute
	}

	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = 128
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		results: cache.New[*SearchResult](cache.Config{
			Name:         "routes",
			TTL:          cacheTTL,
			StaleFor:     staleFor,
			MaxEntries:   maxEntries,
			FetchTimeout: searchTimeout,
			Clock:        cfg.Clock,
			Logger:       cfg.Logger,
		}),
	}
}

// Search computes route alternatives between start and end. Results are
// cached per endpoint grid cell and kind set; routes come back sorted by
// AirScore descending with OptimalID populated.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := geo.ValidatePoint(req.Start); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_START",
			Message:  "invalid start coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}
	if err := geo.ValidatePoint(req.End); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_END",
			Message:  "invalid end coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}

	kinds, err := normalizeKinds(req.Kinds)
	if err != nil {
		return nil, err
	}
	req.Kinds = kinds

	key := s.cacheKey(req)

	return s.results.Get(ctx, key, func(fctx context.Context) (*SearchResult, error) {
		s.logger.Debug().
			Float64("start_lat", req.Start.Lat).
			Float64("start_lon", req.Start.Lon).
			Float64("end_lat", req.End.Lat).
			Float64("end_lon", req.End.Lon).
			Str("kinds", joinKinds(req.Kinds)).
			Str("provider", s.provider.Name()).
			Msg("fetching routes from provider")

		result, err := s.provider.Routes(fctx, req)
		if err != nil {
			s.logger.Error().Err(err).
				Float64("start_lat", req.Start.Lat).
				Float64("start_lon", req.Start.Lon).
				Float64("end_lat", req.End.Lat).
				Float64("end_lon", req.End.Lon).
				Msg("route search failed")
			return nil, err
		}

		Rank(result)

		s.logger.Debug().
			Int("route_count", len(result.Routes)).
			Str("optimal_id", result.OptimalID).
			Msg("ranked route alternatives")

		return result, nil
	})
}

// Rank sorts routes by AirScore descending and fills OptimalID when the
// provider did not choose one. The sort is stable so provider order breaks
// ties.
func Rank(result *SearchResult) {
	sort.SliceStable(result.Routes, func(a, b int) bool {
		return result.Routes[a].AirScore > result.Routes[b].AirScore
	})

	if result.OptimalID != "" && result.RouteByID(result.OptimalID) != nil {
		return
	}

	result.OptimalID = ""
	best := -1.0
	for i := range result.Routes {
		if score := OptimalScore(result.Routes[i]); score > best {
			best = score
			result.OptimalID = result.Routes[i].ID
		}
	}
}

// OptimalScore combines air quality and time efficiency: 70% air score,
// 30% time score, where every two minutes of travel cost one time point.
func OptimalScore(r Route) float64 {
	timeScore := 100 - float64(r.DurationMinutes)*2
	if timeScore < 0 {
		timeScore = 0
	}
	return float64(r.AirScore)*0.7 + timeScore*0.3
}

// cacheKey quantizes both endpoints into grid cells so nearby searches
// share an entry. Format: {kinds}:{startCell}:{endCell}.
func (s *Service) cacheKey(req SearchRequest) string {
	return joinKinds(req.Kinds) + ":" +
		geo.QuantizeKey(req.Start, cacheCellDeg) + ":" +
		geo.QuantizeKey(req.End, cacheCellDeg)
}

// normalizeKinds validates and deduplicates the requested kinds, defaulting
// to all of them.
func normalizeKinds(kinds []Kind) ([]Kind, error) {
	if len(kinds) == 0 {
		return AllKinds, nil
	}

	seen := make(map[Kind]bool, len(kinds))
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := ParseKind(string(k)); !ok {
			return nil, &Error{
				Code:    "INVALID_KIND",
				Message: "unknown route kind " + string(k),
				Err:     ErrUnsupportedKind,
			}
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}

	// Canonical order keeps cache keys stable across permutations.
	sort.Slice(out, func(a, b int) bool { return kindRank(out[a]) < kindRank(out[b]) })
	return out, nil
}

func kindRank(k Kind) int {
	for i, known := range AllKinds {
		if known == k {
			return i
		}
	}
	return len(AllKinds)
}

func joinKinds(kinds []Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

// InvalidateCache clears all cached route results.
func (s *Service) InvalidateCache() {
	s.results.InvalidateAll()
}

// CacheStats returns route cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.results.Stats()
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Close releases cache resources.
func (s *Service) Close() {
	s.results.Close()
}
