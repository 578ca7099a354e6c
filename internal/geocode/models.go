package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// Geocoding errors.
var (
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
	ErrNoMatch             = errors.New("no match for address")
	ErrEmptyQuery          = errors.New("empty geocoding query")
	ErrUnauthorized        = errors.New("geocoding credentials rejected")
	ErrQuotaExceeded       = errors.New("geocoding quota exceeded")
)

// Geocoder resolves free-text addresses to locations.
type Geocoder interface {
	// Geocode resolves an address to a location. Returns ErrNoMatch when
	// the provider has no candidate for the query.
	Geocode(ctx context.Context, query string) (geo.Location, error)

	// Name returns the provider name for logging.
	Name() string
}

// NormalizeQuery canonicalizes a free-text address for caching and upstream
// lookup: trimmed, inner whitespace collapsed, lowercased. Two queries that
// differ only in spacing resolve through the same cache entry.
func NormalizeQuery(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
