// Package routing provides clean-air route search against the route engine.
package routing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the route engine is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrUnsupportedKind indicates an unknown route kind was requested.
	ErrUnsupportedKind = errors.New("unsupported route kind")
)

// Provider defines the interface for route search providers.
type Provider interface {
	// Routes computes route alternatives between the request endpoints.
	Routes(ctx context.Context, req SearchRequest) (*SearchResult, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
	// SupportedKinds returns the route kinds this provider can compute.
	SupportedKinds() []Kind
}

// Kind identifies a route optimization strategy.
type Kind string

const (
	// KindFastest minimizes travel time.
	KindFastest Kind = "fastest"
	// KindShortest minimizes distance.
	KindShortest Kind = "shortest"
	// KindHealthiest minimizes pollution exposure along the way.
	KindHealthiest Kind = "healthiest"
)

// AllKinds lists every route kind in request order.
var AllKinds = []Kind{KindFastest, KindShortest, KindHealthiest}

// ParseKind returns the Kind for s, or false when s is not a known kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindFastest, KindShortest, KindHealthiest:
		return Kind(s), true
	}
	return "", false
}

// SearchRequest is the request for computing route alternatives.
type SearchRequest struct {
	Start geo.Point
	End   geo.Point
	// Kinds selects which alternatives to compute (default: AllKinds).
	Kinds []Kind
	// DepartureAt is the planned departure time (optional).
	DepartureAt time.Time
}

// SearchResult holds the computed route alternatives.
type SearchResult struct {
	// Routes is sorted by AirScore descending.
	Routes []Route
	// OptimalID references the route in Routes with the best combined
	// air-and-time score.
	OptimalID  string
	Provider   string
	ComputedAt time.Time
	FetchedAt  time.Time
}

// RouteByID returns the route with the given id, or nil.
func (r *SearchResult) RouteByID(id string) *Route {
	for i := range r.Routes {
		if r.Routes[i].ID == id {
			return &r.Routes[i]
		}
	}
	return nil
}

// Optimal returns the optimal route, or nil when the result is empty.
func (r *SearchResult) Optimal() *Route {
	return r.RouteByID(r.OptimalID)
}

// Route represents a single route alternative.
type Route struct {
	ID              string
	Kind            Kind
	DurationMinutes int
	DistanceKM      float64
	// AverageAQI is the mean air quality index along the route (0-500).
	AverageAQI float64
	// AirScore rates the route's air quality from 0 (worst) to 100 (best).
	AirScore  int
	Exposure  Exposure
	Waypoints []geo.Point
	Segments  []Segment
	// Polyline is the encoded route geometry (precision 5).
	Polyline string
	// Bounds is the geographic envelope of the waypoints.
	Bounds geo.Bounds
}

// Segment is a leg of a route with its local air quality reading.
type Segment struct {
	Start           geo.Point
	End             geo.Point
	DistanceKM      float64
	DurationMinutes int
	AQI             int
	Grade           string
	Instructions    string
}

// Exposure holds mean pollutant concentrations along a route. PM values are
// in µg/m³, gas values in ppm.
type Exposure struct {
	PM25 float64
	PM10 float64
	O3   float64
	NO2  float64
}

// IsZero reports whether no exposure data is present.
func (e Exposure) IsZero() bool {
	return e.PM25 == 0 && e.PM10 == 0 && e.O3 == 0 && e.NO2 == 0
}

// Rounded returns the exposure with display precision: particulates to two
// decimals, gases to three.
func (e Exposure) Rounded() Exposure {
	return Exposure{
		PM25: roundTo(e.PM25, 2),
		PM10: roundTo(e.PM10, 2),
		O3:   roundTo(e.O3, 3),
		NO2:  roundTo(e.NO2, 3),
	}
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
