// Package routeapi provides a client for the clean-air route engine API.
package routeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/provider/resilience"
	"github.com/cleanairroute/cleanairroute/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "routelogic"

	// DefaultBaseURL is the route engine address used in development.
	DefaultBaseURL = "http://localhost:8003"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the route engine client.
type ClientConfig struct {
	// BaseURL is the engine base URL (optional, defaults to local engine).
	BaseURL string

	// APIKey authenticates engine requests (optional, local engines run
	// without one).
	APIKey string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a route engine API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new route engine client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		if cfg.Registry != nil {
			clientCfg.Registry = cfg.Registry
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedKinds returns the route kinds the engine can compute.
func (c *Client) SupportedKinds() []routing.Kind {
	return []routing.Kind{
		routing.KindFastest,
		routing.KindShortest,
		routing.KindHealthiest,
	}
}

// Routes computes route alternatives between the request endpoints.
func (c *Client) Routes(ctx context.Context, req routing.SearchRequest) (*routing.SearchResult, error) {
	if err := geo.ValidatePoint(req.Start); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_START",
			Message:  "invalid start coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}
	if err := geo.ValidatePoint(req.End); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_END",
			Message:  "invalid end coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}

	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = routing.AllKinds
	}

	engineReq := routeRequest{
		StartLat:   req.Start.Lat,
		StartLon:   req.Start.Lon,
		EndLat:     req.End.Lat,
		EndLon:     req.End.Lon,
		RouteTypes: joinKinds(kinds),
	}
	if !req.DepartureAt.IsZero() {
		engineReq.DepartureTime = req.DepartureAt.Format(time.RFC3339)
	}

	body, err := json.Marshal(engineReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "/api/v1/routes"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Debug().
		Float64("start_lat", req.Start.Lat).
		Float64("start_lon", req.Start.Lon).
		Float64("end_lat", req.End.Lat).
		Float64("end_lon", req.End.Lon).
		Str("route_types", engineReq.RouteTypes).
		Msg("requesting routes from engine")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach route engine",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	var engineResp routeResponse
	if err := json.Unmarshal(respBody, &engineResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	// The engine reports "no valid routes" as a failed envelope on 200.
	if !engineResp.Success {
		message := engineResp.Message
		if message == "" {
			message = "route engine reported no valid routes"
		}
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  message,
			Err:      routing.ErrNoRouteFound,
		}
	}

	result := c.toSearchResult(&engineResp)

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Str("optimal_id", result.OptimalID).
		Msg("received routes from engine")

	return result, nil
}

// handleErrorResponse maps engine error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var engineErr errorResponse
	if err := json.Unmarshal(body, &engineErr); err != nil {
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("route engine returned status %d", statusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "route engine rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case http.StatusNotFound:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no route found between the given points",
			Err:      routing.ErrNoRouteFound,
		}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		message := engineErr.Message
		if message == "" {
			message = "route engine rejected the request"
		}
		return &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  message,
			Err:      routing.ErrInvalidCoordinates,
		}
	default:
		if statusCode >= 500 {
			return &routing.Error{
				Provider: ProviderName,
				Code:     fmt.Sprintf("SERVER_%d", statusCode),
				Message:  "route engine is temporarily unavailable",
				Err:      routing.ErrProviderUnavailable,
			}
		}
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  engineErr.Message,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toSearchResult converts the engine response to the domain model. The
// named slots are flattened in kind order and the optimal slot is resolved
// to a route id.
func (c *Client) toSearchResult(resp *routeResponse) *routing.SearchResult {
	result := &routing.SearchResult{
		Provider:   ProviderName,
		ComputedAt: parseEngineTime(resp.CalculationTime),
		FetchedAt:  time.Now(),
	}

	for _, info := range []*routeInfo{resp.FastestRoute, resp.ShortestRoute, resp.HealthiestRoute} {
		if info == nil {
			continue
		}
		result.Routes = append(result.Routes, c.toRoute(info))
	}

	if resp.OptimalRoute != nil {
		result.OptimalID = resp.OptimalRoute.RouteID
		// The optimal slot normally duplicates one of the named slots;
		// keep it as its own alternative when it does not.
		if result.RouteByID(resp.OptimalRoute.RouteID) == nil {
			result.Routes = append(result.Routes, c.toRoute(resp.OptimalRoute))
		}
	}

	return result
}

// toRoute converts a wire route to the domain model.
func (c *Client) toRoute(info *routeInfo) routing.Route {
	kind, ok := routing.ParseKind(info.Type)
	if !ok {
		kind = routing.KindFastest
	}

	waypoints := make([]geo.Point, 0, len(info.Waypoints))
	for _, w := range info.Waypoints {
		waypoints = append(waypoints, geo.Point{Lat: w.Latitude, Lon: w.Longitude})
	}
	// Compact responses may carry only the encoded polyline.
	if len(waypoints) == 0 && info.Polyline != "" {
		waypoints = geo.DecodePolyline(info.Polyline)
	}
	bounds, _ := geo.FitUnion(waypoints...)

	segments := make([]routing.Segment, 0, len(info.Segments))
	for _, s := range info.Segments {
		segments = append(segments, routing.Segment{
			Start:           geo.Point{Lat: s.Start.Latitude, Lon: s.Start.Longitude},
			End:             geo.Point{Lat: s.End.Latitude, Lon: s.End.Longitude},
			DistanceKM:      s.Distance,
			DurationMinutes: s.Duration,
			AQI:             s.AirQuality.AirQualityIndex,
			Grade:           s.AirQuality.Grade,
			Instructions:    s.Instructions,
		})
	}

	return routing.Route{
		ID:              info.RouteID,
		Kind:            kind,
		DurationMinutes: info.TravelTimeMinutes,
		DistanceKM:      info.DistanceKM,
		AverageAQI:      info.AverageAQI,
		AirScore:        int(math.Round(info.AirQualityScore)),
		Exposure: routing.Exposure{
			PM25: info.PollutionExposure["pm25"],
			PM10: info.PollutionExposure["pm10"],
			O3:   info.PollutionExposure["o3"],
			NO2:  info.PollutionExposure["no2"],
		}.Rounded(),
		Waypoints: waypoints,
		Segments:  segments,
		Polyline:  info.Polyline,
		Bounds:    bounds,
	}
}

// parseEngineTime parses the engine's calculation timestamp, which may be
// emitted without a zone offset.
func parseEngineTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t
	}
	return time.Time{}
}

func joinKinds(kinds []routing.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}
