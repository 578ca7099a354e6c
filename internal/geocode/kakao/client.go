// Package kakao provides a Kakao Local API client for address geocoding.
package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/geocode"
	"github.com/cleanairroute/cleanairroute/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "kakao"

	// DefaultBaseURL is the Kakao Local API base URL.
	DefaultBaseURL = "https://dapi.kakao.com"
)

// ClientConfig holds configuration for the Kakao Local client.
type ClientConfig struct {
	// APIKey is the Kakao REST API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Kakao).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Kakao Local API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Kakao Local client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		if cfg.Registry != nil {
			clientCfg.Registry = cfg.Registry
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode resolves an address through Kakao's address search. The first
// document wins; an empty document list maps to geocode.ErrNoMatch.
func (c *Client) Geocode(ctx context.Context, query string) (geo.Location, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("size", "1")
	reqURL := c.baseURL + "/v2/local/search/address.json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return geo.Location{}, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "KakaoAK "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.Location{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Location{}, c.handleErrorResponse(resp)
	}

	var kakaoResp addressResponse
	if err := json.NewDecoder(resp.Body).Decode(&kakaoResp); err != nil {
		return geo.Location{}, fmt.Errorf("decoding response: %w", err)
	}

	if len(kakaoResp.Documents) == 0 {
		return geo.Location{}, geocode.ErrNoMatch
	}

	return toLocation(&kakaoResp.Documents[0])
}

// handleErrorResponse maps Kakao error statuses to domain errors.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	var kakaoErr errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&kakaoErr)

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("error_type", kakaoErr.ErrorType).
		Str("message", kakaoErr.Message).
		Msg("kakao address search failed")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return geocode.ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return geocode.ErrQuotaExceeded
	case resp.StatusCode >= 500:
		return geocode.ErrProviderUnavailable
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// toLocation converts a Kakao document to the domain model. Kakao emits
// coordinates as strings with x as longitude and y as latitude; the building
// name from the road address becomes the display name when present.
func toLocation(doc *addressDocument) (geo.Location, error) {
	lon, err := strconv.ParseFloat(doc.X, 64)
	if err != nil {
		return geo.Location{}, fmt.Errorf("parsing longitude %q: %w", doc.X, err)
	}
	lat, err := strconv.ParseFloat(doc.Y, 64)
	if err != nil {
		return geo.Location{}, fmt.Errorf("parsing latitude %q: %w", doc.Y, err)
	}

	name := doc.AddressName
	if doc.RoadAddress != nil && doc.RoadAddress.BuildingName != "" {
		name = doc.RoadAddress.BuildingName
	}

	return geo.Location{
		Name:    name,
		Address: doc.AddressName,
		Point:   geo.Point{Lat: lat, Lon: lon},
	}, nil
}

// Kakao Local API response structures.

type addressResponse struct {
	Documents []addressDocument `json:"documents"`
	Meta      responseMeta      `json:"meta"`
}

type responseMeta struct {
	TotalCount    int  `json:"total_count"`
	PageableCount int  `json:"pageable_count"`
	IsEnd         bool `json:"is_end"`
}

type addressDocument struct {
	AddressName string       `json:"address_name"`
	AddressType string       `json:"address_type"`
	X           string       `json:"x"`
	Y           string       `json:"y"`
	RoadAddress *roadAddress `json:"road_address"`
}

type roadAddress struct {
	AddressName  string `json:"address_name"`
	BuildingName string `json:"building_name"`
	X            string `json:"x"`
	Y            string `json:"y"`
}

type errorResponse struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}
