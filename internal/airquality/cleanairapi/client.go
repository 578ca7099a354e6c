// Package cleanairapi provides a client for the CleanAir gateway's
// air quality endpoints.
package cleanairapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "cleanair"

	// DefaultBaseURL is the gateway base URL for local development.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultRadiusKM is the station search radius sent with current
	// conditions requests.
	DefaultRadiusKM = 5
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the CleanAir gateway client.
type ClientConfig struct {
	// BaseURL is the gateway base URL (optional, defaults to local gateway).
	BaseURL string

	// APIKey authenticates gateway requests (optional, local gateways run
	// without one).
	APIKey string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// RadiusKM is the station search radius for current conditions
	// (optional, defaults to 5, gateway accepts 1-50).
	RadiusKM int

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a CleanAir gateway API client.
type Client struct {
	baseURL    string
	apiKey     string
	radiusKM   int
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new CleanAir gateway client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	radius := cfg.RadiusKM
	if radius <= 0 {
		radius = DefaultRadiusKM
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
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		radiusKM:   radius,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Gateway wire types.

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type errorBody struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

type locationData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	District  string  `json:"district"`
}

type currentData struct {
	Location   locationData `json:"location"`
	AirQuality struct {
		PM25 float64 `json:"pm25"`
		PM10 float64 `json:"pm10"`
		O3   float64 `json:"o3"`
		NO2  float64 `json:"no2"`
		CO   float64 `json:"co"`
		SO2  float64 `json:"so2"`
	} `json:"air_quality"`
	AirQualityIndex int    `json:"air_quality_index"`
	Grade           string `json:"grade"`
	MeasuredAt      string `json:"measured_at"`
	StationInfo     *struct {
		StationID   string  `json:"station_id"`
		StationName string  `json:"station_name"`
		Distance    float64 `json:"distance"`
	} `json:"station_info"`
}

type forecastData struct {
	Location  locationData `json:"location"`
	Forecasts []struct {
		Timestamp       string  `json:"timestamp"`
		PM25            float64 `json:"pm25"`
		PM10            float64 `json:"pm10"`
		O3              float64 `json:"o3"`
		NO2             float64 `json:"no2"`
		AirQualityIndex int     `json:"air_quality_index"`
		Grade           string  `json:"grade"`
		Confidence      float64 `json:"confidence"`
	} `json:"forecasts"`
	ModelInfo struct {
		ModelVersion string `json:"model_version"`
		LastUpdated  string `json:"last_updated"`
	} `json:"model_info"`
}

type heatmapData struct {
	Timestamp   string `json:"timestamp"`
	Pollutant   string `json:"pollutant"`
	HeatmapData []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Intensity float64 `json:"intensity"`
		Grade     string  `json:"grade"`
	} `json:"heatmap_data"`
}

// Current retrieves current conditions around a point.
func (c *Client) Current(ctx context.Context, p geo.Point) (*airquality.Conditions, error) {
	query := url.Values{}
	query.Set("latitude", formatCoord(p.Lat))
	query.Set("longitude", formatCoord(p.Lon))
	query.Set("radius", strconv.Itoa(c.radiusKM))

	var data currentData
	if err := c.get(ctx, "/api/v1/air-quality/current", query, &data); err != nil {
		return nil, err
	}

	return c.toConditions(&data), nil
}

// Heatmap retrieves the pollution overlay for a bounded area.
func (c *Client) Heatmap(ctx context.Context, b geo.Bounds, pollutant airquality.Pollutant) (*airquality.Heatmap, error) {
	query := url.Values{}
	query.Set("bounds", b.String())
	query.Set("pollutant", string(pollutant))

	var data heatmapData
	if err := c.get(ctx, "/api/v1/air-quality/heatmap", query, &data); err != nil {
		return nil, err
	}

	return c.toHeatmap(&data, b), nil
}

// Forecast retrieves hourly predictions for a point.
func (c *Client) Forecast(ctx context.Context, p geo.Point, horizonHours int) (*airquality.Forecast, error) {
	query := url.Values{}
	query.Set("latitude", formatCoord(p.Lat))
	query.Set("longitude", formatCoord(p.Lon))
	query.Set("horizon", strconv.Itoa(horizonHours))

	var data forecastData
	if err := c.get(ctx, "/api/v1/air-quality/forecast", query, &data); err != nil {
		return nil, err
	}

	return c.toForecast(&data), nil
}

// get executes a gateway GET request and unmarshals the envelope's data field.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Debug().Str("path", path).Msg("requesting air quality data from gateway")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &airquality.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach air quality gateway",
			Err:      airquality.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp.StatusCode, body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		return &airquality.Error{
			Provider: ProviderName,
			Code:     "GATEWAY_FAILURE",
			Message:  env.Message,
			Err:      airquality.ErrProviderUnavailable,
		}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// handleErrorResponse maps gateway error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var gwErr errorBody
	if err := json.Unmarshal(body, &gwErr); err != nil {
		return &airquality.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("air quality gateway returned status %d", statusCode),
			Err:      airquality.ErrProviderUnavailable,
		}
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return &airquality.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "gateway rate limit exceeded, please try again later",
			Err:      airquality.ErrRateLimitExceeded,
		}
	case http.StatusNotFound:
		return &airquality.Error{
			Provider: ProviderName,
			Code:     "NO_DATA",
			Message:  "no measurements available for the requested area",
			Err:      airquality.ErrNoData,
		}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &airquality.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  gwErr.Message,
			Err:      airquality.ErrInvalidCoordinates,
		}
	default:
		if statusCode >= 500 {
			return &airquality.Error{
				Provider: ProviderName,
				Code:     fmt.Sprintf("SERVER_%d", statusCode),
				Message:  "air quality gateway is temporarily unavailable",
				Err:      airquality.ErrProviderUnavailable,
			}
		}
		return &airquality.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  gwErr.Message,
			Err:      airquality.ErrProviderUnavailable,
		}
	}
}

// toConditions converts gateway current data to the domain model. The
// cleanliness score is always computed locally; the wire grade is kept when
// valid and recomputed from concentrations otherwise.
func (c *Client) toConditions(data *currentData) *airquality.Conditions {
	aq := data.AirQuality
	grade, ok := airquality.ParseGrade(data.Grade)
	if !ok {
		grade = airquality.GradeFor(aq.PM25, aq.PM10, aq.O3)
	}

	measuredAt, _ := time.Parse(time.RFC3339, data.MeasuredAt)

	cond := &airquality.Conditions{
		Point:      geo.Point{Lat: data.Location.Latitude, Lon: data.Location.Longitude},
		District:   data.Location.District,
		PM25:       aq.PM25,
		PM10:       aq.PM10,
		O3:         aq.O3,
		NO2:        aq.NO2,
		CO:         aq.CO,
		SO2:        aq.SO2,
		AQI:        data.AirQualityIndex,
		Grade:      grade,
		Score:      airquality.Score(aq.PM25, aq.PM10, aq.O3),
		MeasuredAt: measuredAt,
		FetchedAt:  time.Now(),
	}

	if data.StationInfo != nil {
		cond.Station = &airquality.Station{
			ID:         data.StationInfo.StationID,
			Name:       data.StationInfo.StationName,
			DistanceKM: data.StationInfo.Distance,
		}
	}

	return cond
}

// toHeatmap converts gateway heatmap data to the domain model.
func (c *Client) toHeatmap(data *heatmapData, bounds geo.Bounds) *airquality.Heatmap {
	pollutant := airquality.Pollutant(data.Pollutant)
	cells := make([]airquality.HeatmapCell, 0, len(data.HeatmapData))
	for _, cell := range data.HeatmapData {
		grade, ok := airquality.ParseGrade(cell.Grade)
		if !ok {
			grade = gradeForPollutant(pollutant, cell.Intensity)
		}
		cells = append(cells, airquality.HeatmapCell{
			Point:     geo.Point{Lat: cell.Latitude, Lon: cell.Longitude},
			Intensity: cell.Intensity,
			Grade:     grade,
		})
	}

	generatedAt, _ := time.Parse(time.RFC3339, data.Timestamp)

	return &airquality.Heatmap{
		Bounds:      bounds,
		Pollutant:   pollutant,
		Cells:       cells,
		GeneratedAt: generatedAt,
		FetchedAt:   time.Now(),
	}
}

// toForecast converts gateway forecast data to the domain model.
func (c *Client) toForecast(data *forecastData) *airquality.Forecast {
	hours := make([]airquality.ForecastHour, 0, len(data.Forecasts))
	for _, f := range data.Forecasts {
		grade, ok := airquality.ParseGrade(f.Grade)
		if !ok {
			grade = airquality.GradeFor(f.PM25, f.PM10, f.O3)
		}
		at, _ := time.Parse(time.RFC3339, f.Timestamp)
		hours = append(hours, airquality.ForecastHour{
			At:         at,
			PM25:       f.PM25,
			PM10:       f.PM10,
			O3:         f.O3,
			NO2:        f.NO2,
			AQI:        f.AirQualityIndex,
			Grade:      grade,
			Confidence: f.Confidence,
		})
	}

	updatedAt, _ := time.Parse(time.RFC3339, data.ModelInfo.LastUpdated)
	model := airquality.ModelInfo{
		Version:   data.ModelInfo.ModelVersion,
		UpdatedAt: updatedAt,
	}

	return &airquality.Forecast{
		Point:     geo.Point{Lat: data.Location.Latitude, Lon: data.Location.Longitude},
		Hours:     hours,
		Model:     model,
		FetchedAt: time.Now(),
	}
}

// gradeForPollutant grades a single-pollutant intensity when the wire grade
// is missing or unknown.
func gradeForPollutant(p airquality.Pollutant, value float64) airquality.Grade {
	switch p {
	case airquality.PollutantPM25:
		return airquality.GradeFor(value, 0, 0)
	case airquality.PollutantPM10:
		return airquality.GradeFor(0, value, 0)
	case airquality.PollutantO3:
		return airquality.GradeFor(0, 0, value)
	default:
		return airquality.GradeModerate
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
