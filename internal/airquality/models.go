// Package airquality provides current conditions, heatmap, and forecast data
// with per-dataset TTL caching over the CleanAir gateway.
package airquality

import (
	"context"
	"errors"
	"time"

	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// Sentinel errors for air quality operations.
var (
	// ErrProviderUnavailable indicates the upstream gateway is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
	// ErrRateLimitExceeded indicates the gateway quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrNoData indicates the gateway has no measurements for the requested area.
	ErrNoData = errors.New("no air quality data for the requested area")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Pollutant identifies a measured pollutant.
type Pollutant string

const (
	PollutantPM25 Pollutant = "pm25"
	PollutantPM10 Pollutant = "pm10"
	PollutantO3   Pollutant = "o3"
	PollutantNO2  Pollutant = "no2"
	PollutantCO   Pollutant = "co"
	PollutantSO2  Pollutant = "so2"
)

// HeatmapPollutants are the pollutants the heatmap endpoint accepts.
var HeatmapPollutants = []Pollutant{PollutantPM25, PollutantPM10, PollutantO3, PollutantNO2}

// Grade is the qualitative air quality bucket shown to users.
type Grade string

const (
	GradeGood          Grade = "good"
	GradeModerate      Grade = "moderate"
	GradeUnhealthy     Grade = "unhealthy"
	GradeVeryUnhealthy Grade = "very_unhealthy"
	GradeHazardous     Grade = "hazardous"
)

// GradeColors maps grades to the hex colors of the heatmap scale.
var GradeColors = map[Grade]string{
	GradeGood:          "#00E400",
	GradeModerate:      "#FFFF00",
	GradeUnhealthy:     "#FF7E00",
	GradeVeryUnhealthy: "#FF0000",
	GradeHazardous:     "#8F3F97",
}

// Station is the monitoring station backing a conditions reading.
type Station struct {
	ID         string
	Name       string
	DistanceKM float64
}

// Conditions is the current air quality at a location.
type Conditions struct {
	Point      geo.Point
	District   string
	PM25       float64 // µg/m³
	PM10       float64 // µg/m³
	O3         float64 // ppm
	NO2        float64 // ppm
	CO         float64 // ppm
	SO2        float64 // ppm
	AQI        int
	Grade      Grade
	Score      int // 0-100, higher is cleaner
	Station    *Station
	MeasuredAt time.Time
	FetchedAt  time.Time
}

// HeatmapCell is one colored point of the pollution overlay.
type HeatmapCell struct {
	Point     geo.Point
	Intensity float64
	Grade     Grade
}

// Heatmap is the pollution overlay for a bounded area.
type Heatmap struct {
	Bounds      geo.Bounds
	Pollutant   Pollutant
	Cells       []HeatmapCell
	GeneratedAt time.Time
	FetchedAt   time.Time
}

// ForecastHour is one predicted hour of air quality.
type ForecastHour struct {
	At         time.Time
	PM25       float64
	PM10       float64
	O3         float64
	NO2        float64
	AQI        int
	Grade      Grade
	Confidence float64 // 0-1
}

// ModelInfo describes the prediction model behind a forecast.
type ModelInfo struct {
	Version   string
	UpdatedAt time.Time
}

// Forecast is the hourly prediction series for a location.
type Forecast struct {
	Point     geo.Point
	Hours     []ForecastHour
	Model     ModelInfo
	FetchedAt time.Time
}

// Provider defines the interface for air quality data providers.
type Provider interface {
	// Current retrieves current conditions around a point.
	Current(ctx context.Context, p geo.Point) (*Conditions, error)
	// Heatmap retrieves the pollution overlay for a bounded area.
	Heatmap(ctx context.Context, b geo.Bounds, pollutant Pollutant) (*Heatmap, error)
	// Forecast retrieves hourly predictions for a point.
	Forecast(ctx context.Context, p geo.Point, horizonHours int) (*Forecast, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Error provides detailed error information from the air quality provider.
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
