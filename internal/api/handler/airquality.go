package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// AirQualityHandler serves current conditions, forecasts, and heatmap tiles
// from the shared per-process cache.
type AirQualityHandler struct {
	air *airquality.Service
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(air *airquality.Service) *AirQualityHandler {
	return &AirQualityHandler{air: air}
}

// Current handles GET /v1/air-quality/current?lat&lon.
func (h *AirQualityHandler) Current(w http.ResponseWriter, r *http.Request) {
	p, ok := pointQuery(w, r)
	if !ok {
		return
	}

	conditions, err := h.air.Current(r.Context(), p)
	if err != nil {
		writeAirQualityError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	response.JSON(w, r, http.StatusOK, models.ConditionsFromDomain(conditions))
}

// Forecast handles GET /v1/air-quality/forecast?lat&lon&hours.
func (h *AirQualityHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	p, ok := pointQuery(w, r)
	if !ok {
		return
	}

	hours := 0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.BadRequest(w, r, "hours must be a non-negative integer", []models.FieldError{
				{Field: "hours", Message: "must be a non-negative integer"},
			})
			return
		}
		hours = parsed
	}

	forecast, err := h.air.ForecastAt(r.Context(), p, hours)
	if err != nil {
		writeAirQualityError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, models.ForecastFromDomain(forecast))
}

// Heatmap handles GET /v1/air-quality/heatmap?bounds&pollutant. Bounds use
// the "swLat,swLon,neLat,neLon" wire format; the pollutant defaults to pm25.
func (h *AirQualityHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	rawBounds := r.URL.Query().Get("bounds")
	if rawBounds == "" {
		response.BadRequest(w, r, "bounds is required", []models.FieldError{
			{Field: "bounds", Message: "required", Code: "required"},
		})
		return
	}
	bounds, err := geo.ParseBounds(rawBounds)
	if err != nil {
		response.BadRequest(w, r, "bounds must be swLat,swLon,neLat,neLon", []models.FieldError{
			{Field: "bounds", Message: "malformed bounds"},
		})
		return
	}

	pollutant := airquality.Pollutant(r.URL.Query().Get("pollutant"))
	if pollutant != "" && !heatmapLayer(pollutant) {
		response.BadRequest(w, r, "pollutant not available as a heatmap layer", []models.FieldError{
			{Field: "pollutant", Message: "must be one of pm25, pm10, o3, no2"},
		})
		return
	}

	heatmap, err := h.air.HeatmapByBounds(r.Context(), bounds, pollutant)
	if err != nil {
		writeAirQualityError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, models.HeatmapFromDomain(heatmap))
}

// heatmapLayer reports whether the pollutant has an overlay layer.
func heatmapLayer(p airquality.Pollutant) bool {
	for _, hp := range airquality.HeatmapPollutants {
		if p == hp {
			return true
		}
	}
	return false
}

// pointQuery parses the lat and lon query parameters. Writes a problem
// response and returns false when they are absent or malformed.
func pointQuery(w http.ResponseWriter, r *http.Request) (geo.Point, bool) {
	q := r.URL.Query()
	rawLat, rawLon := q.Get("lat"), q.Get("lon")
	if rawLat == "" || rawLon == "" {
		response.BadRequest(w, r, "lat and lon are required", []models.FieldError{
			{Field: "lat", Message: "required", Code: "required"},
			{Field: "lon", Message: "required", Code: "required"},
		})
		return geo.Point{}, false
	}

	lat, latErr := strconv.ParseFloat(rawLat, 64)
	lon, lonErr := strconv.ParseFloat(rawLon, 64)
	if latErr != nil || lonErr != nil {
		response.BadRequest(w, r, "lat and lon must be numbers", nil)
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lon: lon}, true
}

// writeAirQualityError maps provider errors to problem responses.
func writeAirQualityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, airquality.ErrInvalidCoordinates), errors.Is(err, geo.ErrInvalidCoordinates), errors.Is(err, geo.ErrInvalidBounds):
		response.BadRequest(w, r, "invalid coordinates", nil)
	case errors.Is(err, airquality.ErrNoData):
		response.NotFound(w, r, "no air quality data for the requested area")
	case errors.Is(err, airquality.ErrRateLimitExceeded):
		response.TooManyRequests(w, r, "air quality provider quota exceeded")
	case errors.Is(err, airquality.ErrProviderUnavailable):
		response.ServiceUnavailable(w, r, "air quality provider unavailable")
	default:
		response.InternalError(w, r, "air quality lookup failed")
	}
}
