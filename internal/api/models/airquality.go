package models

import (
	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// Conditions is the wire form of a current air quality reading.
type Conditions struct {
	Point      geo.Point `json:"point"`
	District   string    `json:"district,omitempty"`
	PM25       float64   `json:"pm25"`
	PM10       float64   `json:"pm10"`
	O3         float64   `json:"o3"`
	NO2        float64   `json:"no2"`
	CO         float64   `json:"co"`
	SO2        float64   `json:"so2"`
	AQI        int       `json:"aqi"`
	Grade      string    `json:"grade"`
	Score      int       `json:"score"`
	Station    *Station  `json:"station,omitempty"`
	MeasuredAt Timestamp `json:"measured_at"`
	FetchedAt  Timestamp `json:"fetched_at"`
}

// Station is the monitoring station behind a reading.
type Station struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	DistanceKM float64 `json:"distance_km"`
}

// ConditionsFromDomain maps current conditions to their wire form.
func ConditionsFromDomain(c *airquality.Conditions) Conditions {
	out := Conditions{
		Point:      c.Point,
		District:   c.District,
		PM25:       c.PM25,
		PM10:       c.PM10,
		O3:         c.O3,
		NO2:        c.NO2,
		CO:         c.CO,
		SO2:        c.SO2,
		AQI:        c.AQI,
		Grade:      string(c.Grade),
		Score:      c.Score,
		MeasuredAt: Timestamp(c.MeasuredAt),
		FetchedAt:  Timestamp(c.FetchedAt),
	}
	if c.Station != nil {
		out.Station = &Station{
			ID:         c.Station.ID,
			Name:       c.Station.Name,
			DistanceKM: c.Station.DistanceKM,
		}
	}
	return out
}

// Heatmap is the wire form of a pollution overlay.
type Heatmap struct {
	Bounds      geo.Bounds    `json:"bounds"`
	Pollutant   string        `json:"pollutant"`
	Cells       []HeatmapCell `json:"cells"`
	GeneratedAt Timestamp     `json:"generated_at"`
	FetchedAt   Timestamp     `json:"fetched_at"`
}

// HeatmapCell is one colored point of the overlay. Color carries the grade
// hex so clients paint without their own lookup table.
type HeatmapCell struct {
	Point     geo.Point `json:"point"`
	Intensity float64   `json:"intensity"`
	Grade     string    `json:"grade"`
	Color     string    `json:"color,omitempty"`
}

// HeatmapFromDomain maps a heatmap to its wire form.
func HeatmapFromDomain(h *airquality.Heatmap) Heatmap {
	out := Heatmap{
		Bounds:      h.Bounds,
		Pollutant:   string(h.Pollutant),
		Cells:       make([]HeatmapCell, len(h.Cells)),
		GeneratedAt: Timestamp(h.GeneratedAt),
		FetchedAt:   Timestamp(h.FetchedAt),
	}
	for i, c := range h.Cells {
		out.Cells[i] = HeatmapCell{
			Point:     c.Point,
			Intensity: c.Intensity,
			Grade:     string(c.Grade),
			Color:     airquality.GradeColors[c.Grade],
		}
	}
	return out
}

// Forecast is the wire form of an hourly prediction series.
type Forecast struct {
	Point     geo.Point      `json:"point"`
	Hours     []ForecastHour `json:"hours"`
	Model     ModelInfo      `json:"model"`
	FetchedAt Timestamp      `json:"fetched_at"`
}

// ForecastHour is one predicted hour.
type ForecastHour struct {
	At         Timestamp `json:"at"`
	PM25       float64   `json:"pm25"`
	PM10       float64   `json:"pm10"`
	O3         float64   `json:"o3"`
	NO2        float64   `json:"no2"`
	AQI        int       `json:"aqi"`
	Grade      string    `json:"grade"`
	Confidence float64   `json:"confidence"`
}

// ModelInfo describes the prediction model behind a forecast.
type ModelInfo struct {
	Version   string    `json:"version"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// ForecastFromDomain maps a forecast to its wire form.
func ForecastFromDomain(f *airquality.Forecast) Forecast {
	out := Forecast{
		Point: f.Point,
		Hours: make([]ForecastHour, len(f.Hours)),
		Model: ModelInfo{
			Version:   f.Model.Version,
			UpdatedAt: Timestamp(f.Model.UpdatedAt),
		},
		FetchedAt: Timestamp(f.FetchedAt),
	}
	for i, h := range f.Hours {
		out.Hours[i] = ForecastHour{
			At:         Timestamp(h.At),
			PM25:       h.PM25,
			PM10:       h.PM10,
			O3:         h.O3,
			NO2:        h.NO2,
			AQI:        h.AQI,
			Grade:      string(h.Grade),
			Confidence: h.Confidence,
		}
	}
	return out
}
