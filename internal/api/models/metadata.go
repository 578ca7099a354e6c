package models

import "github.com/cleanairroute/cleanairroute/internal/airquality"

// PollutantInfo describes one pollutant the API serves.
type PollutantInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
	// Heatmap reports whether the pollutant is available as an overlay layer.
	Heatmap bool `json:"heatmap"`
}

// GradeInfo is one band of the air quality ladder with its display color.
// The bounds are absent on the open-ended hazardous band.
type GradeInfo struct {
	Grade   string   `json:"grade"`
	Color   string   `json:"color"`
	MaxPM25 *float64 `json:"max_pm25,omitempty"`
	MaxPM10 *float64 `json:"max_pm10,omitempty"`
	MaxO3   *float64 `json:"max_o3,omitempty"`
}

// PollutantMetadata is the static pollutant and grade reference data.
type PollutantMetadata struct {
	Pollutants []PollutantInfo `json:"pollutants"`
	Grades     []GradeInfo     `json:"grades"`
}

// pollutantNames maps pollutant ids to display names and units.
var pollutantNames = map[airquality.Pollutant][2]string{
	airquality.PollutantPM25: {"Fine particulate matter (PM2.5)", "µg/m³"},
	airquality.PollutantPM10: {"Particulate matter (PM10)", "µg/m³"},
	airquality.PollutantO3:   {"Ozone", "ppm"},
	airquality.PollutantNO2:  {"Nitrogen dioxide", "ppm"},
	airquality.PollutantCO:   {"Carbon monoxide", "ppm"},
	airquality.PollutantSO2:  {"Sulfur dioxide", "ppm"},
}

// heatmapSupported reports whether the pollutant has an overlay layer.
func heatmapSupported(p airquality.Pollutant) bool {
	for _, hp := range airquality.HeatmapPollutants {
		if p == hp {
			return true
		}
	}
	return false
}

// PollutantMetadataFromDomain assembles the metadata response from the
// grading ladder and the color scale.
func PollutantMetadataFromDomain() PollutantMetadata {
	order := []airquality.Pollutant{
		airquality.PollutantPM25,
		airquality.PollutantPM10,
		airquality.PollutantO3,
		airquality.PollutantNO2,
		airquality.PollutantCO,
		airquality.PollutantSO2,
	}

	out := PollutantMetadata{
		Pollutants: make([]PollutantInfo, 0, len(order)),
		Grades:     make([]GradeInfo, 0, len(airquality.GradeColors)),
	}
	for _, p := range order {
		names := pollutantNames[p]
		out.Pollutants = append(out.Pollutants, PollutantInfo{
			ID:      string(p),
			Name:    names[0],
			Unit:    names[1],
			Heatmap: heatmapSupported(p),
		})
	}

	for _, band := range airquality.GradeBands() {
		pm25, pm10, o3 := band.MaxPM25, band.MaxPM10, band.MaxO3
		out.Grades = append(out.Grades, GradeInfo{
			Grade:   string(band.Grade),
			Color:   airquality.GradeColors[band.Grade],
			MaxPM25: &pm25,
			MaxPM10: &pm10,
			MaxO3:   &o3,
		})
	}
	out.Grades = append(out.Grades, GradeInfo{
		Grade: string(airquality.GradeHazardous),
		Color: airquality.GradeColors[airquality.GradeHazardous],
	})

	return out
}
