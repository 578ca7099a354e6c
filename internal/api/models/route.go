package models

import (
	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/routing"
)

// Route is the wire form of one route alternative.
type Route struct {
	ID              string      `json:"id"`
	Kind            string      `json:"kind"`
	DurationMinutes int         `json:"duration_minutes"`
	DistanceKM      float64     `json:"distance_km"`
	AverageAQI      float64     `json:"average_aqi"`
	AirScore        int         `json:"air_score"`
	Exposure        *Exposure   `json:"exposure,omitempty"`
	Waypoints       []geo.Point `json:"waypoints"`
	Segments        []Segment   `json:"segments,omitempty"`
	Polyline        string      `json:"polyline,omitempty"`
	Bounds          geo.Bounds  `json:"bounds"`
}

// Segment is the wire form of one route leg.
type Segment struct {
	Start           geo.Point `json:"start"`
	End             geo.Point `json:"end"`
	DistanceKM      float64   `json:"distance_km"`
	DurationMinutes int       `json:"duration_minutes"`
	AQI             int       `json:"aqi"`
	Grade           string    `json:"grade"`
	Instructions    string    `json:"instructions,omitempty"`
}

// Exposure is the wire form of mean pollutant concentrations along a route.
type Exposure struct {
	PM25 float64 `json:"pm25"`
	PM10 float64 `json:"pm10"`
	O3   float64 `json:"o3"`
	NO2  float64 `json:"no2"`
}

// RouteFromDomain maps a domain route to its wire form.
func RouteFromDomain(r routing.Route) Route {
	out := Route{
		ID:              r.ID,
		Kind:            string(r.Kind),
		DurationMinutes: r.DurationMinutes,
		DistanceKM:      r.DistanceKM,
		AverageAQI:      r.AverageAQI,
		AirScore:        r.AirScore,
		Waypoints:       r.Waypoints,
		Polyline:        r.Polyline,
		Bounds:          r.Bounds,
	}
	if !r.Exposure.IsZero() {
		out.Exposure = &Exposure{
			PM25: r.Exposure.PM25,
			PM10: r.Exposure.PM10,
			O3:   r.Exposure.O3,
			NO2:  r.Exposure.NO2,
		}
	}
	if len(r.Segments) > 0 {
		out.Segments = make([]Segment, len(r.Segments))
		for i, s := range r.Segments {
			out.Segments[i] = Segment{
				Start:           s.Start,
				End:             s.End,
				DistanceKM:      s.DistanceKM,
				DurationMinutes: s.DurationMinutes,
				AQI:             s.AQI,
				Grade:           s.Grade,
				Instructions:    s.Instructions,
			}
		}
	}
	return out
}

// RoutesFromDomain maps a route list, never returning nil.
func RoutesFromDomain(routes []routing.Route) []Route {
	out := make([]Route, len(routes))
	for i, r := range routes {
		out[i] = RouteFromDomain(r)
	}
	return out
}
