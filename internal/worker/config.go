// Package worker provides the background cache warmer for CleanAirRoute.
package worker

import (
	"time"

	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// WarmArea is a named region whose caches get pre-warmed.
type WarmArea struct {
	Name   string
	Bounds geo.Bounds
}

// WarmConfig holds configuration for cache warm jobs.
type WarmConfig struct {
	// Area is the region to warm.
	Area WarmArea

	// Resolution is the H3 resolution used to tile the area. Each cell
	// center becomes one current-conditions fetch.
	Resolution int

	// Concurrency is the number of cells warmed in parallel.
	// Default: 8
	Concurrency int

	// CellTimeout bounds each per-cell fetch.
	// Default: 10 seconds
	CellTimeout time.Duration

	// WarmCurrent enables warming current conditions for every cell center.
	WarmCurrent bool

	// WarmHeatmap enables warming the pollution overlay for the whole
	// area. The overlay is one tile, so this is a single fetch per run.
	WarmHeatmap bool
}

// DefaultWarmConfig returns the Seoul metro warm configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Area:        SeoulMetroArea(),
		Resolution:  geo.H3ResolutionWarm,
		Concurrency: 8,
		CellTimeout: 10 * time.Second,
		WarmCurrent: true,
		WarmHeatmap: true,
	}
}

// SeoulMetroArea returns the warm area covering the Seoul metropolitan
// region, from Gwangmyeong in the south-west to Guri in the north-east.
func SeoulMetroArea() WarmArea {
	return WarmArea{
		Name: "seoul",
		Bounds: geo.Bounds{
			SouthWest: geo.Point{Lat: 37.40, Lon: 126.70},
			NorthEast: geo.Point{Lat: 37.70, Lon: 127.20},
		},
	}
}

// CellPoints returns the center of every H3 cell covering the area. Cells
// whose center cannot be resolved are skipped.
func (c WarmConfig) CellPoints() []geo.Point {
	cells := geo.CoverCells(c.Area.Bounds, c.Resolution)
	points := make([]geo.Point, 0, len(cells))
	for _, cell := range cells {
		p, err := geo.CellCenter(cell)
		if err != nil {
			continue
		}
		points = append(points, p)
	}
	return points
}

// TotalCells returns the number of cells a warm run will touch.
func (c WarmConfig) TotalCells() int {
	return len(geo.CoverCells(c.Area.Bounds, c.Resolution))
}
