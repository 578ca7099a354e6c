package session

import (
	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// HeatmapUpdated signals that a fresh pollution overlay landed for the given
// area. It follows asynchronously after a heatmap request; no rule listens to
// it, but it bumps the state version like any other event.
type HeatmapUpdated struct {
	Bounds    geo.Bounds
	Pollutant airquality.Pollutant
}
