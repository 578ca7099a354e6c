package viewport

import "github.com/cleanairroute/cleanairroute/internal/geo"

// CameraChanged is emitted after every camera mutation. Bounds carries the
// recomputed visible region so listeners never need to re-derive it.
type CameraChanged struct {
	Center geo.Point
	Zoom   float64
	Bounds geo.Bounds
}

// SelectionChanged is emitted when the selected route actually changes.
// RouteID is empty when the selection was cleared.
type SelectionChanged struct {
	RouteID string
}

// Toggle names one of the viewport layer toggles.
type Toggle string

const (
	ToggleHeatmap   Toggle = "heatmap"
	ToggleFavorites Toggle = "favorites"
)

// ToggleChanged is emitted when a layer toggle actually changes.
type ToggleChanged struct {
	Toggle Toggle
	On     bool
}
