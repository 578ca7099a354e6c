// Package viewport holds the per-session map camera, route selection, and
// layer toggles. Mutations emit events after the store's own lock is
// released, so synchronization rules may call back into the store within
// the same turn.
package viewport

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/geo"
)

const (
	// MinZoom and MaxZoom bound every zoom value the store accepts.
	MinZoom = 5
	MaxZoom = 19

	// DefaultZoom is used when a device has no stored snapshot.
	DefaultZoom = 12

	fitPadFraction = 0.10
)

// DefaultCenter is Seoul City Hall, the fallback camera position for devices
// without a stored snapshot.
var DefaultCenter = geo.Point{Lat: 37.5665, Lon: 126.9780}

// Camera is the viewport camera position.
type Camera struct {
	Center geo.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
}

// Toggles is the state of the viewport layer toggles.
type Toggles struct {
	ShowHeatmap   bool `json:"show_heatmap"`
	ShowFavorites bool `json:"show_favorites"`
}

// Config configures a Store. The zero value yields the Seoul defaults.
type Config struct {
	// Center and Zoom set the initial camera, typically restored from a
	// device snapshot. A zero or invalid center falls back to
	// DefaultCenter; a zero zoom falls back to DefaultZoom.
	Center geo.Point
	Zoom   float64

	// Aspect is the viewport width/height ratio fed into the span model.
	// Defaults to 1.
	Aspect float64

	ShowHeatmap   bool
	ShowFavorites bool

	// Emit, when set, receives store events synchronously after each
	// mutation.
	Emit func(event any)

	Logger zerolog.Logger
}

// Store is the viewport state store. Safe for concurrent use, though within
// a session all access is serialized by the session turn lock.
type Store struct {
	aspect float64
	emit   func(event any)
	logger zerolog.Logger

	mu              sync.Mutex
	center          geo.Point
	zoom            float64
	bounds          geo.Bounds
	selectedRouteID string
	showHeatmap     bool
	showFavorites   bool
}

// New builds a Store, clamping the initial camera into range.
func New(cfg Config) *Store {
	if cfg.Aspect <= 0 {
		cfg.Aspect = 1
	}
	center := cfg.Center
	if center.Equal(geo.Point{}) || !center.Valid() {
		center = DefaultCenter
	}
	zoom := cfg.Zoom
	if zoom == 0 {
		zoom = DefaultZoom
	}
	s := &Store{
		aspect:        cfg.Aspect,
		emit:          cfg.Emit,
		logger:        cfg.Logger.With().Str("component", "viewport").Logger(),
		center:        center,
		zoom:          clampZoom(zoom),
		showHeatmap:   cfg.ShowHeatmap,
		showFavorites: cfg.ShowFavorites,
	}
	s.bounds = geo.BoundsAround(s.center, s.zoom, s.aspect)
	return s
}

// SetCenter moves the camera center, keeping the current zoom.
func (s *Store) SetCenter(p geo.Point) error {
	if err := geo.ValidatePoint(p); err != nil {
		return err
	}
	s.mu.Lock()
	s.center = p
	s.recomputeBoundsLocked()
	ev := s.cameraEventLocked()
	s.mu.Unlock()
	s.send(ev)
	return nil
}

// SetZoom changes the zoom level, clamped to [MinZoom, MaxZoom].
func (s *Store) SetZoom(z float64) {
	s.mu.Lock()
	s.zoom = clampZoom(z)
	s.recomputeBoundsLocked()
	ev := s.cameraEventLocked()
	s.mu.Unlock()
	s.send(ev)
}

// SetCamera moves center and zoom in one step, the way map gestures report
// combined pan and pinch.
func (s *Store) SetCamera(p geo.Point, z float64) error {
	if err := geo.ValidatePoint(p); err != nil {
		return err
	}
	s.mu.Lock()
	s.center = p
	s.zoom = clampZoom(z)
	s.recomputeBoundsLocked()
	ev := s.cameraEventLocked()
	s.mu.Unlock()
	s.send(ev)
	return nil
}

// FitBounds positions the camera so b, padded by 10%, is fully visible.
// Zero or out-of-range bounds are ignored. A degenerate bounds collapses to
// a max-zoom camera centered on it.
func (s *Store) FitBounds(b geo.Bounds) {
	if b.IsZero() {
		return
	}
	if geo.ValidatePoint(b.SouthWest) != nil || geo.ValidatePoint(b.NorthEast) != nil {
		s.logger.Debug().Str("bounds", b.String()).Msg("ignoring fit request with out-of-range bounds")
		return
	}
	target := geo.NewBounds(b.SouthWest, b.NorthEast).PadFraction(fitPadFraction)

	s.mu.Lock()
	s.center = target.Center()
	s.zoom = clampZoom(geo.ZoomForBounds(target, s.aspect))
	s.recomputeBoundsLocked()
	ev := s.cameraEventLocked()
	s.mu.Unlock()
	s.send(ev)
}

// SelectRoute marks the given route as selected. SelectionChanged is emitted
// only when the selection actually changes.
func (s *Store) SelectRoute(id string) {
	s.mu.Lock()
	if s.selectedRouteID == id {
		s.mu.Unlock()
		return
	}
	s.selectedRouteID = id
	s.mu.Unlock()
	s.send(SelectionChanged{RouteID: id})
}

// ClearSelection drops the selected route, if any.
func (s *Store) ClearSelection() {
	s.SelectRoute("")
}

// SetShowHeatmap flips the heatmap layer toggle.
func (s *Store) SetShowHeatmap(on bool) {
	s.setToggle(ToggleHeatmap, on)
}

// SetShowFavorites flips the favorites layer toggle.
func (s *Store) SetShowFavorites(on bool) {
	s.setToggle(ToggleFavorites, on)
}

func (s *Store) setToggle(t Toggle, on bool) {
	s.mu.Lock()
	var changed bool
	switch t {
	case ToggleHeatmap:
		changed = s.showHeatmap != on
		s.showHeatmap = on
	case ToggleFavorites:
		changed = s.showFavorites != on
		s.showFavorites = on
	}
	s.mu.Unlock()
	if changed {
		s.send(ToggleChanged{Toggle: t, On: on})
	}
}

// Camera returns the current camera position.
func (s *Store) Camera() Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Camera{Center: s.center, Zoom: s.zoom}
}

// Bounds returns the currently visible region.
func (s *Store) Bounds() geo.Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

// SelectedRouteID returns the selected route ID, empty when none.
func (s *Store) SelectedRouteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedRouteID
}

// Toggles returns the layer toggle state.
func (s *Store) Toggles() Toggles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Toggles{ShowHeatmap: s.showHeatmap, ShowFavorites: s.showFavorites}
}

func (s *Store) recomputeBoundsLocked() {
	s.bounds = geo.BoundsAround(s.center, s.zoom, s.aspect)
}

func (s *Store) cameraEventLocked() CameraChanged {
	return CameraChanged{Center: s.center, Zoom: s.zoom, Bounds: s.bounds}
}

func (s *Store) send(event any) {
	if s.emit != nil {
		s.emit(event)
	}
}

func clampZoom(z float64) float64 {
	switch {
	case z < MinZoom:
		return MinZoom
	case z > MaxZoom:
		return MaxZoom
	}
	return z
}
