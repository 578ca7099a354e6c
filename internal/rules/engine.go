// Package rules wires the reactive synchronization rules that keep the map
// session coherent: the heatmap follows the camera, selections and results
// fit the viewport, map clicks clear the selection, and committed address
// text resolves into search endpoints.
//
// The engine runs inside the emitting turn: store mutations dispatch their
// events synchronously, rules run before the operation returns, and any
// mutation a rule performs cascades through the same dispatcher. A depth cap
// stops runaway cascades.
package rules

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/search"
	"github.com/cleanairroute/cleanairroute/internal/viewport"
)

// DefaultMaxDepth bounds rule cascade nesting. No legitimate cascade in the
// current rule set is deeper than three.
const DefaultMaxDepth = 8

// Actions is what the rule engine can do to the session. Implementations
// must not block: fetch-shaped actions start asynchronous work whose
// completion re-enters the session as its own turn.
type Actions interface {
	// HeatmapEnabled reports the heatmap layer toggle.
	HeatmapEnabled() bool

	// ViewportBounds returns the currently visible region.
	ViewportBounds() geo.Bounds

	// FitBounds positions the camera over b.
	FitBounds(b geo.Bounds)

	// ClearSelection drops the selected route.
	ClearSelection()

	// RouteBounds returns the bounds of a route in the current results.
	RouteBounds(id string) (geo.Bounds, bool)

	// RequestHeatmap starts an asynchronous heatmap fetch for b.
	RequestHeatmap(b geo.Bounds)

	// ResolveAddress starts an asynchronous geocode of text; on success the
	// named endpoint is set. Failures stay silent.
	ResolveAddress(field Field, text string)
}

// Config configures an Engine.
type Config struct {
	Actions Actions

	// MaxDepth bounds cascade nesting. Defaults to DefaultMaxDepth.
	MaxDepth int

	Logger zerolog.Logger
}

// Engine dispatches store and input events to the synchronization rules.
// Not safe for concurrent use; the session turn lock serializes dispatch.
type Engine struct {
	actions  Actions
	maxDepth int
	logger   zerolog.Logger
	depth    int
}

// New builds an Engine.
func New(cfg Config) *Engine {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Engine{
		actions:  cfg.Actions,
		maxDepth: cfg.MaxDepth,
		logger:   cfg.Logger.With().Str("component", "rules").Logger(),
	}
}

// Dispatch runs every rule that listens to the given event. Events arriving
// beyond the cascade depth cap are dropped with a warning.
func (e *Engine) Dispatch(event any) {
	if e.depth >= e.maxDepth {
		e.logger.Warn().
			Int("depth", e.depth).
			Str("event", fmt.Sprintf("%T", event)).
			Msg("rule cascade depth exceeded, dropping event")
		return
	}
	e.depth++
	defer func() { e.depth-- }()

	switch ev := event.(type) {
	case viewport.CameraChanged:
		e.heatmapFollowsCamera(ev)
	case viewport.ToggleChanged:
		e.heatmapFollowsToggle(ev)
	case viewport.SelectionChanged:
		e.selectionFitsBounds(ev)
	case search.ResultsUpdated:
		e.resultsFitBounds(ev)
	case MapClicked:
		e.actions.ClearSelection()
	case AddressCommitted:
		e.addressResolves(ev)
	}
}

// heatmapFollowsCamera requests heatmap data for the new visible region
// whenever the heatmap layer is on.
func (e *Engine) heatmapFollowsCamera(ev viewport.CameraChanged) {
	if !e.actions.HeatmapEnabled() {
		return
	}
	e.actions.RequestHeatmap(ev.Bounds)
}

// heatmapFollowsToggle requests heatmap data for the current region when the
// heatmap layer turns on.
func (e *Engine) heatmapFollowsToggle(ev viewport.ToggleChanged) {
	if ev.Toggle != viewport.ToggleHeatmap || !ev.On {
		return
	}
	e.actions.RequestHeatmap(e.actions.ViewportBounds())
}

// selectionFitsBounds frames the newly selected route. The FitBounds camera
// event cascades back through Dispatch, where only the heatmap rule hears it.
func (e *Engine) selectionFitsBounds(ev viewport.SelectionChanged) {
	if ev.RouteID == "" {
		return
	}
	bounds, ok := e.actions.RouteBounds(ev.RouteID)
	if !ok || bounds.IsZero() {
		return
	}
	e.actions.FitBounds(bounds)
}

// resultsFitBounds frames all result routes with a single fit over the union
// of their bounds.
func (e *Engine) resultsFitBounds(ev search.ResultsUpdated) {
	if len(ev.Results) == 0 {
		return
	}
	all := make([]geo.Bounds, 0, len(ev.Results))
	for _, r := range ev.Results {
		if !r.Bounds.IsZero() {
			all = append(all, r.Bounds)
		}
	}
	union, ok := geo.UnionBounds(all...)
	if !ok {
		return
	}
	e.actions.FitBounds(union)
}

// addressResolves geocodes committed address text into its endpoint slot.
func (e *Engine) addressResolves(ev AddressCommitted) {
	if ev.Text == "" {
		return
	}
	e.actions.ResolveAddress(ev.Field, ev.Text)
}
