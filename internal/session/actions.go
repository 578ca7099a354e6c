package session

import (
	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/rules"
)

// sessionActions adapts the session's stores and fetch paths to the rule
// engine. Every method runs inside the turn that dispatched the event, so
// none of them may take the session lock; fetch-shaped actions hand the work
// to a goroutine that re-enters as its own turn.
type sessionActions struct {
	s *Session
}

func (a sessionActions) HeatmapEnabled() bool {
	return a.s.viewport.Toggles().ShowHeatmap
}

func (a sessionActions) ViewportBounds() geo.Bounds {
	return a.s.viewport.Bounds()
}

func (a sessionActions) FitBounds(b geo.Bounds) {
	a.s.viewport.FitBounds(b)
}

func (a sessionActions) ClearSelection() {
	a.s.viewport.ClearSelection()
}

func (a sessionActions) RouteBounds(id string) (geo.Bounds, bool) {
	for _, r := range a.s.search.Results() {
		if r.ID == id {
			return r.Bounds, true
		}
	}
	return geo.Bounds{}, false
}

func (a sessionActions) RequestHeatmap(b geo.Bounds) {
	a.s.requestHeatmap(b)
}

func (a sessionActions) ResolveAddress(field rules.Field, text string) {
	a.s.resolveAddress(field, text)
}

var _ rules.Actions = sessionActions{}
