package session

import (
	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/notify"
	"github.com/cleanairroute/cleanairroute/internal/routing"
	"github.com/cleanairroute/cleanairroute/internal/viewport"
)

// State is a consistent snapshot of everything a client renders: camera,
// toggles, endpoints, results, the latest overlay, and pending notifications.
// Version increases with every event, so clients can diff cheaply.
type State struct {
	Version uint64

	Camera          viewport.Camera
	Bounds          geo.Bounds
	Toggles         viewport.Toggles
	SelectedRouteID string

	Start     *geo.Location
	End       *geo.Location
	CanSearch bool
	Searching bool

	Results        []routing.Route
	OptimalRouteID string
	LastError      string

	Heatmap *airquality.Heatmap

	Notifications []notify.Notification
}

// State assembles the full selector snapshot under the turn lock.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()

	st := State{
		Version:         s.version,
		Camera:          s.viewport.Camera(),
		Bounds:          s.viewport.Bounds(),
		Toggles:         s.viewport.Toggles(),
		SelectedRouteID: s.viewport.SelectedRouteID(),
		CanSearch:       s.search.CanSearch(),
		Searching:       s.search.Searching(),
		Results:         s.search.Results(),
		OptimalRouteID:  s.search.OptimalRouteID(),
		Heatmap:         s.heatmap,
		Notifications:   s.queue.List(),
	}
	if start, ok := s.search.Start(); ok {
		st.Start = &start
	}
	if end, ok := s.search.End(); ok {
		st.End = &end
	}
	if err := s.search.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}
