package models

import (
	"github.com/google/uuid"

	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/notify"
	"github.com/cleanairroute/cleanairroute/internal/search"
	"github.com/cleanairroute/cleanairroute/internal/session"
	"github.com/cleanairroute/cleanairroute/internal/viewport"
)

// SessionIssueRequest asks for a session token. A known device id reuses the
// stored registration; an unknown or absent one registers the device, which
// requires the platform field.
type SessionIssueRequest struct {
	DeviceID   *uuid.UUID `json:"device_id,omitempty"`
	Platform   string     `json:"platform,omitempty" validate:"max=16"`
	AppVersion string     `json:"app_version,omitempty" validate:"max=32"`
}

// SessionIssueResponse carries the minted session token.
type SessionIssueResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt Timestamp `json:"expires_at"`
}

// SessionState is the full selector snapshot a client renders from.
type SessionState struct {
	Version uint64 `json:"version"`

	Camera          viewport.Camera  `json:"camera"`
	Bounds          geo.Bounds       `json:"bounds"`
	Toggles         viewport.Toggles `json:"toggles"`
	SelectedRouteID string           `json:"selected_route_id,omitempty"`

	Start     *geo.Location `json:"start,omitempty"`
	End       *geo.Location `json:"end,omitempty"`
	CanSearch bool          `json:"can_search"`
	Searching bool          `json:"searching"`

	Routes         []Route `json:"routes"`
	OptimalRouteID string  `json:"optimal_route_id,omitempty"`
	LastError      string  `json:"last_error,omitempty"`

	Heatmap *Heatmap `json:"heatmap,omitempty"`

	Notifications []notify.Notification `json:"notifications"`
}

// SessionStateFromDomain maps a session snapshot to its wire form.
func SessionStateFromDomain(st session.State) SessionState {
	out := SessionState{
		Version:         st.Version,
		Camera:          st.Camera,
		Bounds:          st.Bounds,
		Toggles:         st.Toggles,
		SelectedRouteID: st.SelectedRouteID,
		Start:           st.Start,
		End:             st.End,
		CanSearch:       st.CanSearch,
		Searching:       st.Searching,
		Routes:          RoutesFromDomain(st.Results),
		OptimalRouteID:  st.OptimalRouteID,
		LastError:       st.LastError,
		Notifications:   st.Notifications,
	}
	if st.Heatmap != nil {
		hm := HeatmapFromDomain(st.Heatmap)
		out.Heatmap = &hm
	}
	if out.Notifications == nil {
		out.Notifications = []notify.Notification{}
	}
	return out
}

// CameraRequest moves the camera. Omitted fields keep their current value.
type CameraRequest struct {
	Center *Point   `json:"center,omitempty"`
	Zoom   *float64 `json:"zoom,omitempty"`
}

// FitBoundsRequest frames a region, padded and clamped by the viewport.
type FitBoundsRequest struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
}

// TogglesRequest flips layer toggles. Omitted fields are left alone.
type TogglesRequest struct {
	ShowHeatmap   *bool `json:"show_heatmap,omitempty"`
	ShowFavorites *bool `json:"show_favorites,omitempty"`
}

// MapClickRequest reports a tap on the map canvas.
type MapClickRequest struct {
	Point Point `json:"point"`
}

// EndpointRequest sets one search endpoint, either as a resolved location or
// as free address text to geocode. Exactly one of the two must be present.
type EndpointRequest struct {
	Location *LocationInput `json:"location,omitempty"`
	Address  string         `json:"address,omitempty" validate:"max=240"`
}

// FavoriteCreateRequest saves a start/end pair under a label.
type FavoriteCreateRequest struct {
	Label string        `json:"label" validate:"required,max=80"`
	Start LocationInput `json:"start"`
	End   LocationInput `json:"end"`
}

// FavoriteList wraps the saved favorites of a device.
type FavoriteList struct {
	Items []search.Favorite `json:"items"`
}

// HistoryList wraps the search history of a device, newest first.
type HistoryList struct {
	Items []search.HistoryEntry `json:"items"`
}

// RecentList wraps recently used locations, newest first.
type RecentList struct {
	Items []geo.Location `json:"items"`
}

// NotificationList wraps the pending notification queue, newest first.
type NotificationList struct {
	Items []notify.Notification `json:"items"`
}
