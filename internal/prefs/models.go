// Package prefs persists per-device viewport preferences: the camera position
// and layer toggles a device left off with. Bounds, route selection, results,
// and notifications are deliberately not part of the snapshot.
package prefs

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/viewport"
)

// ErrNotFound indicates the device has no stored preferences yet.
var ErrNotFound = errors.New("preferences not found")

// Snapshot is the persisted slice of viewport state for one device.
type Snapshot struct {
	DeviceID      uuid.UUID `json:"device_id"`
	Center        geo.Point `json:"center"`
	Zoom          float64   `json:"zoom"`
	ShowHeatmap   bool      `json:"show_heatmap"`
	ShowFavorites bool      `json:"show_favorites"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultSnapshot returns the Seoul city-center defaults used when a device
// has no stored preferences.
func DefaultSnapshot(deviceID uuid.UUID) Snapshot {
	return Snapshot{
		DeviceID: deviceID,
		Center:   viewport.DefaultCenter,
		Zoom:     viewport.DefaultZoom,
	}
}
