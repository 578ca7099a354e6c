package search

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cleanairroute/cleanairroute/internal/geo"
)

var (
	// ErrNotReady is returned by Begin when the endpoints do not form a
	// searchable pair.
	ErrNotReady = errors.New("search endpoints not ready")

	// ErrFavoriteNotFound is returned when a favorite does not exist or
	// belongs to another device.
	ErrFavoriteNotFound = errors.New("favorite not found")

	// ErrFavoriteLimitReached is returned when a device already holds the
	// maximum number of favorites and the pair is not an update.
	ErrFavoriteLimitReached = errors.New("favorite limit reached")
)

const (
	// MaxFavorites caps saved favorites per device.
	MaxFavorites = 50

	// MaxHistory caps retained history entries per device.
	MaxHistory = 100

	// MaxRecents caps the derived recent-locations list.
	MaxRecents = 10

	// coordDecimals is the rounding applied before comparing endpoint
	// pairs for deduplication.
	coordDecimals = 5
)

// Favorite is a labeled start/end pair saved by a device.
type Favorite struct {
	ID        uuid.UUID    `json:"id"`
	DeviceID  uuid.UUID    `json:"device_id"`
	Label     string       `json:"label"`
	Start     geo.Location `json:"start"`
	End       geo.Location `json:"end"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HistoryEntry records one executed search.
type HistoryEntry struct {
	ID         uuid.UUID    `json:"id"`
	DeviceID   uuid.UUID    `json:"device_id"`
	Start      geo.Location `json:"start"`
	End        geo.Location `json:"end"`
	ExecutedAt time.Time    `json:"executed_at"`
}

func roundCoord(v float64) float64 {
	pow := math.Pow(10, coordDecimals)
	return math.Round(v*pow) / pow
}

// pointKey renders a point rounded to the dedup precision.
func pointKey(p geo.Point) string {
	return fmt.Sprintf("%.5f,%.5f", roundCoord(p.Lat), roundCoord(p.Lon))
}

// pairKey identifies a start/end pair for favorite and history dedup.
func pairKey(start, end geo.Point) string {
	return pointKey(start) + "|" + pointKey(end)
}
