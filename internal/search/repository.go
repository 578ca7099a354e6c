package search

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists favorites and search history per device. Implementations
// own the storage-shaped rules: the favorite cap with duplicate-pair upsert,
// and the history cap with consecutive-duplicate collapse.
type Repository interface {
	// SaveFavorite inserts fav, or updates the label of the existing row
	// when the device already holds the same rounded start/end pair.
	// Returns ErrFavoriteLimitReached when a new row would exceed
	// MaxFavorites.
	SaveFavorite(ctx context.Context, fav Favorite) (Favorite, error)

	// Favorites lists the device's favorites, newest first.
	Favorites(ctx context.Context, deviceID uuid.UUID) ([]Favorite, error)

	// DeleteFavorite removes one favorite. Returns ErrFavoriteNotFound when
	// it does not exist or belongs to another device.
	DeleteFavorite(ctx context.Context, deviceID, favoriteID uuid.UUID) error

	// AppendHistory records an executed search. A pair equal to the
	// device's most recent entry collapses into it; beyond MaxHistory the
	// oldest entries are evicted.
	AppendHistory(ctx context.Context, entry HistoryEntry) error

	// History lists the device's history, most recent first, at most limit
	// entries (MaxHistory when limit is zero or negative).
	History(ctx context.Context, deviceID uuid.UUID, limit int) ([]HistoryEntry, error)
}
