package search

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and single-node development. Production
// should use PostgresRepository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	favorites map[uuid.UUID][]Favorite
	history   map[uuid.UUID][]HistoryEntry
}

// NewInMemoryRepository creates a new in-memory search repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		favorites: make(map[uuid.UUID][]Favorite),
		history:   make(map[uuid.UUID][]HistoryEntry),
	}
}

// SaveFavorite inserts or label-updates a favorite.
func (r *InMemoryRepository) SaveFavorite(_ context.Context, fav Favorite) (Favorite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(fav.Start.Point, fav.End.Point)
	list := r.favorites[fav.DeviceID]

	for i := range list {
		if pairKey(list[i].Start.Point, list[i].End.Point) == key {
			list[i].Label = fav.Label
			list[i].UpdatedAt = fav.UpdatedAt
			return list[i], nil
		}
	}

	if len(list) >= MaxFavorites {
		return Favorite{}, ErrFavoriteLimitReached
	}

	r.favorites[fav.DeviceID] = append(list, fav)
	return fav, nil
}

// Favorites lists a device's favorites, newest first.
func (r *InMemoryRepository) Favorites(_ context.Context, deviceID uuid.UUID) ([]Favorite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.favorites[deviceID]
	out := make([]Favorite, len(list))
	for i, fav := range list {
		out[len(list)-1-i] = fav
	}
	return out, nil
}

// DeleteFavorite removes one favorite by ID.
func (r *InMemoryRepository) DeleteFavorite(_ context.Context, deviceID, favoriteID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.favorites[deviceID]
	for i := range list {
		if list[i].ID == favoriteID {
			r.favorites[deviceID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrFavoriteNotFound
}

// AppendHistory records an executed search, collapsing consecutive
// duplicates and evicting beyond the cap.
func (r *InMemoryRepository) AppendHistory(_ context.Context, entry HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.history[entry.DeviceID]

	if n := len(list); n > 0 {
		last := &list[n-1]
		if pairKey(last.Start.Point, last.End.Point) == pairKey(entry.Start.Point, entry.End.Point) {
			last.ExecutedAt = entry.ExecutedAt
			return nil
		}
	}

	list = append(list, entry)
	if len(list) > MaxHistory {
		list = list[len(list)-MaxHistory:]
	}
	r.history[entry.DeviceID] = list
	return nil
}

// History lists a device's history, most recent first.
func (r *InMemoryRepository) History(_ context.Context, deviceID uuid.UUID, limit int) ([]HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}

	list := r.history[deviceID]
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]HistoryEntry, len(list))
	for i, entry := range list {
		out[len(list)-1-i] = entry
	}
	return out, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
