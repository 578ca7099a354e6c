package prefs

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository for
// development and testing.
type InMemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]Snapshot
}

// NewInMemoryRepository creates a new in-memory preference repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		snapshots: make(map[uuid.UUID]Snapshot),
	}
}

// Load retrieves the snapshot for a device.
func (r *InMemoryRepository) Load(_ context.Context, deviceID uuid.UUID) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[deviceID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// Save stores the snapshot, replacing any previous one for the device.
func (r *InMemoryRepository) Save(_ context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots[snap.DeviceID] = snap
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
