package device

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository for tests
// and single-process deployments.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]Device
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[uuid.UUID]Device),
	}
}

// Upsert inserts or refreshes a device, keeping the stored creation time.
func (r *InMemoryRepository) Upsert(_ context.Context, d *Device) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.devices[d.ID]; ok {
		existing.Platform = d.Platform
		existing.AppVersion = d.AppVersion
		existing.LastSeenAt = d.LastSeenAt
		r.devices[d.ID] = existing
		*d = existing
		return false, nil
	}

	r.devices[d.ID] = *d
	return true, nil
}

// Get retrieves a device by id.
func (r *InMemoryRepository) Get(_ context.Context, id uuid.UUID) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	out := d
	return &out, nil
}

// Touch bumps the device's last-seen time.
func (r *InMemoryRepository) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	d.LastSeenAt = at
	r.devices[id] = d
	return nil
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
