package prefs

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for preference storage.
type Repository interface {
	// Load retrieves the snapshot for a device. Returns ErrNotFound when the
	// device has never saved preferences.
	Load(ctx context.Context, deviceID uuid.UUID) (Snapshot, error)

	// Save stores the snapshot, replacing any previous one for the device.
	Save(ctx context.Context, snap Snapshot) error
}
