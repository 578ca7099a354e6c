package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists registered devices.
type Repository interface {
	// Upsert inserts the device or, when the id exists, updates its
	// platform, app version, and last-seen time while keeping the original
	// creation time. Reports whether a new row was created.
	Upsert(ctx context.Context, d *Device) (bool, error)

	// Get retrieves a device by id. Returns ErrDeviceNotFound when the
	// device was never registered.
	Get(ctx context.Context, id uuid.UUID) (*Device, error)

	// Touch bumps the device's last-seen time. Returns ErrDeviceNotFound
	// when the device was never registered.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}
