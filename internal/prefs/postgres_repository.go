package prefs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL preference repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Load retrieves the snapshot for a device.
func (r *PostgresRepository) Load(ctx context.Context, deviceID uuid.UUID) (Snapshot, error) {
	query := `
		SELECT device_id, center_lat, center_lon, zoom, show_heatmap, show_favorites, updated_at
		FROM device_preferences
		WHERE device_id = $1
	`

	var snap Snapshot
	err := r.pool.QueryRow(ctx, query, deviceID).Scan(
		&snap.DeviceID,
		&snap.Center.Lat,
		&snap.Center.Lon,
		&snap.Zoom,
		&snap.ShowHeatmap,
		&snap.ShowFavorites,
		&snap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}

	return snap, nil
}

// Save stores the snapshot, replacing any previous one for the device.
func (r *PostgresRepository) Save(ctx context.Context, snap Snapshot) error {
	query := `
		INSERT INTO device_preferences (
			device_id, center_lat, center_lon, zoom, show_heatmap, show_favorites, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (device_id) DO UPDATE SET
			center_lat = EXCLUDED.center_lat,
			center_lon = EXCLUDED.center_lon,
			zoom = EXCLUDED.zoom,
			show_heatmap = EXCLUDED.show_heatmap,
			show_favorites = EXCLUDED.show_favorites,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		snap.DeviceID,
		snap.Center.Lat,
		snap.Center.Lon,
		snap.Zoom,
		snap.ShowHeatmap,
		snap.ShowFavorites,
		snap.UpdatedAt,
	)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
