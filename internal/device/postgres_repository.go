package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// Schema:
//
//	CREATE TABLE devices (
//	    id           UUID PRIMARY KEY,
//	    platform     TEXT NOT NULL,
//	    app_version  TEXT NOT NULL DEFAULT '',
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    last_seen_at TIMESTAMPTZ NOT NULL
//	);
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Upsert inserts the device or refreshes an existing row, keeping the
// original creation time. Reports whether a new row was created.
func (r *PostgresRepository) Upsert(ctx context.Context, d *Device) (bool, error) {
	query := `
		INSERT INTO devices (id, platform, app_version, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			platform = EXCLUDED.platform,
			app_version = EXCLUDED.app_version,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING created_at, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		d.ID,
		d.Platform,
		d.AppVersion,
		d.CreatedAt,
		d.LastSeenAt,
	).Scan(&d.CreatedAt, &inserted)
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// Get retrieves a device by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Device, error) {
	query := `
		SELECT id, platform, app_version, created_at, last_seen_at
		FROM devices
		WHERE id = $1
	`

	var d Device
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Platform,
		&d.AppVersion,
		&d.CreatedAt,
		&d.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	return &d, nil
}

// Touch bumps the device's last-seen time.
func (r *PostgresRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE devices SET last_seen_at = $2 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
