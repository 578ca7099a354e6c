package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL search repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SaveFavorite inserts or label-updates a favorite inside one transaction so
// the per-device cap stays exact under concurrent saves.
func (r *PostgresRepository) SaveFavorite(ctx context.Context, fav Favorite) (Favorite, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Favorite{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	key := pairKey(fav.Start.Point, fav.End.Point)

	update := `
		UPDATE route_favorites
		SET label = $3, updated_at = $4
		WHERE device_id = $1 AND pair_key = $2
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, update, fav.DeviceID, key, fav.Label, fav.UpdatedAt).
		Scan(&fav.ID, &fav.CreatedAt)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return Favorite{}, err
		}
		return fav, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Favorite{}, err
	}

	var count int
	countQuery := `SELECT COUNT(*) FROM route_favorites WHERE device_id = $1`
	if err := tx.QueryRow(ctx, countQuery, fav.DeviceID).Scan(&count); err != nil {
		return Favorite{}, err
	}
	if count >= MaxFavorites {
		return Favorite{}, ErrFavoriteLimitReached
	}

	insert := `
		INSERT INTO route_favorites (
			id, device_id, label, pair_key,
			start_name, start_address, start_lat, start_lon,
			end_name, end_address, end_lat, end_lon,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.Exec(ctx, insert,
		fav.ID, fav.DeviceID, fav.Label, key,
		fav.Start.Name, fav.Start.Address, fav.Start.Point.Lat, fav.Start.Point.Lon,
		fav.End.Name, fav.End.Address, fav.End.Point.Lat, fav.End.Point.Lon,
		fav.CreatedAt, fav.UpdatedAt,
	)
	if err != nil {
		return Favorite{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Favorite{}, err
	}
	return fav, nil
}

// Favorites lists a device's favorites, newest first.
func (r *PostgresRepository) Favorites(ctx context.Context, deviceID uuid.UUID) ([]Favorite, error) {
	query := `
		SELECT
			id, device_id, label,
			start_name, start_address, start_lat, start_lon,
			end_name, end_address, end_lat, end_lon,
			created_at, updated_at
		FROM route_favorites
		WHERE device_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favorites []Favorite
	for rows.Next() {
		var fav Favorite
		err := rows.Scan(
			&fav.ID,
			&fav.DeviceID,
			&fav.Label,
			&fav.Start.Name,
			&fav.Start.Address,
			&fav.Start.Point.Lat,
			&fav.Start.Point.Lon,
			&fav.End.Name,
			&fav.End.Address,
			&fav.End.Point.Lat,
			&fav.End.Point.Lon,
			&fav.CreatedAt,
			&fav.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, fav)
	}

	return favorites, rows.Err()
}

// DeleteFavorite removes one favorite by ID.
func (r *PostgresRepository) DeleteFavorite(ctx context.Context, deviceID, favoriteID uuid.UUID) error {
	query := `DELETE FROM route_favorites WHERE device_id = $1 AND id = $2`

	result, err := r.pool.Exec(ctx, query, deviceID, favoriteID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}

// AppendHistory records an executed search, collapsing a repeat of the most
// recent pair and trimming the device's history to the cap.
func (r *PostgresRepository) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	key := pairKey(entry.Start.Point, entry.End.Point)

	collapse := `
		UPDATE search_history
		SET executed_at = $3
		WHERE pair_key = $2 AND id = (
			SELECT id FROM search_history
			WHERE device_id = $1
			ORDER BY executed_at DESC
			LIMIT 1
		)
	`
	tag, err := tx.Exec(ctx, collapse, entry.DeviceID, key, entry.ExecutedAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		insert := `
			INSERT INTO search_history (
				id, device_id, pair_key,
				start_name, start_address, start_lat, start_lon,
				end_name, end_address, end_lat, end_lon,
				executed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		_, err = tx.Exec(ctx, insert,
			entry.ID, entry.DeviceID, key,
			entry.Start.Name, entry.Start.Address, entry.Start.Point.Lat, entry.Start.Point.Lon,
			entry.End.Name, entry.End.Address, entry.End.Point.Lat, entry.End.Point.Lon,
			entry.ExecutedAt,
		)
		if err != nil {
			return err
		}

		trim := `
			DELETE FROM search_history
			WHERE device_id = $1 AND id NOT IN (
				SELECT id FROM search_history
				WHERE device_id = $1
				ORDER BY executed_at DESC
				LIMIT $2
			)
		`
		if _, err := tx.Exec(ctx, trim, entry.DeviceID, MaxHistory); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// History lists a device's history, most recent first.
func (r *PostgresRepository) History(ctx context.Context, deviceID uuid.UUID, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}

	query := `
		SELECT
			id, device_id,
			start_name, start_address, start_lat, start_lon,
			end_name, end_address, end_lat, end_lon,
			executed_at
		FROM search_history
		WHERE device_id = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.DeviceID,
			&entry.Start.Name,
			&entry.Start.Address,
			&entry.Start.Point.Lat,
			&entry.Start.Point.Lon,
			&entry.End.Name,
			&entry.End.Address,
			&entry.End.Point.Lat,
			&entry.End.Point.Lon,
			&entry.ExecutedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
