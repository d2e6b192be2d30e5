package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
)

// ZoneRepo provides read access to the zones table.  Zones are
// administered out of band (dashboard CRUD); the bot only reads them
// for pricing and premium gating.
type ZoneRepo struct {
	db *sql.DB
}

// NewZoneRepo returns a new ZoneRepo bound to the given database.
func NewZoneRepo(db *sql.DB) *ZoneRepo { return &ZoneRepo{db: db} }

const zoneColumns = `id, name, is_premium, hourly_rate_stars, hourly_rate_nano, max_duration_hours, created_at`

// GetByID returns a single zone.  ErrZoneNotFound is returned when
// the id does not exist.
func (r *ZoneRepo) GetByID(ctx context.Context, id uint64) (*model.Zone, error) {
	const q = `SELECT ` + zoneColumns + ` FROM zones WHERE id = ?`
	var z model.Zone
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&z.ID, &z.Name, &z.IsPremium, &z.HourlyRateStars, &z.HourlyRateNano,
		&z.MaxDurationHours, &z.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, err
	}
	return &z, nil
}

// List returns all zones ordered by name.
func (r *ZoneRepo) List(ctx context.Context) ([]model.Zone, error) {
	const q = `SELECT ` + zoneColumns + ` FROM zones ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	zones := make([]model.Zone, 0)
	for rows.Next() {
		var z model.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.IsPremium, &z.HourlyRateStars,
			&z.HourlyRateNano, &z.MaxDurationHours, &z.CreatedAt); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return zones, nil
}
