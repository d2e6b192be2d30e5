package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
)

// SpaceRepo provides data access to the parking_spaces table.  Sensor
// ingestion and the reservation engine are the two writers; the
// dashboard API reads through it.  All timestamps are stored in UTC.
type SpaceRepo struct {
	db *sql.DB
}

// NewSpaceRepo returns a new SpaceRepo bound to the given database.
func NewSpaceRepo(db *sql.DB) *SpaceRepo { return &SpaceRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning multiple repositories.
func (r *SpaceRepo) DB() *sql.DB { return r.db }

const spaceColumns = `id, zone_id, label, status, latitude, longitude,
	occupant_plate, reserved_from, reserved_until, created_at, updated_at`

func scanSpace(row interface{ Scan(...any) error }) (*model.ParkingSpace, error) {
	var s model.ParkingSpace
	var plate sql.NullString
	var from, until sql.NullTime
	err := row.Scan(&s.ID, &s.ZoneID, &s.Label, &s.Status, &s.Latitude, &s.Longitude,
		&plate, &from, &until, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if plate.Valid {
		p := plate.String
		s.OccupantPlate = &p
	}
	if from.Valid {
		t := from.Time
		s.ReservedFrom = &t
	}
	if until.Valid {
		t := until.Time
		s.ReservedUntil = &t
	}
	return &s, nil
}

// GetByID returns a single parking space.  ErrSpaceNotFound is
// returned when the id does not exist.
func (r *SpaceRepo) GetByID(ctx context.Context, id uint64) (*model.ParkingSpace, error) {
	const q = `SELECT ` + spaceColumns + ` FROM parking_spaces WHERE id = ?`
	s, err := scanSpace(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpaceNotFound
	}
	return s, err
}

// GetWithZone loads a space together with its owning zone in a single
// round trip.  The reservation flow needs both: the space for the
// availability check and the zone for premium gating and pricing.
func (r *SpaceRepo) GetWithZone(ctx context.Context, id uint64) (*model.ParkingSpace, *model.Zone, error) {
	const q = `SELECT s.id, s.zone_id, s.label, s.status, s.latitude, s.longitude,
	                  s.occupant_plate, s.reserved_from, s.reserved_until, s.created_at, s.updated_at,
	                  z.id, z.name, z.is_premium, z.hourly_rate_stars, z.hourly_rate_nano,
	                  z.max_duration_hours, z.created_at
	           FROM parking_spaces s
	           JOIN zones z ON z.id = s.zone_id
	           WHERE s.id = ?`
	var s model.ParkingSpace
	var z model.Zone
	var plate sql.NullString
	var from, until sql.NullTime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ZoneID, &s.Label, &s.Status, &s.Latitude, &s.Longitude,
		&plate, &from, &until, &s.CreatedAt, &s.UpdatedAt,
		&z.ID, &z.Name, &z.IsPremium, &z.HourlyRateStars, &z.HourlyRateNano,
		&z.MaxDurationHours, &z.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrSpaceNotFound
		}
		return nil, nil, err
	}
	if plate.Valid {
		p := plate.String
		s.OccupantPlate = &p
	}
	if from.Valid {
		t := from.Time
		s.ReservedFrom = &t
	}
	if until.Valid {
		t := until.Time
		s.ReservedUntil = &t
	}
	return &s, &z, nil
}

// List returns all spaces, optionally filtered to a single zone when
// zoneID is non-zero.  Ordered by zone then label for stable output.
func (r *SpaceRepo) List(ctx context.Context, zoneID uint64) ([]model.ParkingSpace, error) {
	q := `SELECT ` + spaceColumns + ` FROM parking_spaces`
	args := []any{}
	if zoneID != 0 {
		q += ` WHERE zone_id = ?`
		args = append(args, zoneID)
	}
	q += ` ORDER BY zone_id, label`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	spaces := make([]model.ParkingSpace, 0)
	for rows.Next() {
		s, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return spaces, nil
}

// ListAvailableByZone returns spaces in a zone that can currently be
// reserved: VACANT, or RESERVED with a lapsed window.  Used to build
// the space-selection keyboard.
func (r *SpaceRepo) ListAvailableByZone(ctx context.Context, zoneID uint64, now time.Time) ([]model.ParkingSpace, error) {
	const q = `SELECT ` + spaceColumns + `
	           FROM parking_spaces
	           WHERE zone_id = ?
	             AND (status = 'VACANT'
	                  OR (status = 'RESERVED' AND reserved_until IS NOT NULL AND reserved_until <= ?))
	           ORDER BY label`
	rows, err := r.db.QueryContext(ctx, q, zoneID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	spaces := make([]model.ParkingSpace, 0)
	for rows.Next() {
		s, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return spaces, nil
}

// ReserveIfAvailable attempts to transition a space to RESERVED with a
// single conditional UPDATE.  The predicate accepts a VACANT space or
// a RESERVED one whose window has lapsed, and the check-and-set happen
// in one statement, so of any number of concurrent attempts on the
// same space exactly one observes an affected row.  It returns true
// when this caller won the reservation.
func (r *SpaceRepo) ReserveIfAvailable(ctx context.Context, spaceID uint64, plate string, from, until time.Time) (bool, error) {
	const q = `UPDATE parking_spaces
	           SET status = 'RESERVED', occupant_plate = ?, reserved_from = ?, reserved_until = ?
	           WHERE id = ?
	             AND (status = 'VACANT'
	                  OR (status = 'RESERVED' AND reserved_until IS NOT NULL AND reserved_until <= ?))`
	res, err := r.db.ExecContext(ctx, q, plate, from.UTC(), until.UTC(), spaceID, from.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkOccupied records a sensor's occupancy report.  The plate is
// optional; lots without plate recognition report occupancy only.
func (r *SpaceRepo) MarkOccupied(ctx context.Context, spaceID uint64, plate *string) error {
	const q = `UPDATE parking_spaces SET status = 'OCCUPIED', occupant_plate = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, plate, spaceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, spaceID); err != nil {
			return err
		}
	}
	return nil
}

// MarkVacant records a sensor's departure report.  Only an OCCUPIED
// space is released: reserved spaces are freed by the reservation TTL
// sweep, not by sensors, so a reserved-but-empty space stays reserved.
func (r *SpaceRepo) MarkVacant(ctx context.Context, spaceID uint64) error {
	const q = `UPDATE parking_spaces
	           SET status = 'VACANT', occupant_plate = NULL, reserved_from = NULL, reserved_until = NULL
	           WHERE id = ? AND status = 'OCCUPIED'`
	res, err := r.db.ExecContext(ctx, q, spaceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, spaceID); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseExpired frees reserved spaces whose window has lapsed.  The
// server runs this periodically; the reservation CAS does not depend
// on it for correctness since its predicate re-checks the window.
func (r *SpaceRepo) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE parking_spaces
	           SET status = 'VACANT', occupant_plate = NULL, reserved_from = NULL, reserved_until = NULL
	           WHERE status = 'RESERVED' AND reserved_until IS NOT NULL AND reserved_until <= ?`
	res, err := r.db.ExecContext(ctx, q, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
