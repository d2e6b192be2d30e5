package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
)

// ReservationRepo provides access to the reservations audit table.
// One row is written per granted reservation; the live state lives on
// the parking_spaces row.  Rows are append-only.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, reference, parking_space_id, zone_id, chat_id, license_plate,
	rail, amount, payment_ref, starts_at, ends_at, created_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var res model.Reservation
	var payRef sql.NullString
	err := row.Scan(&res.ID, &res.Reference, &res.SpaceID, &res.ZoneID, &res.ChatID,
		&res.LicensePlate, &res.Rail, &res.Amount, &payRef, &res.StartsAt, &res.EndsAt, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	if payRef.Valid {
		ref := payRef.String
		res.PaymentRef = &ref
	}
	return &res, nil
}

// Create inserts an audit row and populates the generated ID.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (reference, parking_space_id, zone_id, chat_id, license_plate,
	             rail, amount, payment_ref, starts_at, ends_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, res.Reference, res.SpaceID, res.ZoneID, res.ChatID,
		res.LicensePlate, res.Rail, res.Amount, res.PaymentRef, res.StartsAt.UTC(), res.EndsAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// ListRecent returns the newest reservations up to limit, for the
// dashboard history view.
func (r *ReservationRepo) ListRecent(ctx context.Context, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + reservationColumns + ` FROM reservations ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByChatID returns a user's reservations newest first, for the
// /status command.
func (r *ReservationRepo) ListByChatID(ctx context.Context, chatID int64, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT ` + reservationColumns + `
	           FROM reservations WHERE chat_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByReference looks a reservation up by its public code.
func (r *ReservationRepo) GetByReference(ctx context.Context, reference string) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE reference = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	return res, err
}
