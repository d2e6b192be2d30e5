package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
)

// PaymentRepo is the payment ledger.  Every payment attempt gets a row
// and rows are never deleted.  Idempotency is enforced by the database
// itself through the unique key on (tx_reference, parking_space_id):
// two handler instances processing redelivered copies of the same
// event cannot both insert, whichever loses reads the winner's row.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, tx_reference, parking_space_id, payer_chat_id, license_plate,
	rail, amount, status, consumed_at, created_at`

// duplicateKey reports whether err is the MySQL unique-key violation.
func duplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	var consumed sql.NullTime
	err := row.Scan(&p.ID, &p.TxReference, &p.SpaceID, &p.PayerChatID, &p.LicensePlate,
		&p.Rail, &p.Amount, &p.Status, &consumed, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if consumed.Valid {
		t := consumed.Time
		p.ConsumedAt = &t
	}
	return &p, nil
}

// Get returns the ledger row for the given idempotency key, or
// ErrPaymentNotFound.
func (r *PaymentRepo) Get(ctx context.Context, txRef string, spaceID uint64) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE tx_reference = ? AND parking_space_id = ?`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, txRef, spaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// RecordOrGet inserts a ledger row for (txRef, spaceID) or, when one
// already exists, returns it unchanged.  The boolean reports whether
// the row was created by this call.  verified=true records the row as
// VERIFIED directly; the in-chat invoice rail uses this because the
// platform's own success event is the verification.
func (r *PaymentRepo) RecordOrGet(ctx context.Context, txRef string, spaceID uint64, payerChatID int64, plate, rail string, amount uint64, verified bool) (*model.Payment, bool, error) {
	status := model.PaymentPending
	if verified {
		status = model.PaymentVerified
	}
	const ins = `INSERT INTO payments (tx_reference, parking_space_id, payer_chat_id, license_plate, rail, amount, status)
	             VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, ins, txRef, spaceID, payerChatID, plate, rail, amount, status)
	if err != nil {
		if duplicateKey(err) {
			p, gerr := r.Get(ctx, txRef, spaceID)
			if gerr != nil {
				return nil, false, gerr
			}
			return p, false, nil
		}
		return nil, false, err
	}
	p, err := r.Get(ctx, txRef, spaceID)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// MarkVerified transitions PENDING to VERIFIED.  Calling it on an
// already-verified row is a no-op; a verified row never transitions
// anywhere else.  ErrInvalidPaymentState is returned for REJECTED
// rows and ErrPaymentNotFound when the key does not exist.
func (r *PaymentRepo) MarkVerified(ctx context.Context, txRef string, spaceID uint64) error {
	const q = `UPDATE payments SET status = 'VERIFIED'
	           WHERE tx_reference = ? AND parking_space_id = ? AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, q, txRef, spaceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	p, err := r.Get(ctx, txRef, spaceID)
	if err != nil {
		return err
	}
	if p.Status == model.PaymentVerified {
		return nil
	}
	return ErrInvalidPaymentState
}

// MarkRejected transitions PENDING to REJECTED, recording evidence
// that failed on-chain verification.  Verified rows are immutable.
func (r *PaymentRepo) MarkRejected(ctx context.Context, txRef string, spaceID uint64) error {
	const q = `UPDATE payments SET status = 'REJECTED'
	           WHERE tx_reference = ? AND parking_space_id = ? AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, q, txRef, spaceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	p, err := r.Get(ctx, txRef, spaceID)
	if err != nil {
		return err
	}
	if p.Status == model.PaymentRejected {
		return nil
	}
	return ErrInvalidPaymentState
}

// IsVerified is the pure read used as the gate before any reservation
// mutation.  A missing row reads as not verified.
func (r *PaymentRepo) IsVerified(ctx context.Context, txRef string, spaceID uint64) (bool, error) {
	p, err := r.Get(ctx, txRef, spaceID)
	if errors.Is(err, ErrPaymentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Status == model.PaymentVerified, nil
}

// CreateIntent records a manual-rail payment that is still awaiting
// its transaction hash.  The generated intent reference keeps the row
// addressable until AttachReference re-keys it to the on-chain hash.
func (r *PaymentRepo) CreateIntent(ctx context.Context, intentRef string, spaceID uint64, payerChatID int64, plate string, amount uint64) (*model.Payment, error) {
	p, _, err := r.RecordOrGet(ctx, intentRef, spaceID, payerChatID, plate, model.RailTon, amount, false)
	return p, err
}

// FindPendingByPlate returns the most recent pending manual-rail
// payment for a plate created at or after the given instant.  A
// submitted transaction hash is matched against any pending payment
// for the plate within the last hour; the hash itself does not name a
// space, so this matching is heuristic.
func (r *PaymentRepo) FindPendingByPlate(ctx context.Context, plate string, since time.Time) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + `
	           FROM payments
	           WHERE license_plate = ? AND rail = 'TON' AND status = 'PENDING' AND created_at >= ?
	           ORDER BY created_at DESC
	           LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, plate, since.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// AttachReference re-keys a pending intent row to the submitted
// transaction hash.  When the hash is already recorded for the same
// space the existing row is returned instead, so resubmitting the
// same transaction reference reuses the original ledger row.
func (r *PaymentRepo) AttachReference(ctx context.Context, payment *model.Payment, txHash string) (*model.Payment, error) {
	const q = `UPDATE payments SET tx_reference = ? WHERE id = ? AND status = 'PENDING'`
	_, err := r.db.ExecContext(ctx, q, txHash, payment.ID)
	if err != nil {
		if duplicateKey(err) {
			return r.Get(ctx, txHash, payment.SpaceID)
		}
		return nil, err
	}
	return r.Get(ctx, txHash, payment.SpaceID)
}

// GetByReference returns the newest ledger row for a transaction
// reference regardless of space.  Resubmitted manual-rail evidence is
// looked up this way because a bare hash does not name a space.
func (r *PaymentRepo) GetByReference(ctx context.Context, txRef string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + `
	           FROM payments
	           WHERE tx_reference = ?
	           ORDER BY created_at DESC
	           LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, txRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// MarkConsumed stamps the moment a reservation was granted against
// the payment.  Verified rows that never get consumed (the loser of a
// contested space) stay visible through ListUnconsumedVerified.
func (r *PaymentRepo) MarkConsumed(ctx context.Context, txRef string, spaceID uint64) error {
	const q = `UPDATE payments SET consumed_at = UTC_TIMESTAMP()
	           WHERE tx_reference = ? AND parking_space_id = ? AND consumed_at IS NULL`
	_, err := r.db.ExecContext(ctx, q, txRef, spaceID)
	return err
}

// ListUnconsumedVerified returns verified payments that never backed a
// reservation, newest first.  The support dashboard reviews these for
// manual refunds; they are never silently discarded.
func (r *PaymentRepo) ListUnconsumedVerified(ctx context.Context) ([]model.Payment, error) {
	const q = `SELECT ` + paymentColumns + `
	           FROM payments
	           WHERE status = 'VERIFIED' AND consumed_at IS NULL
	           ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}
