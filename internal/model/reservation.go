package model

import "time"

// Reservation is the audit record written when a space is granted to a
// plate.  The live reservation state (status, window, occupant) is
// held on the parking_spaces row itself; this table is the history
// consumed by the dashboard and the /status command.
//
// Fields:
//  ID          – primary key identifier.
//  Reference   – public reservation code shown to the user.
//  SpaceID     – reserved space.
//  ZoneID      – zone the space belongs to.
//  ChatID      – Telegram user the reservation was issued to.
//  LicensePlate– plate on the reservation.
//  Rail        – payment rail used, empty for free zones.
//  Amount      – amount paid in the rail's minor unit, 0 for free zones.
//  PaymentRef  – ledger tx_reference backing the reservation (nullable).
//  StartsAt    – reservation window start.
//  EndsAt      – reservation window end.
//  CreatedAt   – creation timestamp.
type Reservation struct {
	ID           uint64    // reservations.id
	Reference    string    // reservations.reference
	SpaceID      uint64    // reservations.parking_space_id
	ZoneID       uint64    // reservations.zone_id
	ChatID       int64     // reservations.chat_id
	LicensePlate string    // reservations.license_plate
	Rail         string    // reservations.rail
	Amount       uint64    // reservations.amount
	PaymentRef   *string   // reservations.payment_ref (nullable)
	StartsAt     time.Time // reservations.starts_at
	EndsAt       time.Time // reservations.ends_at
	CreatedAt    time.Time // reservations.created_at
}
