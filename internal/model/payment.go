package model

import "time"

// Payment statuses as stored in payments.status.
const (
	PaymentPending  = "PENDING"
	PaymentVerified = "VERIFIED"
	PaymentRejected = "REJECTED"
)

// Payment rails.  STARS is the in-chat invoice flow where Telegram
// itself asserts success; TON is the manual transfer flow where the
// user submits a transaction hash as evidence.
const (
	RailStars = "STARS"
	RailTon   = "TON"
)

// Payment is one row of the payment ledger.  The pair
// (TxReference, SpaceID) is unique in the database and acts as the
// idempotency key: redelivered payment events land on the existing
// row instead of creating a second one.  Rows are never deleted; a
// verified payment that lost a reservation race keeps ConsumedAt nil
// and is surfaced for manual review.
//
// Fields:
//  ID          – primary key identifier.
//  TxReference – Telegram charge id, TON transaction hash, or a
//                generated intent reference while a manual transfer
//                is still awaiting its hash.
//  SpaceID     – parking space the payment targets.
//  PayerChatID – Telegram chat id of the payer.
//  LicensePlate– plate the reservation will be issued to.
//  Rail        – STARS or TON.
//  Amount      – amount in the rail's minor unit.
//  Status      – PENDING, VERIFIED or REJECTED.
//  ConsumedAt  – when a reservation was granted against this payment (nullable).
//  CreatedAt   – creation timestamp.
type Payment struct {
	ID           uint64     // payments.id
	TxReference  string     // payments.tx_reference
	SpaceID      uint64     // payments.parking_space_id
	PayerChatID  int64      // payments.payer_chat_id
	LicensePlate string     // payments.license_plate
	Rail         string     // payments.rail
	Amount       uint64     // payments.amount
	Status       string     // payments.status
	ConsumedAt   *time.Time // payments.consumed_at (nullable)
	CreatedAt    time.Time  // payments.created_at
}
