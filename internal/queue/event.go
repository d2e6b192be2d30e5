// Package queue defines the message payloads exchanged over the broker
// and the background consumer that turns confirmed reservations into
// audit log lines.
package queue

// ReservationConfirmedEvent is published when a space is successfully
// reserved.  It contains enough information for downstream consumers
// to log, notify, or trigger analytics without querying the primary
// database.
type ReservationConfirmedEvent struct {
	Reference    string `json:"reference"`
	SpaceID      uint64 `json:"space_id"`
	SpaceLabel   string `json:"space_label"`
	ZoneID       uint64 `json:"zone_id"`
	ZoneName     string `json:"zone_name"`
	ChatID       int64  `json:"chat_id"`
	LicensePlate string `json:"license_plate"`
	Rail         string `json:"rail,omitempty"`
	Amount       uint64 `json:"amount"`
	PaymentRef   string `json:"payment_ref,omitempty"`
	StartsAt     string `json:"starts_at"`
	EndsAt       string `json:"ends_at"`
	ConfirmedAt  string `json:"confirmed_at"`
}
