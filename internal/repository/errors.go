// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// bot engine and HTTP handlers to distinguish between different failure
// scenarios without inspecting driver-specific errors. For example,
// ErrPaymentNotFound stands in for the driver's "no rows" result so the
// engine can branch on a ledger miss without importing database/sql.
package repository

import "errors"

// ErrSpaceNotFound is returned when a parking space id does not exist.
var ErrSpaceNotFound = errors.New("parking space not found")

// ErrZoneNotFound is returned when a zone id does not exist.
var ErrZoneNotFound = errors.New("zone not found")

// ErrAccountNotFound is returned when no linked account exists for a
// chat id. Callers decide whether to retry (the linking resolver) or
// to prompt the user to link.
var ErrAccountNotFound = errors.New("linked account not found")

// ErrPaymentNotFound is returned when no ledger row matches the given
// (tx_reference, space_id) key.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrInvalidPaymentState is returned when a status transition is not
// allowed, such as verifying a rejected payment. Verified rows never
// transition anywhere else.
var ErrInvalidPaymentState = errors.New("invalid payment state transition")

// ErrReservationNotFound is returned when no reservation matches the
// given public code.
var ErrReservationNotFound = errors.New("reservation not found")
