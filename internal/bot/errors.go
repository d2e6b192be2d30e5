// Package bot contains the webhook dispatcher, the reservation engine
// and the account-linking resolver: the pieces that turn inbound
// Telegram updates into at-most-one reservation per verified payment.
package bot

import "errors"

// ErrNotLinked is returned when no license plate can be resolved for
// a chat user after the resolver's retry budget is exhausted.
var ErrNotLinked = errors.New("account not linked")

// ErrPaymentNotVerified is returned when presented payment evidence
// never reaches the verified state in the ledger.
var ErrPaymentNotVerified = errors.New("payment not verified")
