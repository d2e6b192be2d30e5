package model

import "time"

// LinkedAccount maps a Telegram user to a license plate.  The link is
// created by an explicit /link command (or an implicit plate-shaped
// message from an unlinked user) and is read by the reservation flow
// with a short bounded retry, because a user may link and pay within
// the same logical turn.
//
// Fields:
//  ChatID        – Telegram chat/user id, primary key.
//  LicensePlate  – plate reservations are issued to.
//  Language      – preferred language code ("en", "ru").
//  WalletAddress – TON wallet address for the manual rail (nullable).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type LinkedAccount struct {
	ChatID        int64     // linked_accounts.chat_id
	LicensePlate  string    // linked_accounts.license_plate
	Language      string    // linked_accounts.language
	WalletAddress *string   // linked_accounts.wallet_address (nullable)
	CreatedAt     time.Time // linked_accounts.created_at
	UpdatedAt     time.Time // linked_accounts.updated_at
}
