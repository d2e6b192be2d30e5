package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
)

// AccountRepo provides data access to the linked_accounts table, which
// maps Telegram users to license plates.  The chat id is the primary
// key, so linking is naturally an upsert.
type AccountRepo struct {
	db *sql.DB
}

// NewAccountRepo returns a new AccountRepo bound to the given database.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// GetByChatID returns the linked account for a chat id, or
// ErrAccountNotFound.  The linking resolver wraps this call with a
// bounded retry; the repository itself does not wait.
func (r *AccountRepo) GetByChatID(ctx context.Context, chatID int64) (*model.LinkedAccount, error) {
	const q = `SELECT chat_id, license_plate, language, wallet_address, created_at, updated_at
	           FROM linked_accounts WHERE chat_id = ?`
	var a model.LinkedAccount
	var wallet sql.NullString
	err := r.db.QueryRowContext(ctx, q, chatID).Scan(
		&a.ChatID, &a.LicensePlate, &a.Language, &wallet, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if wallet.Valid {
		w := wallet.String
		a.WalletAddress = &w
	}
	return &a, nil
}

// Upsert creates or updates the link for a chat id.  Re-linking
// overwrites the plate and language but keeps the wallet address
// unless a new one is provided.
func (r *AccountRepo) Upsert(ctx context.Context, a *model.LinkedAccount) error {
	const q = `INSERT INTO linked_accounts (chat_id, license_plate, language, wallet_address)
	           VALUES (?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             license_plate = VALUES(license_plate),
	             language = VALUES(language),
	             wallet_address = COALESCE(VALUES(wallet_address), wallet_address)`
	_, err := r.db.ExecContext(ctx, q, a.ChatID, a.LicensePlate, a.Language, a.WalletAddress)
	return err
}

// SetWallet stores the TON wallet address submitted by the user.  It
// fails with ErrAccountNotFound when no link exists yet, because a
// wallet without a plate cannot back a reservation.
func (r *AccountRepo) SetWallet(ctx context.Context, chatID int64, wallet string) error {
	const q = `UPDATE linked_accounts SET wallet_address = ? WHERE chat_id = ?`
	res, err := r.db.ExecContext(ctx, q, wallet, chatID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByChatID(ctx, chatID); err != nil {
			return err
		}
	}
	return nil
}

// SetLanguage updates the preferred language for an existing link.
func (r *AccountRepo) SetLanguage(ctx context.Context, chatID int64, lang string) error {
	const q = `UPDATE linked_accounts SET language = ? WHERE chat_id = ?`
	res, err := r.db.ExecContext(ctx, q, lang, chatID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}
