package bot

import (
	"context"
	"time"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
	"github.com/iliyamo/parking-reservation-bot/internal/queue"
	"github.com/iliyamo/parking-reservation-bot/internal/telegram"
)

// The engine and dispatcher consume narrow interfaces rather than the
// concrete repositories so tests can drive the state machine with
// in-memory fakes.  The repository and client types satisfy these
// without adapters.

// SpaceStore is the space/reservation store surface the engine needs.
// ReserveIfAvailable must be a single conditional write: of any number
// of concurrent calls for the same space, at most one returns true.
type SpaceStore interface {
	GetWithZone(ctx context.Context, spaceID uint64) (*model.ParkingSpace, *model.Zone, error)
	ListAvailableByZone(ctx context.Context, zoneID uint64, now time.Time) ([]model.ParkingSpace, error)
	ReserveIfAvailable(ctx context.Context, spaceID uint64, plate string, from, until time.Time) (bool, error)
}

// ZoneStore lists zones for the reservation keyboard.
type ZoneStore interface {
	List(ctx context.Context) ([]model.Zone, error)
}

// PaymentLedger is the idempotent payment record.  RecordOrGet and
// AttachReference must be backed by a store-enforced uniqueness
// constraint on (txRef, spaceID); duplicates return the existing row.
type PaymentLedger interface {
	RecordOrGet(ctx context.Context, txRef string, spaceID uint64, payerChatID int64, plate, rail string, amount uint64, verified bool) (*model.Payment, bool, error)
	MarkVerified(ctx context.Context, txRef string, spaceID uint64) error
	MarkRejected(ctx context.Context, txRef string, spaceID uint64) error
	IsVerified(ctx context.Context, txRef string, spaceID uint64) (bool, error)
	CreateIntent(ctx context.Context, intentRef string, spaceID uint64, payerChatID int64, plate string, amount uint64) (*model.Payment, error)
	FindPendingByPlate(ctx context.Context, plate string, since time.Time) (*model.Payment, error)
	GetByReference(ctx context.Context, txRef string) (*model.Payment, error)
	AttachReference(ctx context.Context, payment *model.Payment, txHash string) (*model.Payment, error)
	MarkConsumed(ctx context.Context, txRef string, spaceID uint64) error
}

// AccountStore reads and writes chat-to-plate links.
type AccountStore interface {
	GetByChatID(ctx context.Context, chatID int64) (*model.LinkedAccount, error)
	Upsert(ctx context.Context, a *model.LinkedAccount) error
	SetLanguage(ctx context.Context, chatID int64, lang string) error
	SetWallet(ctx context.Context, chatID int64, wallet string) error
}

// HistoryStore appends reservation audit rows.
type HistoryStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	ListByChatID(ctx context.Context, chatID int64, limit int) ([]model.Reservation, error)
}

// Messenger is the outbound messaging surface.  Failures are logged
// and never retried within the same handler invocation.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) error
	SendInvoice(ctx context.Context, chatID int64, inv telegram.Invoice) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error
}

// TransferVerifier checks manual-rail payment evidence against the
// chain.  It proves a transfer happened, not which reservation it was
// for; matching evidence to an intent is the ledger's heuristic.
type TransferVerifier interface {
	VerifyTransfer(ctx context.Context, txHash, destination string, minAmount uint64) (bool, error)
}

// EventPublisher emits reservation.confirmed events.  Publishing is
// best effort: a broker outage never rolls back a reservation.
type EventPublisher interface {
	PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
}
