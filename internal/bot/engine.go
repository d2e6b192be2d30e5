package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
	"github.com/iliyamo/parking-reservation-bot/internal/queue"
	"github.com/iliyamo/parking-reservation-bot/internal/repository"
	"github.com/iliyamo/parking-reservation-bot/internal/telegram"
)

// reservationDuration is the window granted per paid hour.  Pricing
// and the window always cover exactly one hour; longer stays repeat
// the flow.
const reservationDuration = time.Hour

// tonEvidenceWindow bounds how far back a submitted transaction hash
// may match a pending manual-rail payment.
const tonEvidenceWindow = time.Hour

// Engine is the reservation state machine.  It walks a request from
// eligibility through payment verification to the conditional reserve
// write, and owns every user-visible outcome message on that path.
// All methods are safe to re-enter with the same inbound event:
// redelivered payment events land on the existing ledger row and an
// already-granted reservation is confirmed again instead of rejected.
type Engine struct {
	spaces    SpaceStore
	zones     ZoneStore
	ledger    PaymentLedger
	resolver  *LinkResolver
	history   HistoryStore
	messenger Messenger
	verifier  TransferVerifier
	publisher EventPublisher
	wallet    string
	logger    *slog.Logger
}

// NewEngine wires the reservation engine.  wallet is the TON deposit
// address shown for manual-rail payments.
func NewEngine(spaces SpaceStore, zones ZoneStore, ledger PaymentLedger, resolver *LinkResolver,
	history HistoryStore, messenger Messenger, verifier TransferVerifier, publisher EventPublisher,
	wallet string, logger *slog.Logger) *Engine {
	return &Engine{
		spaces:    spaces,
		zones:     zones,
		ledger:    ledger,
		resolver:  resolver,
		history:   history,
		messenger: messenger,
		verifier:  verifier,
		publisher: publisher,
		wallet:    wallet,
		logger:    logger,
	}
}

// userLang picks the message language: the linked account's preference
// wins, then the Telegram client language, then English.
func userLang(acc *model.LinkedAccount, from *telegram.User) string {
	if acc != nil && acc.Language != "" {
		return acc.Language
	}
	if from != nil && strings.HasPrefix(from.LanguageCode, "ru") {
		return "ru"
	}
	return "en"
}

// langFor resolves the sender's language without failing the flow: a
// missing link just falls back to the client language.
func (e *Engine) langFor(ctx context.Context, chatID int64, from *telegram.User) string {
	acc, err := e.resolver.accounts.GetByChatID(ctx, chatID)
	if err != nil {
		return userLang(nil, from)
	}
	return userLang(acc, from)
}

// send delivers a message and logs transport failures instead of
// propagating them; a broken send must not fail the business step.
func (e *Engine) send(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	if err := e.messenger.SendMessage(ctx, chatID, text, kb); err != nil {
		e.logger.Error("send message failed", "chat_id", chatID, "err", err)
	}
}

// ShowZones sends the zone-selection keyboard for /reserve.
func (e *Engine) ShowZones(ctx context.Context, chatID int64, from *telegram.User) error {
	lang := e.langFor(ctx, chatID, from)
	zones, err := e.zones.List(ctx)
	if err != nil {
		return fmt.Errorf("list zones: %w", err)
	}
	rows := make([][]telegram.InlineKeyboardButton, 0, len(zones))
	for _, z := range zones {
		label := z.Name
		if z.IsPremium {
			label += " ⭐"
		}
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         label,
			CallbackData: fmt.Sprintf("zone:%d", z.ID),
		}})
	}
	e.send(ctx, chatID, T(lang, "choose_zone"), &telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
	return nil
}

// ShowSpaces sends the available spaces of a zone as reserve buttons.
func (e *Engine) ShowSpaces(ctx context.Context, chatID int64, from *telegram.User, zoneID uint64) error {
	lang := e.langFor(ctx, chatID, from)
	spaces, err := e.spaces.ListAvailableByZone(ctx, zoneID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("list available spaces: %w", err)
	}
	if len(spaces) == 0 {
		e.send(ctx, chatID, T(lang, "no_spaces"), nil)
		return nil
	}
	zoneName := ""
	rows := make([][]telegram.InlineKeyboardButton, 0, len(spaces))
	for _, s := range spaces {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         s.Label,
			CallbackData: fmt.Sprintf("reserve_space:%d", s.ID),
		}})
	}
	if zones, err := e.zones.List(ctx); err == nil {
		for _, z := range zones {
			if z.ID == zoneID {
				zoneName = z.Name
			}
		}
	}
	e.send(ctx, chatID, T(lang, "choose_space", zoneName), &telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
	return nil
}

// SelectSpace enters the flow for one space.  Non-premium zones
// reserve immediately; premium zones answer with the rail keyboard.
func (e *Engine) SelectSpace(ctx context.Context, chatID int64, from *telegram.User, spaceID uint64) error {
	space, zone, err := e.spaces.GetWithZone(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("load space %d: %w", spaceID, err)
	}
	lang := e.langFor(ctx, chatID, from)
	if !space.AvailableAt(time.Now().UTC()) {
		e.send(ctx, chatID, T(lang, "space_unavailable"), nil)
		return nil
	}
	if !zone.IsPremium {
		acc, err := e.resolver.Resolve(ctx, chatID)
		if err == ErrNotLinked {
			e.send(ctx, chatID, T(lang, "not_linked"), nil)
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve link: %w", err)
		}
		return e.reserve(ctx, chatID, userLang(acc, from), space, zone, acc.LicensePlate, nil)
	}
	kb := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: T(lang, "rail_stars"), CallbackData: fmt.Sprintf("payment_stars:%d", spaceID)}},
		{{Text: T(lang, "rail_ton"), CallbackData: fmt.Sprintf("payment_ton:%d", spaceID)}},
	}}
	e.send(ctx, chatID, T(lang, "choose_rail", space.Label, zone.HourlyRateStars, zone.HourlyRateNano), kb)
	return nil
}

// ChooseStars sends the Stars invoice for a premium space.  The
// amount comes from the zone's rate, never from the client.
func (e *Engine) ChooseStars(ctx context.Context, chatID int64, from *telegram.User, spaceID uint64) error {
	space, zone, err := e.spaces.GetWithZone(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("load space %d: %w", spaceID, err)
	}
	lang := e.langFor(ctx, chatID, from)
	if !space.AvailableAt(time.Now().UTC()) {
		e.send(ctx, chatID, T(lang, "space_unavailable"), nil)
		return nil
	}
	inv := telegram.Invoice{
		Title:       T(lang, "invoice_title", space.Label),
		Description: T(lang, "invoice_desc", zone.Name),
		Payload:     telegram.EncodeInvoicePayload(spaceID),
		Currency:    "XTR",
		Prices:      []telegram.LabeledPrice{{Label: space.Label, Amount: int64(zone.HourlyRateStars)}},
	}
	if err := e.messenger.SendInvoice(ctx, chatID, inv); err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	return nil
}

// ChooseTon starts the manual rail: a pending ledger intent is
// recorded for the sender's plate and the deposit instructions are
// sent.  Submitting the transaction hash later matches this intent.
func (e *Engine) ChooseTon(ctx context.Context, chatID int64, from *telegram.User, spaceID uint64) error {
	space, zone, err := e.spaces.GetWithZone(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("load space %d: %w", spaceID, err)
	}
	lang := e.langFor(ctx, chatID, from)
	if !space.AvailableAt(time.Now().UTC()) {
		e.send(ctx, chatID, T(lang, "space_unavailable"), nil)
		return nil
	}
	acc, err := e.resolver.Resolve(ctx, chatID)
	if err == ErrNotLinked {
		e.send(ctx, chatID, T(lang, "not_linked"), nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve link: %w", err)
	}
	intentRef := "ton-" + uuid.NewString()
	if _, err := e.ledger.CreateIntent(ctx, intentRef, spaceID, chatID, acc.LicensePlate, zone.HourlyRateNano); err != nil {
		return fmt.Errorf("create payment intent: %w", err)
	}
	kb := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: T(lang, "payment_sent"), CallbackData: fmt.Sprintf("payment_sent:%d", spaceID)}},
	}}
	e.send(ctx, chatID, T(lang, "ton_instructions", zone.HourlyRateNano, e.wallet), kb)
	return nil
}

// PaymentSent acknowledges the "I've sent it" button and asks for the
// transaction hash.
func (e *Engine) PaymentSent(ctx context.Context, chatID int64, from *telegram.User, spaceID uint64) error {
	lang := e.langFor(ctx, chatID, from)
	e.send(ctx, chatID, T(lang, "send_hash_prompt"), nil)
	return nil
}

// HandlePreCheckout answers the platform's pre-checkout query.  It
// approves only while the space is still available; this is a
// best-effort early check, the authoritative one is the conditional
// write at reserve time.
func (e *Engine) HandlePreCheckout(ctx context.Context, ev PreCheckoutEvent) error {
	lang := userLang(nil, &ev.Query.From)
	payload, err := telegram.DecodeInvoicePayload(ev.Query.InvoicePayload)
	if err != nil {
		if aerr := e.messenger.AnswerPreCheckoutQuery(ctx, ev.Query.ID, false, T(lang, "precheckout_gone")); aerr != nil {
			e.logger.Error("answer pre-checkout failed", "query_id", ev.Query.ID, "err", aerr)
		}
		return fmt.Errorf("decode invoice payload: %w", err)
	}
	space, _, err := e.spaces.GetWithZone(ctx, payload.SpaceID)
	approve := err == nil && space.AvailableAt(time.Now().UTC())
	reason := ""
	if !approve {
		reason = T(lang, "precheckout_gone")
	}
	if aerr := e.messenger.AnswerPreCheckoutQuery(ctx, ev.Query.ID, approve, reason); aerr != nil {
		e.logger.Error("answer pre-checkout failed", "query_id", ev.Query.ID, "err", aerr)
	}
	if err != nil {
		return fmt.Errorf("load space %d: %w", payload.SpaceID, err)
	}
	return nil
}

// HandlePaymentSuccess processes a native-rail payment confirmation.
// The charge is recorded (idempotently) as verified evidence first, so
// a not-yet-linked payer keeps the payment on retry; then the plate is
// resolved and the reservation committed.
func (e *Engine) HandlePaymentSuccess(ctx context.Context, ev PaymentSuccessEvent) error {
	payload, err := telegram.DecodeInvoicePayload(ev.Payment.InvoicePayload)
	if err != nil {
		return fmt.Errorf("decode invoice payload: %w", err)
	}
	space, zone, err := e.spaces.GetWithZone(ctx, payload.SpaceID)
	if err != nil {
		return fmt.Errorf("load space %d: %w", payload.SpaceID, err)
	}

	chargeRef := ev.Payment.TelegramPaymentChargeID
	acc, rerr := e.resolver.Resolve(ctx, ev.ChatID)
	plate := ""
	if acc != nil {
		plate = acc.LicensePlate
	}
	// Record evidence before anything can fail: the platform already
	// charged the user.  The unique key makes redelivery land here.
	payment, _, err := e.ledger.RecordOrGet(ctx, chargeRef, payload.SpaceID, ev.ChatID, plate,
		model.RailStars, uint64(ev.Payment.TotalAmount), true)
	if err != nil {
		return fmt.Errorf("record native payment: %w", err)
	}

	lang := userLang(acc, ev.From)
	if rerr == ErrNotLinked {
		e.send(ctx, ev.ChatID, T(lang, "not_linked"), nil)
		return nil
	}
	if rerr != nil {
		return fmt.Errorf("resolve link: %w", rerr)
	}
	if payment.LicensePlate == "" {
		// The row was created before the link completed; adopt the
		// now-resolved plate by recording consumption under it later.
		payment.LicensePlate = plate
	}
	return e.reserve(ctx, ev.ChatID, lang, space, zone, plate, payment)
}

// HandleTxHash processes manual-rail evidence: a transaction hash
// pasted by the user.  The hash is matched against the sender's most
// recent pending intent within the evidence window (the hash itself
// does not name a space), then verified on-chain.
func (e *Engine) HandleTxHash(ctx context.Context, chatID int64, from *telegram.User, txHash string) error {
	acc, err := e.resolver.Resolve(ctx, chatID)
	lang := userLang(acc, from)
	if err == ErrNotLinked {
		// Evidence is not consumed here: after linking, the user can
		// resubmit the same hash and succeed.
		e.send(ctx, chatID, T(lang, "not_linked"), nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve link: %w", err)
	}

	pending, err := e.ledger.FindPendingByPlate(ctx, acc.LicensePlate, time.Now().UTC().Add(-tonEvidenceWindow))
	if errors.Is(err, repository.ErrPaymentNotFound) {
		// Resubmission of an already-verified hash has no pending row;
		// fall back to the ledger row keyed by the hash itself.
		return e.retryVerified(ctx, chatID, lang, acc.LicensePlate, txHash)
	}
	if err != nil {
		return fmt.Errorf("find pending payment: %w", err)
	}

	payment, err := e.ledger.AttachReference(ctx, pending, txHash)
	if err != nil {
		return fmt.Errorf("attach evidence: %w", err)
	}
	if payment.Status != model.PaymentVerified {
		ok, err := e.verifier.VerifyTransfer(ctx, txHash, e.wallet, payment.Amount)
		if err != nil {
			return fmt.Errorf("verify transfer: %w", err)
		}
		if !ok {
			if err := e.ledger.MarkRejected(ctx, txHash, payment.SpaceID); err != nil {
				e.logger.Error("mark payment rejected failed", "tx", txHash, "err", err)
			}
			e.send(ctx, chatID, T(lang, "payment_unverified"), nil)
			return nil
		}
		if err := e.ledger.MarkVerified(ctx, txHash, payment.SpaceID); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		payment.Status = model.PaymentVerified
		payment.TxReference = txHash
	}

	space, zone, err := e.spaces.GetWithZone(ctx, payment.SpaceID)
	if err != nil {
		return fmt.Errorf("load space %d: %w", payment.SpaceID, err)
	}
	return e.reserve(ctx, chatID, lang, space, zone, acc.LicensePlate, payment)
}

// retryVerified handles a resubmitted hash with no pending intent
// left: if a verified unconsumed ledger row exists for this hash and
// plate, the reservation is retried against it without re-charging.
func (e *Engine) retryVerified(ctx context.Context, chatID int64, lang, plate, txHash string) error {
	payment, err := e.ledger.GetByReference(ctx, txHash)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		e.send(ctx, chatID, T(lang, "no_pending"), nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load payment by reference: %w", err)
	}
	if payment.LicensePlate != plate {
		e.send(ctx, chatID, T(lang, "no_pending"), nil)
		return nil
	}
	if payment.Status != model.PaymentVerified {
		e.send(ctx, chatID, T(lang, "payment_unverified"), nil)
		return nil
	}
	space, zone, err := e.spaces.GetWithZone(ctx, payment.SpaceID)
	if err != nil {
		return fmt.Errorf("load space %d: %w", payment.SpaceID, err)
	}
	return e.reserve(ctx, chatID, lang, space, zone, plate, payment)
}

// reserve is the single commit step: gate on the ledger for paid
// flows, then attempt the conditional write.  Exactly one concurrent
// caller can win; the loser is told the space is gone and a paid
// loser's ledger row stays verified and unconsumed for review.  A
// redelivery that finds the space already reserved for the same plate
// is confirmed again without a second reservation.
func (e *Engine) reserve(ctx context.Context, chatID int64, lang string, space *model.ParkingSpace,
	zone *model.Zone, plate string, payment *model.Payment) error {
	if zone.IsPremium {
		if payment == nil {
			return ErrPaymentNotVerified
		}
		verified, err := e.ledger.IsVerified(ctx, payment.TxReference, space.ID)
		if err != nil {
			return fmt.Errorf("check verification: %w", err)
		}
		if !verified {
			e.send(ctx, chatID, T(lang, "payment_unverified"), nil)
			return nil
		}
	}

	now := time.Now().UTC()
	until := now.Add(reservationDuration)
	won, err := e.spaces.ReserveIfAvailable(ctx, space.ID, plate, now, until)
	if err != nil {
		return fmt.Errorf("reserve space %d: %w", space.ID, err)
	}
	if !won {
		current, _, gerr := e.spaces.GetWithZone(ctx, space.ID)
		if gerr == nil && current.Status == model.SpaceReserved &&
			current.OccupantPlate != nil && *current.OccupantPlate == plate {
			// Redelivered event for a reservation this plate already
			// holds: repeat the confirmation, change nothing.
			endsAt := until
			if current.ReservedUntil != nil {
				endsAt = *current.ReservedUntil
			}
			e.send(ctx, chatID, T(lang, "already_reserved", space.Label, plate, endsAt.Format("15:04 MST")), nil)
			return nil
		}
		if payment != nil {
			e.logger.Warn("verified payment lost reservation race, kept for review",
				"tx_reference", payment.TxReference, "space_id", space.ID, "plate", plate)
			e.send(ctx, chatID, T(lang, "reserved_taken"), nil)
		} else {
			e.send(ctx, chatID, T(lang, "space_unavailable"), nil)
		}
		return nil
	}

	reference := strings.ToUpper(uuid.NewString()[:8])
	rail, amount := "", uint64(0)
	var payRef *string
	if payment != nil {
		rail, amount = payment.Rail, payment.Amount
		ref := payment.TxReference
		payRef = &ref
		if err := e.ledger.MarkConsumed(ctx, payment.TxReference, space.ID); err != nil {
			e.logger.Error("mark payment consumed failed", "tx_reference", payment.TxReference, "err", err)
		}
	}
	rec := &model.Reservation{
		Reference:    reference,
		SpaceID:      space.ID,
		ZoneID:       zone.ID,
		ChatID:       chatID,
		LicensePlate: plate,
		Rail:         rail,
		Amount:       amount,
		PaymentRef:   payRef,
		StartsAt:     now,
		EndsAt:       until,
	}
	if err := e.history.Create(ctx, rec); err != nil {
		e.logger.Error("write reservation history failed", "reference", reference, "err", err)
	}

	ev := queue.ReservationConfirmedEvent{
		Reference:    reference,
		SpaceID:      space.ID,
		SpaceLabel:   space.Label,
		ZoneID:       zone.ID,
		ZoneName:     zone.Name,
		ChatID:       chatID,
		LicensePlate: plate,
		Rail:         rail,
		Amount:       amount,
		StartsAt:     now.Format(time.RFC3339),
		EndsAt:       until.Format(time.RFC3339),
		ConfirmedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if payRef != nil {
		ev.PaymentRef = *payRef
	}
	if err := e.publisher.PublishReservationConfirmed(ctx, ev); err != nil {
		e.logger.Error("publish reservation.confirmed failed", "reference", reference, "err", err)
	}

	e.send(ctx, chatID, T(lang, "reserved_ok", space.Label, plate, until.Format("15:04 MST"), reference), nil)
	return nil
}
