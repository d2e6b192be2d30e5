package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
	"github.com/iliyamo/parking-reservation-bot/internal/telegram"
)

func starsPayment(spaceID uint64, chargeID string, amount int64) telegram.SuccessfulPayment {
	return telegram.SuccessfulPayment{
		Currency:                "XTR",
		TotalAmount:             amount,
		InvoicePayload:          telegram.EncodeInvoicePayload(spaceID),
		TelegramPaymentChargeID: chargeID,
	}
}

func TestStarsPaymentReservesSpace(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)
	f.link(100, "ABC-123")

	ev := PaymentSuccessEvent{ChatID: 100, Payment: starsPayment(1, "ch_1", 50)}
	if err := f.engine.HandlePaymentSuccess(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	space, _, _ := f.spaces.GetWithZone(context.Background(), 1)
	if space.Status != model.SpaceReserved || space.OccupantPlate == nil || *space.OccupantPlate != "ABC-123" {
		t.Fatalf("space not reserved for the payer: %+v", space)
	}
	if f.history.count() != 1 {
		t.Fatalf("expected 1 history row, got %d", f.history.count())
	}
	if f.publisher.count() != 1 {
		t.Fatalf("expected 1 published event, got %d", f.publisher.count())
	}
	p := f.ledger.get("ch_1", 1)
	if p == nil || p.Status != model.PaymentVerified || p.ConsumedAt == nil {
		t.Fatalf("ledger row not verified+consumed: %+v", p)
	}
	last := f.messenger.lastMessage()
	if last == nil || !strings.Contains(last.Text, "ABC-123") {
		t.Fatalf("expected confirmation naming the plate, got %+v", last)
	}
}

func TestContestedSpaceHasExactlyOneWinner(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)
	f.link(100, "AAA-111")
	f.link(200, "BBB-222")

	events := []PaymentSuccessEvent{
		{ChatID: 100, Payment: starsPayment(1, "ch_a", 50)},
		{ChatID: 200, Payment: starsPayment(1, "ch_b", 50)},
	}
	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev PaymentSuccessEvent) {
			defer wg.Done()
			_ = f.engine.HandlePaymentSuccess(context.Background(), ev)
		}(ev)
	}
	wg.Wait()

	if f.history.count() != 1 {
		t.Fatalf("expected exactly one reservation, got %d", f.history.count())
	}
	space, _, _ := f.spaces.GetWithZone(context.Background(), 1)
	winner := *space.OccupantPlate

	var loserRef string
	if winner == "AAA-111" {
		loserRef = "ch_b"
	} else {
		loserRef = "ch_a"
	}
	lost := f.ledger.get(loserRef, 1)
	if lost == nil || lost.Status != model.PaymentVerified || lost.ConsumedAt != nil {
		t.Fatalf("loser's payment must stay verified and unconsumed for review: %+v", lost)
	}
}

func TestRedeliveredPaymentEventIsIdempotent(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)
	f.link(100, "ABC-123")

	ev := PaymentSuccessEvent{ChatID: 100, Payment: starsPayment(1, "ch_1", 50)}
	if err := f.engine.HandlePaymentSuccess(context.Background(), ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.engine.HandlePaymentSuccess(context.Background(), ev); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if f.history.count() != 1 {
		t.Fatalf("redelivery must not create a second reservation, got %d", f.history.count())
	}
	if f.publisher.count() != 1 {
		t.Fatalf("redelivery must not publish a second event, got %d", f.publisher.count())
	}
	msgs := f.messenger.messagesFor(100)
	if len(msgs) != 2 {
		t.Fatalf("expected a confirmation per delivery, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[1].Text, "ABC-123") {
		t.Fatalf("redelivery must re-send the confirmation, got %q", msgs[1].Text)
	}
}

func TestNonPremiumReservesWithoutPayment(t *testing.T) {
	f := newEngineFixture()
	f.addFreeSpace(5)
	f.link(100, "ABC-123")

	if err := f.engine.SelectSpace(context.Background(), 100, nil, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	space, _, _ := f.spaces.GetWithZone(context.Background(), 5)
	if space.Status != model.SpaceReserved {
		t.Fatalf("free zone must reserve immediately, got %s", space.Status)
	}
	if len(f.ledger.rows) != 0 {
		t.Fatal("free reservation must not touch the ledger")
	}
	if f.history.count() != 1 {
		t.Fatalf("expected 1 history row, got %d", f.history.count())
	}
}

func TestPremiumSelectOffersRails(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)
	f.link(100, "ABC-123")

	if err := f.engine.SelectSpace(context.Background(), 100, nil, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	space, _, _ := f.spaces.GetWithZone(context.Background(), 1)
	if space.Status != model.SpaceVacant {
		t.Fatal("premium selection must not reserve before payment")
	}
	last := f.messenger.lastMessage()
	if last == nil || last.KB == nil || len(last.KB.InlineKeyboard) != 2 {
		t.Fatalf("expected a two-rail keyboard, got %+v", last)
	}
}

func TestPaymentWithoutLinkKeepsEvidenceForRetry(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)

	ev := PaymentSuccessEvent{ChatID: 100, Payment: starsPayment(1, "ch_1", 50)}
	if err := f.engine.HandlePaymentSuccess(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := f.ledger.get("ch_1", 1)
	if p == nil || p.Status != model.PaymentVerified || p.ConsumedAt != nil {
		t.Fatalf("evidence must be recorded before the link check: %+v", p)
	}
	space, _, _ := f.spaces.GetWithZone(context.Background(), 1)
	if space.Status != model.SpaceVacant {
		t.Fatal("no reservation may be granted without a plate")
	}
	last := f.messenger.lastMessage()
	if last == nil || last.Text != T("en", "not_linked") {
		t.Fatalf("expected not_linked message, got %+v", last)
	}

	// After linking, redelivering the same event reuses the recorded
	// payment and completes the reservation.
	f.link(100, "ABC-123")
	if err := f.engine.HandlePaymentSuccess(context.Background(), ev); err != nil {
		t.Fatalf("retry after linking: %v", err)
	}
	space, _, _ = f.spaces.GetWithZone(context.Background(), 1)
	if space.Status != model.SpaceReserved {
		t.Fatal("retry after linking must reserve the space")
	}
	if f.history.count() != 1 {
		t.Fatalf("expected 1 reservation, got %d", f.history.count())
	}
}

func TestTonFlowEndToEnd(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)
	f.link(100, "ABC-123")

	if err := f.engine.ChooseTon(context.Background(), 100, nil, 1); err != nil {
		t.Fatalf("choose ton: %v", err)
	}
	last := f.messenger.lastMessage()
	if last == nil || !strings.Contains(last.Text, testWallet) {
		t.Fatalf("instructions must include the deposit wallet, got %+v", last)
	}
	pending, err := f.ledger.FindPendingByPlate(context.Background(), "ABC-123", time.Time{})
	if err != nil {
		t.Fatalf("intent must be recorded before the hash arrives: %v", err)
	}
	if pending.Rail != model.RailTon || pending.Status != model.PaymentPending {
		t.Fatalf("unexpected intent row: %+v", pending)
	}

	hash := strings.Repeat("ab", 32)
	if err := f.engine.HandleTxHash(context.Background(), 100, nil, hash); err != nil {
		t.Fatalf("handle tx hash: %v", err)
	}
	if f.verifier.calls != 1 {
		t.Fatalf("expected one on-chain verification, got %d", f.verifier.calls)
	}
	space, _, _ := f.spaces.GetWithZone(context.Background(), 1)
	if space.Status != model.SpaceReserved {
		t.Fatal("verified manual payment must reserve the space")
	}
	p := f.ledger.get(hash, 1)
	if p == nil || p.Status != model.PaymentVerified || p.ConsumedAt == nil {
		t.Fatalf("ledger row must be re-keyed to the hash and consumed: %+v", p)
	}
}

func TestTonRejectedEvidence(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)
	f.link(100, "ABC-123")
	f.verifier.result = false

	if err := f.engine.ChooseTon(context.Background(), 100, nil, 1); err != nil {
		t.Fatalf("choose ton: %v", err)
	}
	hash := strings.Repeat("cd", 32)
	if err := f.engine.HandleTxHash(context.Background(), 100, nil, hash); err != nil {
		t.Fatalf("handle tx hash: %v", err)
	}

	space, _, _ := f.spaces.GetWithZone(context.Background(), 1)
	if space.Status != model.SpaceVacant {
		t.Fatal("rejected evidence must not reserve")
	}
	p := f.ledger.get(hash, 1)
	if p == nil || p.Status != model.PaymentRejected {
		t.Fatalf("expected rejected ledger row, got %+v", p)
	}
	last := f.messenger.lastMessage()
	if last == nil || last.Text != T("en", "payment_unverified") {
		t.Fatalf("expected payment_unverified message, got %+v", last)
	}
}

func TestTxHashWithoutPendingIntent(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)
	f.link(100, "ABC-123")

	hash := strings.Repeat("ef", 32)
	if err := f.engine.HandleTxHash(context.Background(), 100, nil, hash); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := f.messenger.lastMessage()
	if last == nil || last.Text != T("en", "no_pending") {
		t.Fatalf("expected no_pending message, got %+v", last)
	}
}

func TestTxHashLedgerFailurePropagates(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)
	f.link(100, "ABC-123")
	boom := errors.New("connection reset")
	f.ledger.findErr = boom

	err := f.engine.HandleTxHash(context.Background(), 100, nil, strings.Repeat("ab", 32))
	if !errors.Is(err, boom) {
		t.Fatalf("a ledger failure must propagate, got %v", err)
	}
	for _, m := range f.messenger.messagesFor(100) {
		if m.Text == T("en", "no_pending") {
			t.Fatal("a ledger failure must not read as a missing payment")
		}
	}
}

func TestPreCheckoutAnswers(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)

	query := telegram.PreCheckoutQuery{ID: "q1", InvoicePayload: telegram.EncodeInvoicePayload(1)}
	if err := f.engine.HandlePreCheckout(context.Background(), PreCheckoutEvent{Query: query}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.messenger.preCheckouts) != 1 || !f.messenger.preCheckouts[0].OK {
		t.Fatalf("available space must be approved: %+v", f.messenger.preCheckouts)
	}

	// Occupy the space; the same query must now be declined.
	f.spaces.mu.Lock()
	f.spaces.spaces[1].Status = model.SpaceOccupied
	f.spaces.mu.Unlock()

	query.ID = "q2"
	if err := f.engine.HandlePreCheckout(context.Background(), PreCheckoutEvent{Query: query}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	answer := f.messenger.preCheckouts[1]
	if answer.OK || answer.Reason == "" {
		t.Fatalf("occupied space must be declined with a reason: %+v", answer)
	}
}

func TestChooseStarsSendsInvoiceAtZoneRate(t *testing.T) {
	f := newEngineFixture()
	f.addPremiumSpace(1)

	if err := f.engine.ChooseStars(context.Background(), 100, nil, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.messenger.invoices) != 1 {
		t.Fatalf("expected one invoice, got %d", len(f.messenger.invoices))
	}
	inv := f.messenger.invoices[0]
	if inv.Currency != "XTR" {
		t.Fatalf("expected XTR currency, got %s", inv.Currency)
	}
	if len(inv.Prices) != 1 || inv.Prices[0].Amount != 50 {
		t.Fatalf("invoice must carry the zone rate, got %+v", inv.Prices)
	}
	payload, err := telegram.DecodeInvoicePayload(inv.Payload)
	if err != nil || payload.SpaceID != 1 {
		t.Fatalf("invoice payload must name the space: %v %+v", err, payload)
	}
}
