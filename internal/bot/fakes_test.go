package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
	"github.com/iliyamo/parking-reservation-bot/internal/queue"
	"github.com/iliyamo/parking-reservation-bot/internal/repository"
	"github.com/iliyamo/parking-reservation-bot/internal/telegram"
)

// In-memory fakes mirroring the repository semantics, including the
// conditional reservation write and the unique-key behavior of the
// payment ledger.  All fakes are safe for concurrent use so the
// contention tests can race real goroutines against them.

type fakeSpaces struct {
	mu     sync.Mutex
	spaces map[uint64]*model.ParkingSpace
	zones  map[uint64]*model.Zone
}

func newFakeSpaces() *fakeSpaces {
	return &fakeSpaces{spaces: map[uint64]*model.ParkingSpace{}, zones: map[uint64]*model.Zone{}}
}

func (f *fakeSpaces) add(space *model.ParkingSpace, zone *model.Zone) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spaces[space.ID] = space
	f.zones[zone.ID] = zone
}

func (f *fakeSpaces) GetWithZone(_ context.Context, spaceID uint64) (*model.ParkingSpace, *model.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.spaces[spaceID]
	if !ok {
		return nil, nil, repository.ErrSpaceNotFound
	}
	sc := *s
	zc := *f.zones[s.ZoneID]
	return &sc, &zc, nil
}

func (f *fakeSpaces) ListAvailableByZone(_ context.Context, zoneID uint64, now time.Time) ([]model.ParkingSpace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ParkingSpace{}
	for _, s := range f.spaces {
		if s.ZoneID == zoneID && s.AvailableAt(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSpaces) ReserveIfAvailable(_ context.Context, spaceID uint64, plate string, from, until time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.spaces[spaceID]
	if !ok || !s.AvailableAt(from) {
		return false, nil
	}
	s.Status = model.SpaceReserved
	p := plate
	s.OccupantPlate = &p
	fc, uc := from, until
	s.ReservedFrom = &fc
	s.ReservedUntil = &uc
	return true, nil
}

type fakeZones struct {
	zones []model.Zone
}

func (f *fakeZones) List(context.Context) ([]model.Zone, error) { return f.zones, nil }

type fakeLedger struct {
	mu      sync.Mutex
	nextID  uint64
	rows    map[string]*model.Payment
	findErr error
}

func newFakeLedger() *fakeLedger { return &fakeLedger{rows: map[string]*model.Payment{}} }

func ledgerKey(txRef string, spaceID uint64) string { return fmt.Sprintf("%s|%d", txRef, spaceID) }

func (f *fakeLedger) RecordOrGet(_ context.Context, txRef string, spaceID uint64, payerChatID int64, plate, rail string, amount uint64, verified bool) (*model.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[ledgerKey(txRef, spaceID)]; ok {
		pc := *p
		return &pc, false, nil
	}
	f.nextID++
	status := model.PaymentPending
	if verified {
		status = model.PaymentVerified
	}
	p := &model.Payment{
		ID:           f.nextID,
		TxReference:  txRef,
		SpaceID:      spaceID,
		PayerChatID:  payerChatID,
		LicensePlate: plate,
		Rail:         rail,
		Amount:       amount,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
	f.rows[ledgerKey(txRef, spaceID)] = p
	pc := *p
	return &pc, true, nil
}

func (f *fakeLedger) transition(txRef string, spaceID uint64, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[ledgerKey(txRef, spaceID)]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	if p.Status == to {
		return nil
	}
	if p.Status != model.PaymentPending {
		return repository.ErrInvalidPaymentState
	}
	p.Status = to
	return nil
}

func (f *fakeLedger) MarkVerified(_ context.Context, txRef string, spaceID uint64) error {
	return f.transition(txRef, spaceID, model.PaymentVerified)
}

func (f *fakeLedger) MarkRejected(_ context.Context, txRef string, spaceID uint64) error {
	return f.transition(txRef, spaceID, model.PaymentRejected)
}

func (f *fakeLedger) IsVerified(_ context.Context, txRef string, spaceID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[ledgerKey(txRef, spaceID)]
	if !ok {
		return false, nil
	}
	return p.Status == model.PaymentVerified, nil
}

func (f *fakeLedger) CreateIntent(ctx context.Context, intentRef string, spaceID uint64, payerChatID int64, plate string, amount uint64) (*model.Payment, error) {
	p, _, err := f.RecordOrGet(ctx, intentRef, spaceID, payerChatID, plate, model.RailTon, amount, false)
	return p, err
}

func (f *fakeLedger) FindPendingByPlate(_ context.Context, plate string, since time.Time) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var newest *model.Payment
	for _, p := range f.rows {
		if p.LicensePlate != plate || p.Rail != model.RailTon || p.Status != model.PaymentPending {
			continue
		}
		if p.CreatedAt.Before(since) {
			continue
		}
		if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
			newest = p
		}
	}
	if newest == nil {
		return nil, repository.ErrPaymentNotFound
	}
	pc := *newest
	return &pc, nil
}

func (f *fakeLedger) GetByReference(_ context.Context, txRef string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *model.Payment
	for _, p := range f.rows {
		if p.TxReference != txRef {
			continue
		}
		if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
			newest = p
		}
	}
	if newest == nil {
		return nil, repository.ErrPaymentNotFound
	}
	pc := *newest
	return &pc, nil
}

func (f *fakeLedger) AttachReference(_ context.Context, payment *model.Payment, txHash string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.rows[ledgerKey(txHash, payment.SpaceID)]; ok {
		pc := *existing
		return &pc, nil
	}
	p, ok := f.rows[ledgerKey(payment.TxReference, payment.SpaceID)]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	delete(f.rows, ledgerKey(payment.TxReference, payment.SpaceID))
	p.TxReference = txHash
	f.rows[ledgerKey(txHash, payment.SpaceID)] = p
	pc := *p
	return &pc, nil
}

func (f *fakeLedger) MarkConsumed(_ context.Context, txRef string, spaceID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[ledgerKey(txRef, spaceID)]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	if p.ConsumedAt == nil {
		now := time.Now().UTC()
		p.ConsumedAt = &now
	}
	return nil
}

// get is a test helper reading a row without copying semantics.
func (f *fakeLedger) get(txRef string, spaceID uint64) *model.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[ledgerKey(txRef, spaceID)]
	if !ok {
		return nil
	}
	pc := *p
	return &pc
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[int64]*model.LinkedAccount
	getErr   error
	calls    int
}

func newFakeAccounts() *fakeAccounts { return &fakeAccounts{accounts: map[int64]*model.LinkedAccount{}} }

func (f *fakeAccounts) GetByChatID(_ context.Context, chatID int64) (*model.LinkedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.accounts[chatID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	ac := *a
	return &ac, nil
}

func (f *fakeAccounts) Upsert(_ context.Context, a *model.LinkedAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ac := *a
	f.accounts[a.ChatID] = &ac
	return nil
}

func (f *fakeAccounts) SetLanguage(_ context.Context, chatID int64, lang string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[chatID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.Language = lang
	return nil
}

func (f *fakeAccounts) SetWallet(_ context.Context, chatID int64, wallet string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[chatID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	w := wallet
	a.WalletAddress = &w
	return nil
}

type fakeHistory struct {
	mu   sync.Mutex
	rows []model.Reservation
}

func (f *fakeHistory) Create(_ context.Context, res *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res.ID = uint64(len(f.rows) + 1)
	f.rows = append(f.rows, *res)
	return nil
}

func (f *fakeHistory) ListByChatID(_ context.Context, chatID int64, limit int) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Reservation{}
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if f.rows[i].ChatID == chatID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeHistory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type sentMessage struct {
	ChatID int64
	Text   string
	KB     *telegram.InlineKeyboardMarkup
}

type preCheckoutAnswer struct {
	QueryID string
	OK      bool
	Reason  string
}

type fakeMessenger struct {
	mu           sync.Mutex
	messages     []sentMessage
	invoices     []telegram.Invoice
	acks         []string
	preCheckouts []preCheckoutAnswer
	panicOnSend  bool
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) error {
	if f.panicOnSend {
		panic("messenger exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{ChatID: chatID, Text: text, KB: kb})
	return nil
}

func (f *fakeMessenger) SendInvoice(_ context.Context, _ int64, inv telegram.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, inv)
	return nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, callbackID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, callbackID)
	return nil
}

func (f *fakeMessenger) AnswerPreCheckoutQuery(_ context.Context, queryID string, ok bool, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preCheckouts = append(f.preCheckouts, preCheckoutAnswer{QueryID: queryID, OK: ok, Reason: reason})
	return nil
}

func (f *fakeMessenger) lastMessage() *sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	m := f.messages[len(f.messages)-1]
	return &m
}

func (f *fakeMessenger) messagesFor(chatID int64) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []sentMessage{}
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type fakeVerifier struct {
	mu     sync.Mutex
	result bool
	err    error
	calls  int
}

func (f *fakeVerifier) VerifyTransfer(context.Context, string, string, uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.ReservationConfirmedEvent
}

func (f *fakePublisher) PublishReservationConfirmed(_ context.Context, ev queue.ReservationConfirmedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// testWallet is the deposit address handed to the engine under test.
const testWallet = "EQtestDepositWallet"

type engineFixture struct {
	spaces    *fakeSpaces
	zones     *fakeZones
	ledger    *fakeLedger
	accounts  *fakeAccounts
	history   *fakeHistory
	messenger *fakeMessenger
	verifier  *fakeVerifier
	publisher *fakePublisher
	engine    *Engine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		spaces:    newFakeSpaces(),
		zones:     &fakeZones{},
		ledger:    newFakeLedger(),
		accounts:  newFakeAccounts(),
		history:   &fakeHistory{},
		messenger: &fakeMessenger{},
		verifier:  &fakeVerifier{result: true},
		publisher: &fakePublisher{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := NewLinkResolverWithBudget(f.accounts, 2, time.Millisecond)
	f.engine = NewEngine(f.spaces, f.zones, f.ledger, resolver, f.history, f.messenger, f.verifier, f.publisher, testWallet, logger)
	return f
}

func (f *engineFixture) addPremiumSpace(spaceID uint64) {
	zone := &model.Zone{ID: 1, Name: "Center", IsPremium: true, HourlyRateStars: 50, HourlyRateNano: 2000000000, MaxDurationHours: 4}
	f.zones.zones = append(f.zones.zones, *zone)
	f.spaces.add(&model.ParkingSpace{ID: spaceID, ZoneID: 1, Label: fmt.Sprintf("A%d", spaceID), Status: model.SpaceVacant}, zone)
}

func (f *engineFixture) addFreeSpace(spaceID uint64) {
	zone := &model.Zone{ID: 2, Name: "Outskirts", IsPremium: false}
	f.zones.zones = append(f.zones.zones, *zone)
	f.spaces.add(&model.ParkingSpace{ID: spaceID, ZoneID: 2, Label: fmt.Sprintf("B%d", spaceID), Status: model.SpaceVacant}, zone)
}

func (f *engineFixture) link(chatID int64, plate string) {
	_ = f.accounts.Upsert(context.Background(), &model.LinkedAccount{ChatID: chatID, LicensePlate: plate, Language: "en"})
}
