package bot

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/iliyamo/parking-reservation-bot/internal/telegram"
)

type dispatcherFixture struct {
	*engineFixture
	dispatcher *Dispatcher
}

func newDispatcherFixture() *dispatcherFixture {
	ef := newEngineFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	commands := NewCommands(ef.accounts, ef.history, ef.messenger, logger)
	return &dispatcherFixture{
		engineFixture: ef,
		dispatcher:    NewDispatcher(ef.engine, commands, ef.messenger, logger),
	}
}

func callbackUpdate(chatID int64, id, data string) *telegram.Update {
	return &telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:      id,
		From:    telegram.User{ID: chatID},
		Message: &telegram.Message{Chat: telegram.Chat{ID: chatID}},
		Data:    data,
	}}
}

func TestCallbackAlwaysAcknowledged(t *testing.T) {
	f := newDispatcherFixture()
	// No space 99 exists, so the handler fails; the ack must still go out.
	if err := f.dispatcher.Dispatch(context.Background(), callbackUpdate(1, "cb1", "reserve_space:99")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.messenger.acks) != 1 || f.messenger.acks[0] != "cb1" {
		t.Fatalf("callback must be acknowledged despite the failure: %+v", f.messenger.acks)
	}
	last := f.messenger.lastMessage()
	if last == nil || last.Text != T("en", "try_again") {
		t.Fatalf("handler failure must surface as try_again, got %+v", last)
	}
}

func TestCallbackInvalidArgumentRejected(t *testing.T) {
	f := newDispatcherFixture()
	cases := []string{"reserve_space:abc", "reserve_space:0", "reserve_space:-4", "zone:1extra"}
	for _, data := range cases {
		if err := f.dispatcher.Dispatch(context.Background(), callbackUpdate(1, "cb", data)); err != nil {
			t.Fatalf("unexpected error for %q: %v", data, err)
		}
	}
	if len(f.messenger.acks) != len(cases) {
		t.Fatalf("every callback needs an ack, got %d of %d", len(f.messenger.acks), len(cases))
	}
	for _, m := range f.messenger.messagesFor(1) {
		if m.Text != T("en", "bad_argument") {
			t.Fatalf("expected bad_argument for invalid callbacks, got %q", m.Text)
		}
	}
}

func TestCallbackUnknownNamespaceAckedAndDropped(t *testing.T) {
	f := newDispatcherFixture()
	if err := f.dispatcher.Dispatch(context.Background(), callbackUpdate(1, "cb9", "mystery:5")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.messenger.acks) != 1 {
		t.Fatal("unknown namespace still needs an ack")
	}
	if len(f.messenger.messagesFor(1)) != 0 {
		t.Fatal("unknown namespace must not message the user")
	}
}

func TestMalformedCallbackAckedAndRejected(t *testing.T) {
	f := newDispatcherFixture()
	if err := f.dispatcher.Dispatch(context.Background(), callbackUpdate(1, "cb3", "no-namespace-token")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.messenger.acks) != 1 || f.messenger.acks[0] != "cb3" {
		t.Fatalf("malformed callback must still be acknowledged: %+v", f.messenger.acks)
	}
	last := f.messenger.lastMessage()
	if last == nil || last.Text != T("en", "bad_argument") {
		t.Fatalf("malformed callback must be rejected visibly, got %+v", last)
	}
}

func TestCommandRouting(t *testing.T) {
	f := newDispatcherFixture()
	if err := f.dispatcher.Dispatch(context.Background(), msgUpdate(1, "/link ABC-123")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acc, err := f.accounts.GetByChatID(context.Background(), 1)
	if err != nil || acc.LicensePlate != "ABC-123" {
		t.Fatalf("link command must store the plate: %v %+v", err, acc)
	}
	last := f.messenger.lastMessage()
	if last == nil || last.Text != T("en", "linked_ok", "ABC-123") {
		t.Fatalf("expected linked_ok, got %+v", last)
	}
}

func TestPlateTextLinksWithoutCommand(t *testing.T) {
	f := newDispatcherFixture()
	if err := f.dispatcher.Dispatch(context.Background(), msgUpdate(2, "XYZ-789")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acc, err := f.accounts.GetByChatID(context.Background(), 2)
	if err != nil || acc.LicensePlate != "XYZ-789" {
		t.Fatalf("plate-shaped text must link: %v %+v", err, acc)
	}
}

func TestPlateTextFromLinkedSenderDoesNotRelink(t *testing.T) {
	f := newDispatcherFixture()
	f.link(9, "OLD-111")
	if err := f.dispatcher.Dispatch(context.Background(), msgUpdate(9, "NEW-222")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acc, err := f.accounts.GetByChatID(context.Background(), 9)
	if err != nil || acc.LicensePlate != "OLD-111" {
		t.Fatalf("linked plate must survive a pasted plate: %v %+v", err, acc)
	}
	last := f.messenger.lastMessage()
	if last == nil || last.Text != T("en", "unknown_input") {
		t.Fatalf("pasted plate from a linked sender is unrecognized input, got %+v", last)
	}
}

func TestMenuLabelRoutesLikeCommand(t *testing.T) {
	f := newDispatcherFixture()
	if err := f.dispatcher.Dispatch(context.Background(), msgUpdate(1, "❓ Help")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := f.messenger.lastMessage()
	if last == nil || last.Text != T("en", "help") {
		t.Fatalf("expected help text, got %+v", last)
	}
}

func TestUnknownTextAnswered(t *testing.T) {
	f := newDispatcherFixture()
	if err := f.dispatcher.Dispatch(context.Background(), msgUpdate(1, "what is this")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := f.messenger.lastMessage()
	if last == nil || last.Text != T("en", "unknown_input") {
		t.Fatalf("expected unknown_input, got %+v", last)
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	f := newDispatcherFixture()
	f.messenger.panicOnSend = true
	if err := f.dispatcher.Dispatch(context.Background(), msgUpdate(1, "/help")); err != nil {
		t.Fatalf("panic must be contained, got %v", err)
	}
}
