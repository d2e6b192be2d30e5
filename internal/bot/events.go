package bot

import (
	"regexp"
	"strings"

	"github.com/iliyamo/parking-reservation-bot/internal/telegram"
)

// Event is the closed set of variants an inbound update is decoded
// into before any handler runs.  Classification happens exactly once,
// at the dispatcher boundary, so handlers never inspect raw payloads.
type Event interface {
	eventType() string
}

// PreCheckoutEvent asks whether the platform may let the user finish
// an invoice payment.
type PreCheckoutEvent struct {
	Query telegram.PreCheckoutQuery
}

// PaymentSuccessEvent reports a completed in-chat invoice payment.
// The platform itself asserts success, so the charge is treated as
// pre-verified evidence on the native rail.
type PaymentSuccessEvent struct {
	ChatID  int64
	From    *telegram.User
	Payment telegram.SuccessfulPayment
}

// CallbackEvent is a button press carrying a "namespace:argument"
// routing token.  Arg is the raw argument text; the dispatcher
// validates it before any handler sees it.
type CallbackEvent struct {
	CallbackID string
	ChatID     int64
	From       telegram.User
	Namespace  string
	Arg        string
}

// CommandEvent is a slash command with its trailing arguments.
type CommandEvent struct {
	ChatID  int64
	From    *telegram.User
	Command string
	Args    string
}

// TextShape describes which pattern a free-text message matched.
type TextShape int

// Free-text shapes, checked tightest first so a wallet address is
// never mistaken for a plate and a plate never for a menu label.
const (
	ShapeOther TextShape = iota
	ShapeWalletAddress
	ShapeTxHash
	ShapePlate
	ShapeMenuLabel
)

// TextEvent is a free-text message together with its matched shape.
type TextEvent struct {
	ChatID int64
	From   *telegram.User
	Text   string
	Shape  TextShape
}

// MalformedEvent marks a payload that fits no known variant.  The
// callback id, when present, still needs acknowledging so the client
// does not spin forever.
type MalformedEvent struct {
	Reason     string
	CallbackID string
	ChatID     int64
}

func (PreCheckoutEvent) eventType() string    { return "pre_checkout" }
func (PaymentSuccessEvent) eventType() string { return "payment_success" }
func (CallbackEvent) eventType() string       { return "callback" }
func (CommandEvent) eventType() string        { return "command" }
func (TextEvent) eventType() string           { return "text" }
func (MalformedEvent) eventType() string      { return "malformed" }

var (
	// TON user-friendly addresses: 48 base64url characters with a
	// recognized flag prefix.
	walletRe = regexp.MustCompile(`^(EQ|UQ|kQ|0Q)[A-Za-z0-9_-]{46}$`)
	// Transaction hashes arrive as 64 hex characters or 44 base64
	// characters depending on the wallet the user copied them from.
	txHashHexRe    = regexp.MustCompile(`^[A-Fa-f0-9]{64}$`)
	txHashBase64Re = regexp.MustCompile(`^[A-Za-z0-9+/_-]{43}=?$`)
	// License plates: short alphanumeric with optional separators,
	// at least one letter and one digit.
	plateRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9 -]{2,9}$`)
)

// menuLabels maps reply-keyboard button captions, in every supported
// language, onto the slash command they stand for.
var menuLabels = map[string]string{
	"🅿 Reserve":   "/reserve",
	"📋 Status":    "/status",
	"🔗 Link plate": "/link",
	"❓ Help":       "/help",
	"🅿 Бронь":     "/reserve",
	"📋 Статус":    "/status",
	"🔗 Привязка":  "/link",
	"❓ Помощь":     "/help",
}

// plateShaped reports whether text looks like a license plate.
func plateShaped(text string) bool {
	up := strings.ToUpper(strings.TrimSpace(text))
	if !plateRe.MatchString(up) {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, r := range up {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// Classify decodes one update into exactly one event variant.  The
// order mirrors how specific each pattern is: platform-typed payloads
// first, then the routing token, then progressively looser free-text
// shapes, so a wallet address can never be routed as a plate and a
// plate never as a menu label.
func Classify(upd *telegram.Update) Event {
	switch {
	case upd == nil:
		return MalformedEvent{Reason: "empty update"}
	case upd.PreCheckoutQuery != nil:
		return PreCheckoutEvent{Query: *upd.PreCheckoutQuery}
	case upd.Message != nil && upd.Message.SuccessfulPayment != nil:
		return PaymentSuccessEvent{
			ChatID:  upd.Message.Chat.ID,
			From:    upd.Message.From,
			Payment: *upd.Message.SuccessfulPayment,
		}
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		chatID := cq.From.ID
		if cq.Message != nil {
			chatID = cq.Message.Chat.ID
		}
		ns, arg, ok := strings.Cut(cq.Data, ":")
		if !ok || ns == "" {
			return MalformedEvent{
				Reason:     "callback data without namespace token",
				CallbackID: cq.ID,
				ChatID:     chatID,
			}
		}
		return CallbackEvent{
			CallbackID: cq.ID,
			ChatID:     chatID,
			From:       cq.From,
			Namespace:  ns,
			Arg:        arg,
		}
	case upd.Message != nil && strings.TrimSpace(upd.Message.Text) != "":
		msg := upd.Message
		text := strings.TrimSpace(msg.Text)
		if strings.HasPrefix(text, "/") {
			cmd, args, _ := strings.Cut(text, " ")
			// Strip the @botname suffix of commands sent in groups.
			if i := strings.Index(cmd, "@"); i > 0 {
				cmd = cmd[:i]
			}
			return CommandEvent{ChatID: msg.Chat.ID, From: msg.From, Command: cmd, Args: strings.TrimSpace(args)}
		}
		shape := ShapeOther
		switch {
		case walletRe.MatchString(text):
			shape = ShapeWalletAddress
		case txHashHexRe.MatchString(text) || txHashBase64Re.MatchString(text):
			shape = ShapeTxHash
		case plateShaped(text):
			shape = ShapePlate
		default:
			if _, ok := menuLabels[text]; ok {
				shape = ShapeMenuLabel
			}
		}
		return TextEvent{ChatID: msg.Chat.ID, From: msg.From, Text: text, Shape: shape}
	case upd.Message != nil:
		return TextEvent{ChatID: upd.Message.Chat.ID, From: upd.Message.From, Shape: ShapeOther}
	default:
		return MalformedEvent{Reason: "no recognized payload in update"}
	}
}

// MenuCommand returns the slash command a menu label stands for.
func MenuCommand(label string) (string, bool) {
	cmd, ok := menuLabels[label]
	return cmd, ok
}
