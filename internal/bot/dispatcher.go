package bot

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/iliyamo/parking-reservation-bot/internal/telegram"
)

// callbackHandler handles one callback namespace after its argument
// has been validated as a positive integer id.
type callbackHandler func(ctx context.Context, chatID int64, from *telegram.User, id uint64) error

// Dispatcher is the single entry point for inbound updates.  It
// classifies each update exactly once, routes the resulting event, and
// owns the boundary guarantees: callbacks are always acknowledged,
// handler panics are contained, and the caller always gets to return
// 200 to the webhook regardless of what happened inside.
type Dispatcher struct {
	engine    *Engine
	commands  *Commands
	messenger Messenger
	logger    *slog.Logger
	callbacks map[string]callbackHandler
}

// NewDispatcher wires the dispatcher and its callback registry.
func NewDispatcher(engine *Engine, commands *Commands, messenger Messenger, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		engine:    engine,
		commands:  commands,
		messenger: messenger,
		logger:    logger,
	}
	d.callbacks = map[string]callbackHandler{
		"zone": func(ctx context.Context, chatID int64, from *telegram.User, id uint64) error {
			return engine.ShowSpaces(ctx, chatID, from, id)
		},
		"reserve_space": engine.SelectSpace,
		"payment_stars": engine.ChooseStars,
		"payment_ton":   engine.ChooseTon,
		"payment_sent":  engine.PaymentSent,
	}
	return d
}

// Dispatch processes one update end to end.  It never panics and the
// returned error is for logging only; the webhook answers 200 either
// way so the platform does not redeliver an update whose failure is
// deterministic.
func (d *Dispatcher) Dispatch(ctx context.Context, upd *telegram.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic recovered", "panic", r)
			err = nil
		}
	}()

	switch ev := Classify(upd).(type) {
	case PreCheckoutEvent:
		if herr := d.engine.HandlePreCheckout(ctx, ev); herr != nil {
			d.logger.Error("pre-checkout failed", "query_id", ev.Query.ID, "err", herr)
		}
	case PaymentSuccessEvent:
		if herr := d.engine.HandlePaymentSuccess(ctx, ev); herr != nil {
			d.logger.Error("payment success handling failed", "chat_id", ev.ChatID, "err", herr)
			d.sendFailure(ctx, ev.ChatID, ev.From)
		}
	case CallbackEvent:
		d.dispatchCallback(ctx, ev)
	case CommandEvent:
		d.dispatchCommand(ctx, ev)
	case TextEvent:
		d.dispatchText(ctx, ev)
	case MalformedEvent:
		d.logger.Warn("malformed update dropped", "reason", ev.Reason)
		if ev.CallbackID != "" {
			d.ack(ctx, ev.CallbackID, "")
		}
		if ev.ChatID != 0 {
			d.sendText(ctx, ev.ChatID, nil, "bad_argument")
		}
	}
	return nil
}

// dispatchCallback validates the routing argument, runs the registered
// handler and acknowledges the callback whatever the outcome.  An
// unacknowledged callback leaves the client's button spinning.
func (d *Dispatcher) dispatchCallback(ctx context.Context, ev CallbackEvent) {
	defer d.ack(ctx, ev.CallbackID, "")

	handler, ok := d.callbacks[ev.Namespace]
	if !ok {
		d.logger.Warn("unknown callback namespace", "namespace", ev.Namespace, "chat_id", ev.ChatID)
		return
	}
	id, perr := strconv.ParseUint(ev.Arg, 10, 64)
	if perr != nil || id == 0 {
		d.logger.Warn("invalid callback argument", "namespace", ev.Namespace, "arg", ev.Arg)
		d.sendText(ctx, ev.ChatID, &ev.From, "bad_argument")
		return
	}
	if herr := handler(ctx, ev.ChatID, &ev.From, id); herr != nil {
		d.logger.Error("callback handling failed",
			"namespace", ev.Namespace, "id", id, "chat_id", ev.ChatID, "err", herr)
		d.sendFailure(ctx, ev.ChatID, &ev.From)
	}
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, ev CommandEvent) {
	var herr error
	switch ev.Command {
	case "/start":
		herr = d.commands.Start(ctx, ev.ChatID, ev.From)
	case "/help":
		herr = d.commands.Help(ctx, ev.ChatID, ev.From)
	case "/reserve":
		herr = d.engine.ShowZones(ctx, ev.ChatID, ev.From)
	case "/status":
		herr = d.commands.Status(ctx, ev.ChatID, ev.From)
	case "/link":
		herr = d.commands.Link(ctx, ev.ChatID, ev.From, ev.Args)
	case "/language":
		herr = d.commands.Language(ctx, ev.ChatID, ev.From, ev.Args)
	default:
		herr = d.commands.Unknown(ctx, ev.ChatID, ev.From)
	}
	if herr != nil {
		d.logger.Error("command handling failed", "command", ev.Command, "chat_id", ev.ChatID, "err", herr)
		d.sendFailure(ctx, ev.ChatID, ev.From)
	}
}

// dispatchText routes free text by its matched shape.  A pasted plate
// outside of /link still links it for chats with no plate yet; that is
// the most common first message from new users.
func (d *Dispatcher) dispatchText(ctx context.Context, ev TextEvent) {
	var herr error
	switch ev.Shape {
	case ShapeWalletAddress:
		herr = d.commands.SaveWallet(ctx, ev.ChatID, ev.From, ev.Text)
	case ShapeTxHash:
		herr = d.engine.HandleTxHash(ctx, ev.ChatID, ev.From, ev.Text)
	case ShapePlate:
		herr = d.commands.LinkImplicit(ctx, ev.ChatID, ev.From, ev.Text)
	case ShapeMenuLabel:
		cmd, _ := MenuCommand(ev.Text)
		d.dispatchCommand(ctx, CommandEvent{ChatID: ev.ChatID, From: ev.From, Command: cmd})
		return
	default:
		herr = d.commands.Unknown(ctx, ev.ChatID, ev.From)
	}
	if herr != nil {
		d.logger.Error("text handling failed", "shape", ev.Shape, "chat_id", ev.ChatID, "err", herr)
		d.sendFailure(ctx, ev.ChatID, ev.From)
	}
}

func (d *Dispatcher) ack(ctx context.Context, callbackID, text string) {
	if err := d.messenger.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		d.logger.Error("answer callback failed", "callback_id", callbackID, "err", err)
	}
}

func (d *Dispatcher) sendText(ctx context.Context, chatID int64, from *telegram.User, key string) {
	lang := d.engine.langFor(ctx, chatID, from)
	if err := d.messenger.SendMessage(ctx, chatID, T(lang, key), nil); err != nil {
		d.logger.Error("send message failed", "chat_id", chatID, "err", err)
	}
}

// sendFailure converts an internal error into the generic try-again
// message.  Raw error text never reaches the chat.
func (d *Dispatcher) sendFailure(ctx context.Context, chatID int64, from *telegram.User) {
	d.sendText(ctx, chatID, from, "try_again")
}
