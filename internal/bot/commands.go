package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iliyamo/parking-reservation-bot/internal/model"
	"github.com/iliyamo/parking-reservation-bot/internal/repository"
	"github.com/iliyamo/parking-reservation-bot/internal/telegram"
)

// Commands implements the peripheral slash commands: everything around
// the reservation flow that touches the account link, language choice
// or reservation history.  The reservation flow itself lives in Engine.
type Commands struct {
	accounts  AccountStore
	history   HistoryStore
	messenger Messenger
	logger    *slog.Logger
}

// NewCommands wires the peripheral command handlers.
func NewCommands(accounts AccountStore, history HistoryStore, messenger Messenger, logger *slog.Logger) *Commands {
	return &Commands{accounts: accounts, history: history, messenger: messenger, logger: logger}
}

func (c *Commands) lang(ctx context.Context, chatID int64, from *telegram.User) string {
	acc, err := c.accounts.GetByChatID(ctx, chatID)
	if err != nil {
		return userLang(nil, from)
	}
	return userLang(acc, from)
}

func (c *Commands) send(ctx context.Context, chatID int64, text string) {
	if err := c.messenger.SendMessage(ctx, chatID, text, nil); err != nil {
		c.logger.Error("send message failed", "chat_id", chatID, "err", err)
	}
}

// Start greets the user and shows the persistent menu.
func (c *Commands) Start(ctx context.Context, chatID int64, from *telegram.User) error {
	c.send(ctx, chatID, T(c.lang(ctx, chatID, from), "welcome"))
	return nil
}

// Help lists the available commands.
func (c *Commands) Help(ctx context.Context, chatID int64, from *telegram.User) error {
	c.send(ctx, chatID, T(c.lang(ctx, chatID, from), "help"))
	return nil
}

// Link records or replaces the chat's license plate.  Called with no
// argument it explains the expected format instead.
func (c *Commands) Link(ctx context.Context, chatID int64, from *telegram.User, args string) error {
	lang := c.lang(ctx, chatID, from)
	plate := strings.ToUpper(strings.TrimSpace(args))
	if !plateShaped(plate) {
		c.send(ctx, chatID, T(lang, "link_prompt"))
		return nil
	}
	acc := &model.LinkedAccount{ChatID: chatID, LicensePlate: plate, Language: lang}
	if err := c.accounts.Upsert(ctx, acc); err != nil {
		return fmt.Errorf("link plate: %w", err)
	}
	c.send(ctx, chatID, T(lang, "linked_ok", plate))
	return nil
}

// LinkImplicit handles a bare plate-shaped message.  It links only
// when the chat has no plate yet; for an already-linked sender the
// text is answered like any other unrecognized input, so a pasted
// plate can never silently replace the plate backing active
// reservations.  Replacing a plate always goes through /link.
func (c *Commands) LinkImplicit(ctx context.Context, chatID int64, from *telegram.User, text string) error {
	_, err := c.accounts.GetByChatID(ctx, chatID)
	if err == repository.ErrAccountNotFound {
		return c.Link(ctx, chatID, from, text)
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	return c.Unknown(ctx, chatID, from)
}

// Language switches the chat's message language.  Unknown codes leave
// the setting untouched and show the help text.
func (c *Commands) Language(ctx context.Context, chatID int64, from *telegram.User, args string) error {
	lang := c.lang(ctx, chatID, from)
	code := strings.ToLower(strings.TrimSpace(args))
	if _, ok := catalog[code]; !ok {
		c.send(ctx, chatID, T(lang, "help"))
		return nil
	}
	err := c.accounts.SetLanguage(ctx, chatID, code)
	if err == repository.ErrAccountNotFound {
		// No link yet: a plate-less row cannot hold the preference, so
		// just answer in the requested language.
		c.send(ctx, chatID, T(code, "language_set"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	c.send(ctx, chatID, T(code, "language_set"))
	return nil
}

// Status lists the chat's recent reservations.
func (c *Commands) Status(ctx context.Context, chatID int64, from *telegram.User) error {
	lang := c.lang(ctx, chatID, from)
	reservations, err := c.history.ListByChatID(ctx, chatID, 10)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}
	if len(reservations) == 0 {
		c.send(ctx, chatID, T(lang, "status_none"))
		return nil
	}
	var b strings.Builder
	b.WriteString(T(lang, "status_header"))
	for _, r := range reservations {
		b.WriteString("\n")
		b.WriteString(T(lang, "status_line", r.SpaceID, r.EndsAt.Format("15:04 MST"), r.Reference))
	}
	c.send(ctx, chatID, b.String())
	return nil
}

// SaveWallet stores a pasted wallet address against the linked
// account.  Wallet addresses only make sense once a plate exists.
func (c *Commands) SaveWallet(ctx context.Context, chatID int64, from *telegram.User, address string) error {
	lang := c.lang(ctx, chatID, from)
	if _, err := c.accounts.GetByChatID(ctx, chatID); err == repository.ErrAccountNotFound {
		c.send(ctx, chatID, T(lang, "wallet_not_linked"))
		return nil
	} else if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if err := c.accounts.SetWallet(ctx, chatID, address); err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	c.send(ctx, chatID, T(lang, "wallet_saved"))
	return nil
}

// Unknown answers anything that matched no command or text shape.
func (c *Commands) Unknown(ctx context.Context, chatID int64, from *telegram.User) error {
	c.send(ctx, chatID, T(c.lang(ctx, chatID, from), "unknown_input"))
	return nil
}
