package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation-bot/internal/bot"
	"github.com/iliyamo/parking-reservation-bot/internal/telegram"
)

// WebhookHandler receives Telegram updates.  The secret header proves
// the request came from Telegram.  Authenticated requests are always
// answered 200 regardless of what processing did: a non-200 would make
// Telegram redeliver the update, and a failure that is deterministic
// would then repeat forever.
type WebhookHandler struct {
	Dispatcher *bot.Dispatcher
	Secret     string
	Logger     *slog.Logger
}

func NewWebhookHandler(d *bot.Dispatcher, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{Dispatcher: d, Secret: secret, Logger: logger}
}

// Receive decodes one update and hands it to the dispatcher.
func (h *WebhookHandler) Receive(c echo.Context) error {
	if c.Request().Header.Get("X-Telegram-Bot-Api-Secret-Token") != h.Secret {
		return c.NoContent(http.StatusUnauthorized)
	}
	var upd telegram.Update
	if err := json.NewDecoder(c.Request().Body).Decode(&upd); err != nil {
		// An undecodable body decodes the same way on every redelivery,
		// so a non-200 here would loop.  Log and consume it.
		h.Logger.Warn("webhook body decode failed", "err", err)
		return c.NoContent(http.StatusOK)
	}
	if err := h.Dispatcher.Dispatch(c.Request().Context(), &upd); err != nil {
		h.Logger.Error("dispatch failed", "err", err)
	}
	return c.NoContent(http.StatusOK)
}
