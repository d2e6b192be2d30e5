// Package telegram implements a minimal Bot API client covering the
// calls the reservation flow needs: sending messages and invoices and
// answering callback and pre-checkout queries.  Only the fields the
// dispatcher reads are decoded from the update envelope.
package telegram

import "encoding/json"

// Update is one inbound webhook payload.  Exactly one of the pointer
// fields is expected to be set; the dispatcher classifies the update
// based on which one it finds.
type Update struct {
	UpdateID         int64             `json:"update_id"`
	Message          *Message          `json:"message,omitempty"`
	CallbackQuery    *CallbackQuery    `json:"callback_query,omitempty"`
	PreCheckoutQuery *PreCheckoutQuery `json:"pre_checkout_query,omitempty"`
}

// User is the sender of a message or query.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat identifies the conversation an update belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is an inbound chat message.  Text carries commands, menu
// labels, wallet addresses, transaction hashes and plate submissions;
// SuccessfulPayment is set when the platform confirms an invoice.
type Message struct {
	MessageID         int64              `json:"message_id"`
	From              *User              `json:"from,omitempty"`
	Chat              Chat               `json:"chat"`
	Text              string             `json:"text,omitempty"`
	SuccessfulPayment *SuccessfulPayment `json:"successful_payment,omitempty"`
}

// CallbackQuery is sent when a user presses an inline keyboard button.
// Data carries the "namespace:argument" routing token.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// PreCheckoutQuery is the platform's final confirmation request before
// it lets the user complete an invoice payment.
type PreCheckoutQuery struct {
	ID             string `json:"id"`
	From           User   `json:"from"`
	Currency       string `json:"currency"`
	TotalAmount    int64  `json:"total_amount"`
	InvoicePayload string `json:"invoice_payload"`
}

// SuccessfulPayment is attached to a service message once the platform
// has charged the user.  InvoicePayload round-trips the JSON payload
// given to SendInvoice; the charge id is the ledger tx reference for
// the native rail.
type SuccessfulPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int64  `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
	ProviderPaymentChargeID string `json:"provider_payment_charge_id,omitempty"`
}

// InvoicePayload is the JSON document embedded in invoices so the
// successful-payment event can be traced back to a space.
type InvoicePayload struct {
	SpaceID uint64 `json:"space_id"`
}

// EncodeInvoicePayload serializes the payload for SendInvoice.
func EncodeInvoicePayload(spaceID uint64) string {
	b, _ := json.Marshal(InvoicePayload{SpaceID: spaceID})
	return string(b)
}

// DecodeInvoicePayload parses a payload string back into its fields.
func DecodeInvoicePayload(s string) (InvoicePayload, error) {
	var p InvoicePayload
	err := json.Unmarshal([]byte(s), &p)
	return p, err
}

// InlineKeyboardButton is one button of an inline keyboard.  Exactly
// one of CallbackData or URL should be set.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// InlineKeyboardMarkup is the reply markup attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// LabeledPrice is one line of an invoice.  Telegram Stars invoices
// carry exactly one line with the amount in whole Stars.
type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// Invoice describes a sendInvoice call for the Stars rail.  Currency
// is always XTR and ProviderToken stays empty for Stars.
type Invoice struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Payload     string         `json:"payload"`
	Currency    string         `json:"currency"`
	Prices      []LabeledPrice `json:"prices"`
}
