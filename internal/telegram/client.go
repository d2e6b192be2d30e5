package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the Telegram Bot API over HTTPS.  It covers only the
// methods the bot uses.  All methods return an error when the API
// answers ok=false; callers at the dispatcher boundary log transport
// failures instead of retrying them.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		baseURL: "https://api.telegram.org/bot" + token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a custom API endpoint.
// Tests point this at an httptest server.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// call POSTs a method with a JSON body and checks the ok flag.
func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !api.OK {
		return fmt.Errorf("%s failed: %s", method, api.Description)
	}
	return nil
}

// SendMessage sends a text message, optionally with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb *InlineKeyboardMarkup) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if kb != nil {
		payload["reply_markup"] = kb
	}
	return c.call(ctx, "sendMessage", payload)
}

// SendInvoice sends a Stars invoice to the chat.
func (c *Client) SendInvoice(ctx context.Context, chatID int64, inv Invoice) error {
	payload := map[string]any{
		"chat_id":     chatID,
		"title":       inv.Title,
		"description": inv.Description,
		"payload":     inv.Payload,
		"currency":    inv.Currency,
		"prices":      inv.Prices,
	}
	return c.call(ctx, "sendInvoice", payload)
}

// AnswerCallbackQuery acknowledges a button press.  Text, when
// non-empty, is shown to the user as a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload)
}

// AnswerPreCheckoutQuery approves or declines a pre-checkout query.
// Telegram requires an answer within ten seconds.
func (c *Client) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	payload := map[string]any{
		"pre_checkout_query_id": queryID,
		"ok":                    ok,
	}
	if !ok && errorMessage != "" {
		payload["error_message"] = errorMessage
	}
	return c.call(ctx, "answerPreCheckoutQuery", payload)
}
