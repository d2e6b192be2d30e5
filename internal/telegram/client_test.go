package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendMessageChecksOKFlag(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	err := c.SendMessage(context.Background(), 42, "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/sendMessage" {
		t.Fatalf("expected /sendMessage, got %s", gotPath)
	}
	if gotBody["text"] != "hello" {
		t.Fatalf("expected text hello, got %v", gotBody["text"])
	}
	if _, present := gotBody["reply_markup"]; present {
		t.Fatal("nil keyboard must not be serialized")
	}
}

func TestSendMessageIncludesKeyboard(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	kb := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "A1", CallbackData: "reserve_space:1"}},
	}}
	c := NewClientWithBaseURL(srv.URL)
	if err := c.SendMessage(context.Background(), 42, "pick", kb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := gotBody["reply_markup"]; !present {
		t.Fatal("expected reply_markup in payload")
	}
}

func TestAPIErrorSurfacesDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	err := c.SendMessage(context.Background(), 42, "hello", nil)
	if err == nil {
		t.Fatal("expected error for ok=false response")
	}
}

func TestAnswerPreCheckoutQueryDecline(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	if err := c.AnswerPreCheckoutQuery(context.Background(), "q1", false, "space gone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["ok"] != false {
		t.Fatalf("expected ok=false, got %v", gotBody["ok"])
	}
	if gotBody["error_message"] != "space gone" {
		t.Fatalf("expected error_message, got %v", gotBody["error_message"])
	}
}

func TestInvoicePayloadRoundTrip(t *testing.T) {
	s := EncodeInvoicePayload(17)
	p, err := DecodeInvoicePayload(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SpaceID != 17 {
		t.Fatalf("expected space 17, got %d", p.SpaceID)
	}
	if _, err := DecodeInvoicePayload("not json"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
