package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"delta-guard/internal/procctl"
)

func testAlert() Alert {
	return Alert{
		At:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Currency: "BTC",
		Delta:    decimal.RequireFromString("-7.4"),
		Bound:    decimal.RequireFromString("5"),
		Held:     65 * time.Second,
		Process:  "term_proc",
		Killed: []procctl.Result{
			{PID: 4242, Name: "term_proc"},
			{PID: 4243, Name: "term_proc", Err: errors.New("operation not permitted")},
		},
	}
}

func TestTelegramNotifySuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "bottoken/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat-42", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testAlert()); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}

	if received["chat_id"] != "chat-42" {
		t.Errorf("chat_id = %q, want chat-42", received["chat_id"])
	}
	text := received["text"]
	for _, fragment := range []string{"BTC", "-7.4", "bound 5", "pid 4242: ok", "pid 4243: FAILED"} {
		if !strings.Contains(text, fragment) {
			t.Errorf("message should contain %q, got:\n%s", fragment, text)
		}
	}
}

func TestTelegramNotifyAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testAlert()); err == nil {
		t.Fatal("ok=false should be an error")
	}
}

func TestTelegramNotifyHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testAlert()); err == nil {
		t.Fatal("non-2xx should be an error")
	}
}

func TestRenderMessageNoMatches(t *testing.T) {
	alert := testAlert()
	alert.Killed = nil
	text := renderMessage(alert)
	if !strings.Contains(text, `No running "term_proc" processes found`) {
		t.Fatalf("message should note the absent process, got:\n%s", text)
	}
}
