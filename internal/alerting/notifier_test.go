package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-miner/internal/storage"
)

func sampleNotification() Notification {
	return Notification{
		MinSpread: 10000,
		Comparison: storage.ComparisonRow{
			ItemID: 2955, Name: "Alexandrite", Category: "Materials", Scope: storage.ScopeUnit,
			LowestPrice: 100000, LowestServer: "Asura",
			HighestPrice: 145000, HighestServer: "Bahamut",
			AveragePrice: 122500, PriceDifference: 45000, ServerCount: 2,
		},
	}
}

func TestTelegramNotifySendsMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "42", srv.URL, 2*time.Second, zerolog.Nop())
	if err := n.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotPayload["chat_id"] != "42" {
		t.Fatalf("chat_id = %q", gotPayload["chat_id"])
	}
	text := gotPayload["text"]
	for _, want := range []string{"Alexandrite", "Asura 100000 gil", "Bahamut 145000 gil", "Spread: 45000 gil"} {
		if !strings.Contains(text, want) {
			t.Fatalf("消息缺少 %q:\n%s", want, text)
		}
	}
}

func TestTelegramNotifyRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("bad", "42", srv.URL, 2*time.Second, zerolog.Nop())
	if err := n.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("401 应返回错误")
	}
}

func TestTelegramNotifyRejectsOKFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("tok", "42", srv.URL, 2*time.Second, zerolog.Nop())
	if err := n.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("ok=false 应返回错误")
	}
}
