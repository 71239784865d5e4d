package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendCompletion(t *testing.T) {
	t.Parallel()

	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	m := NewMailer(Options{Endpoint: srv.URL, APIKey: "key", DashboardURL: "https://dash.example.org"}, srv.Client())
	if err := m.SendCompletion(context.Background(), "user@example.org", "Acme Org"); err != nil {
		t.Fatalf("SendCompletion: %v", err)
	}
	if len(got.To) != 1 || got.To[0] != "user@example.org" {
		t.Fatalf("to = %v", got.To)
	}
	if !strings.Contains(got.Subject, "Acme Org") {
		t.Errorf("subject = %q", got.Subject)
	}
	if !strings.Contains(got.HTML, "https://dash.example.org") {
		t.Error("dashboard link missing from body")
	}
}

func TestSendCompletionUnconfigured(t *testing.T) {
	t.Parallel()

	m := NewMailer(Options{}, nil)
	if err := m.SendCompletion(context.Background(), "user@example.org", "Acme"); err == nil {
		t.Fatal("expected error without API key")
	}
}
