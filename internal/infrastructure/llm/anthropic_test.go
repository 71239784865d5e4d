package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompleteReturnsFirstTextBlock(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing version header")
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"  hello  "}]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, Model: "m", APIKey: "key"}, srv.Client())
	out, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "hello" {
		t.Fatalf("got %q", out)
	}
}

func TestCompleteClassifiesTransientErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := NewClient(Options{Endpoint: srv.URL, Model: "m", APIKey: "key"}, srv.Client())
		_, err := c.Complete(context.Background(), "hi")
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if IsTransient(err) != tc.transient {
			t.Errorf("status %d: IsTransient = %v, want %v", tc.status, IsTransient(err), tc.transient)
		}
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	t.Parallel()

	c := NewClient(Options{Endpoint: "http://localhost", Model: "m"}, nil)
	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error without API key")
	}
}
