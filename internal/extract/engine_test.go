package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/logging"
	"marketintel/internal/ports"
)

type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (c *scriptedClient) Complete(_ context.Context, prompt string) (string, error) {
	i := c.calls
	c.calls++
	c.prompts = append(c.prompts, prompt)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func newTestEngine(client ports.CompletionClient) *Engine {
	e := NewEngine(client, Options{
		BatchSize:      2,
		NetworkRetries: 2,
		ParseRetries:   1,
	}, logging.NewWithWriter(io.Discard, "error"))
	e.sleep = func(context.Context, time.Duration) {}
	e.now = func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) }
	return e
}

func articles(n int) []domain.RawArticle {
	out := make([]domain.RawArticle, n)
	for i := range out {
		out[i] = domain.RawArticle{
			Title:        fmt.Sprintf("article %d", i),
			Link:         fmt.Sprintf("https://example.org/%d", i),
			SearchRegion: fmt.Sprintf("region-%d", i),
		}
	}
	return out
}

func itemDoc(url string) string {
	return fmt.Sprintf(`{"news_items":[{"event_type":"Investment","title":"t","summary":"s","threat_level":2,"impact_score":50,"date":"2026-08-20","source_url":%q}],"no_relevant_news":false}`, url)
}

func TestAnalyzeBatchesAndReattachesRegions(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []string{
		itemDoc("https://example.org/1"),
		itemDoc("https://example.org/2"),
	}}
	e := newTestEngine(client)

	got, err := e.Analyze(context.Background(), "Acme", articles(3), 7, ports.OrgContext{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 batch calls, got %d", client.calls)
	}
	if len(got.Items) != 2 {
		t.Fatalf("got %d items", len(got.Items))
	}
	if got.Items[0].SearchRegion != "region-1" || got.Items[1].SearchRegion != "region-2" {
		t.Fatalf("regions not reattached: %q %q", got.Items[0].SearchRegion, got.Items[1].SearchRegion)
	}
	if got.ExplicitNone {
		t.Fatal("ExplicitNone should be false when items were produced")
	}
}

func TestAnalyzeResubmitsUnparsableOutput(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []string{
		"sorry, here is prose instead of JSON",
		itemDoc("https://example.org/0"),
	}}
	e := newTestEngine(client)

	got, err := e.Analyze(context.Background(), "Acme", articles(1), 7, ports.OrgContext{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("got %d items", len(got.Items))
	}
	if client.calls != 2 {
		t.Fatalf("expected a resubmission, got %d calls", client.calls)
	}
	if client.prompts[1] != client.prompts[0] {
		t.Fatal("resubmission must reuse the original batch prompt")
	}
}

func TestAnalyzeExplicitNone(t *testing.T) {
	t.Parallel()

	none := `{"news_items": [], "no_relevant_news": true}`
	client := &scriptedClient{responses: []string{none, none}}
	e := newTestEngine(client)

	got, err := e.Analyze(context.Background(), "Acme", articles(4), 7, ports.OrgContext{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Items) != 0 || !got.ExplicitNone {
		t.Fatalf("got %+v", got)
	}
}

func TestAnalyzeDropsFailedBatchKeepsOthers(t *testing.T) {
	t.Parallel()

	fatal := errors.New("invalid request")
	client := &scriptedClient{
		errs:      []error{fatal, nil},
		responses: []string{"", itemDoc("https://example.org/2")},
	}
	e := newTestEngine(client)

	got, err := e.Analyze(context.Background(), "Acme", articles(4), 7, ports.OrgContext{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("got %d items", len(got.Items))
	}
	if got.ExplicitNone {
		t.Fatal("a failed batch must not count as an explicit no-news verdict")
	}
}

func TestAnalyzeErrorsWhenEveryBatchFails(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{errs: []error{errors.New("boom"), errors.New("boom")}}
	e := newTestEngine(client)

	if _, err := e.Analyze(context.Background(), "Acme", articles(2), 7, ports.OrgContext{}); err == nil {
		t.Fatal("expected error when all batches fail")
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	t.Parallel()

	e := newTestEngine(&scriptedClient{})
	got, err := e.Analyze(context.Background(), "Acme", nil, 7, ports.OrgContext{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Items) != 0 || got.ExplicitNone {
		t.Fatalf("got %+v", got)
	}
}
