package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/logging"
)

type fakeDebriefStore struct {
	items    []domain.DebriefItem
	inserted []domain.Debrief
	start    time.Time
	end      time.Time
}

func (f *fakeDebriefStore) EventsBetween(_ context.Context, start, end time.Time, _ int) ([]domain.DebriefItem, error) {
	f.start, f.end = start, end
	return f.items, nil
}

func (f *fakeDebriefStore) Insert(_ context.Context, d domain.Debrief) (domain.Debrief, error) {
	d.ID = "d1"
	d.GeneratedAt = time.Now().UTC()
	f.inserted = append(f.inserted, d)
	return d, nil
}

type fixedCompletion struct {
	response string
	prompt   string
	calls    int
}

func (c *fixedCompletion) Complete(_ context.Context, prompt string) (string, error) {
	c.calls++
	c.prompt = prompt
	return c.response, nil
}

func debriefItems() []domain.DebriefItem {
	return []domain.DebriefItem{
		{
			CompetitorName: "Mappedin",
			Title:          "Mappedin wins airport contract",
			Summary:        "Signed a deployment across three terminals.",
			EventType:      "New Project",
			Region:         "MENA",
			ThreatLevel:    5,
			Date:           time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC),
			SourceURL:      "https://news.example.org/mappedin",
		},
		{
			CompetitorName: "Pointr",
			Title:          "Pointr raises Series C",
			Summary:        "Raised $30M to expand in Europe.",
			EventType:      "Investment",
			ThreatLevel:    3,
			Date:           time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			SourceURL:      "https://news.example.org/pointr",
		},
	}
}

func TestDebriefGenerateStoresReport(t *testing.T) {
	t.Parallel()

	store := &fakeDebriefStore{items: debriefItems()}
	client := &fixedCompletion{response: "# Weekly Debrief\n\nAll quiet except Mappedin."}
	org := domain.Organization{
		Name:            "Wayfinder Inc",
		Industry:        "wayfinding",
		VIPCompetitors:  []string{"Mappedin", "Pointr"},
		PriorityRegions: []string{"MENA"},
	}
	d := NewDebriefer(store, client, org, DebriefOptions{}, logging.NewWithWriter(io.Discard, "error"))
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	got, err := d.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.ID != "d1" || got.ItemCount != 2 {
		t.Fatalf("got %+v", got)
	}
	if len(store.inserted) != 1 || store.inserted[0].Content != client.response {
		t.Fatalf("stored debrief: %+v", store.inserted)
	}
	if !store.start.Equal(now.AddDate(0, 0, -7)) || !store.end.Equal(now) {
		t.Fatalf("window: %s .. %s", store.start, store.end)
	}

	for _, want := range []string{
		"strategic intelligence analyst for Wayfinder Inc",
		"Main Competitors: Mappedin, Pointr",
		"Executive Summary",
		"Strategic Recommendations",
		"1. [Mappedin] Mappedin wins airport contract",
		"Threat Level: 5/5",
		"Region: Global",
	} {
		if !strings.Contains(client.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestDebriefGenerateNoNews(t *testing.T) {
	t.Parallel()

	store := &fakeDebriefStore{}
	client := &fixedCompletion{response: "unused"}
	d := NewDebriefer(store, client, domain.Organization{}, DebriefOptions{}, logging.NewWithWriter(io.Discard, "error"))

	if _, err := d.Generate(context.Background()); !errors.Is(err, ErrNoRecentNews) {
		t.Fatalf("want ErrNoRecentNews, got %v", err)
	}
	if client.calls != 0 {
		t.Fatal("model must not be called when the window is empty")
	}
	if len(store.inserted) != 0 {
		t.Fatal("nothing should be stored when the window is empty")
	}
}
