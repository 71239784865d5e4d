package extract

import (
	"testing"
)

const validDoc = `{"news_items":[{"event_type":"Investment","title":"Series B","summary":"Raised $40M.","threat_level":3,"impact_score":60,"date":"2026-08-01","source_url":"https://example.org/a"}],"no_relevant_news":false}`

func TestParsePayloadFencedAndBareAreEquivalent(t *testing.T) {
	t.Parallel()

	bare, err := parsePayload(validDoc)
	if err != nil {
		t.Fatalf("bare: %v", err)
	}
	fenced, err := parsePayload("```json\n" + validDoc + "\n```")
	if err != nil {
		t.Fatalf("fenced: %v", err)
	}
	if len(bare.NewsItems) != 1 || len(fenced.NewsItems) != 1 {
		t.Fatalf("item counts: bare=%d fenced=%d", len(bare.NewsItems), len(fenced.NewsItems))
	}
	if bare.NewsItems[0].Title != fenced.NewsItems[0].Title ||
		bare.NewsItems[0].SourceURL != fenced.NewsItems[0].SourceURL {
		t.Fatal("fenced parse differs from bare parse")
	}
}

func TestParsePayloadRepairsTruncatedDocument(t *testing.T) {
	t.Parallel()

	// Cut just after the closing brace of the last item.
	truncated := `{"news_items":[{"event_type":"Investment","title":"Series B","summary":"Raised $40M.","threat_level":3,"impact_score":60,"date":"2026-08-01","source_url":"https://example.org/a"}`
	p, err := parsePayload(truncated)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if len(p.NewsItems) != 1 || p.NewsItems[0].Title != "Series B" {
		t.Fatalf("recovered %+v", p.NewsItems)
	}
}

func TestParsePayloadExtractsObjectFromProse(t *testing.T) {
	t.Parallel()

	p, err := parsePayload("Here is the analysis you asked for:\n" + validDoc + "\nLet me know if you need more.")
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if len(p.NewsItems) != 1 {
		t.Fatalf("got %d items", len(p.NewsItems))
	}
}

func TestParsePayloadExplicitNone(t *testing.T) {
	t.Parallel()

	p, err := parsePayload(`{"news_items": [], "no_relevant_news": true}`)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if !p.NoRelevantNews || len(p.NewsItems) != 0 {
		t.Fatalf("got %+v", p)
	}
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := parsePayload("I could not analyze these articles."); err == nil {
		t.Fatal("expected error")
	}
}
