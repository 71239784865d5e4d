// Package persist validates extracted news items and writes the survivors to
// the event store, reporting a reason code for everything it rejects.
package persist

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketintel/internal/domain"
	"marketintel/internal/metrics"
	"marketintel/internal/ports"
)

const (
	titleCap     = 200
	summaryCap   = 1000
	eventTypeCap = 100
)

// epoch is the start of the tracking window. Events dated before it are
// rejected unless they came from the grounded-generation provider.
var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Gate implements ports.EventSink.
type Gate struct {
	store      ports.NewsStore
	logger     *slog.Logger
	maxAgeDays int
	now        func() time.Time
}

var _ ports.EventSink = (*Gate)(nil)

// NewGate builds a gate. maxAgeDays > 0 additionally rejects events older
// than that many days regardless of the epoch cutoff.
func NewGate(store ports.NewsStore, maxAgeDays int, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:      store,
		logger:     logger.With("component", "persist"),
		maxAgeDays: maxAgeDays,
		now:        time.Now,
	}
}

// Save validates one item and inserts it. The bool reports whether a row was
// written; the string is "saved" or the rejection reason. Store errors are
// returned as the reason so callers keep going.
func (g *Gate) Save(ctx context.Context, competitorID string, item domain.NewsItem) (bool, string) {
	sourceURL := Sanitize(item.SourceURL)
	if sourceURL == "" || strings.Contains(sourceURL, "example.com") {
		return g.skip("invalid_url")
	}

	exists, err := g.store.HasURL(ctx, sourceURL)
	if err != nil {
		return g.fail(err)
	}
	if exists {
		return g.skip("duplicate_url")
	}

	title := truncate(Sanitize(orUntitled(item.Title)), titleCap)
	exists, err = g.store.HasTitle(ctx, competitorID, title)
	if err != nil {
		return g.fail(err)
	}
	if exists {
		return g.skip("duplicate_title")
	}

	now := g.now().UTC()
	date := parseDate(item.Date, now)
	if date.After(now) {
		date = now
	}
	if g.maxAgeDays > 0 && date.Before(now.AddDate(0, 0, -g.maxAgeDays)) {
		return g.skip("too_old")
	}
	if date.Before(epoch) {
		if item.SearchRegion != domain.SourceGemini {
			return g.skip("pre_2025")
		}
		// Grounded results get date leniency; truly ancient dates are
		// almost certainly extraction noise, move them to now.
		if date.Year() < epoch.Year()-1 {
			date = now
		}
	}

	event := domain.NewsEvent{
		ID:           newID(),
		CompetitorID: competitorID,
		EventType:    truncate(Sanitize(orDefault(item.EventType, "Unknown")), eventTypeCap),
		Category:     Sanitize(item.Category),
		Title:        title,
		Summary:      truncate(Sanitize(item.Summary), summaryCap),
		ThreatLevel:  clampThreat(item.ThreatLevel),
		ImpactScore:  clampImpact(item.ImpactScore),
		Date:         date,
		SourceURL:    sourceURL,
		Region:       orDefault(item.Region, "GLOBAL"),
		ExtractedAt:  now,
		Details: domain.EventDetails{
			Location:       Sanitize(item.Details.Location),
			FinancialValue: Sanitize(item.Details.FinancialValue),
			Partners:       sanitizeAll(item.Details.Partners),
			Products:       sanitizeAll(item.Details.Products),
			Category:       Sanitize(item.Details.Category),
		},
	}

	if err := g.store.Insert(ctx, event); err != nil {
		return g.fail(err)
	}
	metrics.EventsSaved.Inc()
	return true, "saved"
}

func (g *Gate) skip(reason string) (bool, string) {
	metrics.EventsSkipped.WithLabelValues(reason).Inc()
	return false, reason
}

func (g *Gate) fail(err error) (bool, string) {
	metrics.EventsSkipped.WithLabelValues("store_error").Inc()
	g.logger.Error("event store failure", "error", err)
	return false, err.Error()
}

// FallbackItem synthesizes one minimal low-confidence event from the best
// available raw article, so a run that found articles never ends with
// nothing. Articles from the broad fallback query rank below the rest.
func FallbackItem(articles []domain.RawArticle) (domain.NewsItem, bool) {
	if len(articles) == 0 {
		return domain.NewsItem{}, false
	}
	best := articles[0]
	for _, a := range articles {
		if a.SearchRegion != domain.SourceFallback {
			best = a
			break
		}
	}
	impact := 10
	return domain.NewsItem{
		EventType:    "General Update",
		Title:        best.Title,
		Summary:      best.Snippet,
		ThreatLevel:  1,
		ImpactScore:  &impact,
		Date:         best.Date,
		SourceURL:    best.Link,
		SearchRegion: best.SearchRegion,
	}, true
}

func parseDate(s string, fallback time.Time) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return t
}

func clampThreat(level int) int {
	if level == 0 {
		return 2
	}
	return max(1, min(5, level))
}

func clampImpact(score *int) *int {
	if score == nil {
		return nil
	}
	v := max(0, min(100, *score))
	return &v
}

func sanitizeAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, Sanitize(s))
	}
	return out
}

func newID() string {
	return "c" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func orUntitled(s string) string { return orDefault(s, "Untitled") }

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
