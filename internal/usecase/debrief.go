package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/ports"
)

// ErrNoRecentNews signals there were no stored events in the debrief window,
// so no report was generated.
var ErrNoRecentNews = errors.New("no news events in the debrief window")

// DebriefOptions bounds one debrief generation.
type DebriefOptions struct {
	Days      int
	ItemLimit int
}

// Debriefer turns the most recent stored events into a strategic intelligence
// report via the completion model and persists it.
type Debriefer struct {
	store  ports.DebriefStore
	client ports.CompletionClient
	org    domain.Organization
	opts   DebriefOptions
	logger *slog.Logger
	now    func() time.Time
}

func NewDebriefer(store ports.DebriefStore, client ports.CompletionClient, org domain.Organization, opts DebriefOptions, logger *slog.Logger) *Debriefer {
	if opts.Days <= 0 {
		opts.Days = 7
	}
	if opts.ItemLimit <= 0 {
		opts.ItemLimit = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Debriefer{
		store:  store,
		client: client,
		org:    org,
		opts:   opts,
		logger: logger.With("component", "debrief"),
		now:    time.Now,
	}
}

// Generate builds and stores one debrief over the trailing window. Returns
// ErrNoRecentNews when the window holds no events.
func (d *Debriefer) Generate(ctx context.Context) (domain.Debrief, error) {
	end := d.now().UTC()
	start := end.AddDate(0, 0, -d.opts.Days)

	items, err := d.store.EventsBetween(ctx, start, end, d.opts.ItemLimit)
	if err != nil {
		return domain.Debrief{}, fmt.Errorf("load debrief events: %w", err)
	}
	if len(items) == 0 {
		return domain.Debrief{}, ErrNoRecentNews
	}
	d.logger.Info("generating debrief", "items", len(items), "days", d.opts.Days)

	content, err := d.client.Complete(ctx, d.buildPrompt(items))
	if err != nil {
		return domain.Debrief{}, fmt.Errorf("generate debrief: %w", err)
	}

	saved, err := d.store.Insert(ctx, domain.Debrief{
		Content:     content,
		PeriodStart: start,
		PeriodEnd:   end,
		ItemCount:   len(items),
	})
	if err != nil {
		return domain.Debrief{}, fmt.Errorf("store debrief: %w", err)
	}
	d.logger.Info("debrief stored", "id", saved.ID, "items", saved.ItemCount)
	return saved, nil
}

func (d *Debriefer) buildPrompt(items []domain.DebriefItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a strategic intelligence analyst for %s", orDefault(d.org.Name, "our company"))
	if d.org.Industry != "" {
		fmt.Fprintf(&b, ", a %s company", d.org.Industry)
	}
	b.WriteString(".\n\nGenerate a comprehensive weekly intelligence debrief based on competitor activities.\n\nKey Context:\n")
	if len(d.org.PriorityRegions) > 0 {
		fmt.Fprintf(&b, "- Primary Markets: %s\n", strings.Join(d.org.PriorityRegions, ", "))
	}
	if len(d.org.VIPCompetitors) > 0 {
		fmt.Fprintf(&b, "- Main Competitors: %s\n", strings.Join(d.org.VIPCompetitors, ", "))
	}
	b.WriteString(`- Threat Levels: 1 (routine) to 5 (major threat in our primary markets)

Structure your debrief with:
1. **Executive Summary** (2-3 sentences on key trends)
2. **High-Priority Threats** (threat level 4-5 items)
3. **Regional Analysis** (primary markets first, then other regions)
4. **Competitor Movements** (grouped by company)
5. **Strategic Recommendations** (actionable insights)

Use clear markdown formatting with headers, bullet points, and emphasis.
Be concise but actionable.

`)

	fmt.Fprintf(&b, "Analyze these %d intelligence items from the past week and generate a strategic debrief:\n\n", len(items))
	for i, it := range items {
		fmt.Fprintf(&b, "%d. [%s] %s\n   Date: %s\n   Threat Level: %d/5\n   Type: %s\n   Region: %s\n   Summary: %s\n   Source: %s\n\n",
			i+1, it.CompetitorName, it.Title,
			it.Date.Format("2006-01-02"), it.ThreatLevel, it.EventType,
			orDefault(it.Region, "Global"), it.Summary, it.SourceURL)
	}
	b.WriteString("Generate a comprehensive weekly intelligence debrief following the structure outlined.")
	return b.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
