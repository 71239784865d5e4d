// Package usecase contains the run orchestration: gathering articles per
// competitor, extracting events and pushing them through the persistence
// gate.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"marketintel/internal/domain"
	"marketintel/internal/jobs"
	"marketintel/internal/metrics"
	"marketintel/internal/persist"
	"marketintel/internal/ports"
)

// defaultRegions are searched when the organization has no region config.
var defaultRegions = []string{"global", "mena", "europe"}

// PipelineOptions bounds batching across competitors. FallbackOrg supplies
// the configured tenant context (keywords, regions, priority competitors)
// for runs that have no Organization row to load.
type PipelineOptions struct {
	AnthropicKeySet bool
	CompetitorBatch int
	CooldownMin     time.Duration
	CooldownMax     time.Duration
	DedupWindowDays int
	FallbackOrg     domain.Organization
}

// RunParams narrows one refresh run.
type RunParams struct {
	OrgID          string
	Days           int
	CompetitorName string
	Limit          int
	Job            *domain.FetchJob
}

// Pipeline drives a full refresh run over all active competitors.
type Pipeline struct {
	competitors ports.CompetitorStore
	news        ports.NewsStore
	orgs        ports.OrganizationStore
	gatherer    ports.ArticleGatherer
	extractor   ports.Extractor
	sink        ports.EventSink
	tracker     *jobs.Tracker
	opts        PipelineOptions
	logger      *slog.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration)
	randInt     func(n int) int
}

func NewPipeline(
	competitors ports.CompetitorStore,
	news ports.NewsStore,
	orgs ports.OrganizationStore,
	gatherer ports.ArticleGatherer,
	extractor ports.Extractor,
	sink ports.EventSink,
	tracker *jobs.Tracker,
	opts PipelineOptions,
	logger *slog.Logger,
) *Pipeline {
	if opts.CompetitorBatch <= 0 {
		opts.CompetitorBatch = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		competitors: competitors,
		news:        news,
		orgs:        orgs,
		gatherer:    gatherer,
		extractor:   extractor,
		sink:        sink,
		tracker:     tracker,
		opts:        opts,
		logger:      logger.With("component", "pipeline"),
		now:         time.Now,
		sleep:       sleepCtx,
		randInt:     rand.Intn,
	}
}

// RefreshAll runs the pipeline for every active competitor of the
// organization. Returns the number of events saved. The only fatal condition
// is a missing extraction credential; per-competitor failures are logged and
// skipped.
func (p *Pipeline) RefreshAll(ctx context.Context, params RunParams) (int, error) {
	if !p.opts.AnthropicKeySet {
		msg := "extraction API key not configured"
		p.tracker.Fail(ctx, params.Job, msg)
		return 0, fmt.Errorf("%s", msg)
	}

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	org := p.opts.FallbackOrg
	if params.OrgID != "" {
		loaded, err := p.orgs.ByID(ctx, params.OrgID)
		if err != nil {
			p.logger.Warn("organization lookup failed, using configured org context",
				"org_id", params.OrgID, "error", err)
		} else {
			org = loaded
		}
	}

	competitors, err := p.competitors.Active(ctx, params.OrgID)
	if err != nil {
		p.tracker.Fail(ctx, params.Job, err.Error())
		return 0, fmt.Errorf("load competitors: %w", err)
	}
	competitors = p.selectCompetitors(competitors, org, params)
	if len(competitors) == 0 {
		p.tracker.Completed(ctx, params.Job, 0)
		return 0, nil
	}

	daysBack := params.Days
	if daysBack == 0 {
		daysBack = p.autoDayRange(ctx)
	}

	knownURLs, err := p.news.AllURLs(ctx)
	if err != nil {
		p.logger.Warn("known-url preload failed", "error", err)
		knownURLs = nil
	}

	regions := regionsFor(org)
	total := len(competitors)
	p.logger.Info("starting refresh run",
		"competitors", total, "days_back", daysBack, "regions", regions)
	p.tracker.Running(ctx, params.Job, "", 0, total)

	saved := 0
	for start := 0; start < total; start += p.opts.CompetitorBatch {
		if start > 0 {
			p.sleep(ctx, p.cooldown())
		}
		if ctx.Err() != nil {
			return saved, ctx.Err()
		}

		end := min(start+p.opts.CompetitorBatch, total)
		batch := competitors[start:end]
		p.tracker.Running(ctx, params.Job, batch[0].Name, start, total)

		counts := make([]int, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, comp := range batch {
			g.Go(func() error {
				counts[i] = p.processCompetitor(gctx, comp, daysBack, regions, org, knownURLs)
				return nil
			})
		}
		_ = g.Wait()

		for i, comp := range batch {
			saved += counts[i]
			metrics.CompetitorsProcessed.Inc()
			p.tracker.Running(ctx, params.Job, comp.Name, start+i+1, total)
		}
	}

	p.tracker.Completed(ctx, params.Job, total)
	p.logger.Info("refresh run finished", "saved", saved, "competitors", total)
	return saved, nil
}

// ProcessCompetitor runs gather, extraction and persistence for a single
// competitor and returns the number of events saved. Every failure degrades
// to zero saved events.
func (p *Pipeline) ProcessCompetitor(ctx context.Context, comp domain.Competitor, daysBack int, org domain.Organization, knownURLs map[string]struct{}) int {
	return p.processCompetitor(ctx, comp, daysBack, regionsFor(org), org, knownURLs)
}

func (p *Pipeline) processCompetitor(ctx context.Context, comp domain.Competitor, daysBack int, regions []string, org domain.Organization, knownURLs map[string]struct{}) (saved int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("competitor task panicked", "competitor", comp.Name, "panic", r)
			saved = 0
		}
	}()

	articles, err := p.gatherer.Gather(ctx, comp, daysBack, regions, org)
	if err != nil {
		p.logger.Warn("gather failed", "competitor", comp.Name, "error", err)
		return 0
	}
	if len(articles) == 0 {
		p.logger.Info("no articles found", "competitor", comp.Name)
		return 0
	}

	if len(knownURLs) > 0 {
		fresh := articles[:0:0]
		for _, a := range articles {
			if _, known := knownURLs[a.Link]; !known {
				fresh = append(fresh, a)
			}
		}
		if len(fresh) == 0 {
			p.logger.Info("all articles already known", "competitor", comp.Name)
			return 0
		}
		articles = fresh
	}

	recent, err := p.news.RecentEvents(ctx, comp.ID, p.opts.DedupWindowDays)
	if err != nil {
		p.logger.Warn("recent-event lookup failed", "competitor", comp.Name, "error", err)
	}

	extraction, err := p.extractor.Analyze(ctx, comp.Name, articles, daysBack, ports.OrgContext{
		CompanyName:     org.Name,
		Industry:        org.Industry,
		VIPCompetitors:  org.VIPCompetitors,
		PriorityRegions: org.PriorityRegions,
		RecentEvents:    recent,
	})
	if err != nil {
		p.logger.Warn("extraction failed", "competitor", comp.Name, "error", err)
		return 0
	}
	if extraction.ExplicitNone {
		p.logger.Info("model reported no relevant news", "competitor", comp.Name)
		return 0
	}

	for _, item := range extraction.Items {
		ok, reason := p.sink.Save(ctx, comp.ID, item)
		if ok {
			saved++
		} else {
			p.logger.Debug("event skipped", "competitor", comp.Name, "reason", reason)
		}
	}

	// Articles existed but extraction produced nothing and the model never
	// said "no relevant news": record one minimal event so the run leaves
	// a trace for this competitor.
	if len(extraction.Items) == 0 {
		if item, ok := persist.FallbackItem(articles); ok {
			if saved2, reason := p.sink.Save(ctx, comp.ID, item); saved2 {
				saved++
			} else {
				p.logger.Debug("fallback event skipped", "competitor", comp.Name, "reason", reason)
			}
		}
	}

	p.logger.Info("competitor processed", "competitor", comp.Name, "articles", len(articles), "saved", saved)
	return saved
}

// selectCompetitors applies the name filter, VIP-first ordering and the
// optional limit.
func (p *Pipeline) selectCompetitors(competitors []domain.Competitor, org domain.Organization, params RunParams) []domain.Competitor {
	if params.CompetitorName != "" {
		needle := strings.ToLower(params.CompetitorName)
		filtered := competitors[:0:0]
		for _, c := range competitors {
			if strings.Contains(strings.ToLower(c.Name), needle) {
				filtered = append(filtered, c)
			}
		}
		competitors = filtered
	}

	if len(org.VIPCompetitors) > 0 {
		rank := make(map[string]int, len(org.VIPCompetitors))
		for i, name := range org.VIPCompetitors {
			rank[name] = i
		}
		vips := make([]domain.Competitor, 0, len(competitors))
		rest := make([]domain.Competitor, 0, len(competitors))
		for _, c := range competitors {
			if _, ok := rank[c.Name]; ok {
				vips = append(vips, c)
			} else {
				rest = append(rest, c)
			}
		}
		for i := 1; i < len(vips); i++ {
			for j := i; j > 0 && rank[vips[j].Name] < rank[vips[j-1].Name]; j-- {
				vips[j], vips[j-1] = vips[j-1], vips[j]
			}
		}
		competitors = append(vips, rest...)
	}

	if params.Limit > 0 && len(competitors) > params.Limit {
		competitors = competitors[:params.Limit]
	}
	return competitors
}

// autoDayRange derives the search window from the time of the last stored
// extraction, clamped to [1,14] days. A cold store gets the maximum window.
func (p *Pipeline) autoDayRange(ctx context.Context) int {
	last, err := p.news.LastExtractedAt(ctx)
	if err != nil || last.IsZero() {
		return 14
	}
	days := int(p.now().Sub(last).Hours()/24) + 1
	return min(max(days, 1), 14)
}

func (p *Pipeline) cooldown() time.Duration {
	if p.opts.CooldownMax <= p.opts.CooldownMin {
		return p.opts.CooldownMin
	}
	spread := int(p.opts.CooldownMax - p.opts.CooldownMin)
	return p.opts.CooldownMin + time.Duration(p.randInt(spread))
}

// regionsFor maps the organization's region labels onto the search region
// keys, defaulting to the global/mena/europe trio.
func regionsFor(org domain.Organization) []string {
	if len(org.Regions) == 0 {
		return defaultRegions
	}
	var out []string
	seen := make(map[string]struct{})
	for _, r := range org.Regions {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(r)), " ", "_")
		if _, ok := domain.Regions[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	if len(out) == 0 {
		return defaultRegions
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
