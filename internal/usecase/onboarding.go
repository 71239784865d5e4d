package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/jobs"
	"marketintel/internal/persist"
	"marketintel/internal/ports"
)

// historicalEpoch is where phase-1 onboarding starts looking back to.
var historicalEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// OnboardParams selects which competitors to onboard.
type OnboardParams struct {
	CompetitorIDs []string
	OrgID         string
	Job           *domain.FetchJob
}

// Onboarding runs the first-contact sequence for new competitors: metadata
// enrichment, a historical news backfill and a recent-news detail pass.
type Onboarding struct {
	competitors ports.CompetitorStore
	news        ports.NewsStore
	orgs        ports.OrganizationStore
	grounded    ports.GroundedSearcher
	gatherer    ports.ArticleGatherer
	extractor   ports.Extractor
	sink        ports.EventSink
	jobStore    ports.JobStore
	tracker     *jobs.Tracker
	mailer      ports.Mailer
	logger      *slog.Logger
	now         func() time.Time
}

func NewOnboarding(
	competitors ports.CompetitorStore,
	news ports.NewsStore,
	orgs ports.OrganizationStore,
	grounded ports.GroundedSearcher,
	gatherer ports.ArticleGatherer,
	extractor ports.Extractor,
	sink ports.EventSink,
	jobStore ports.JobStore,
	tracker *jobs.Tracker,
	mailer ports.Mailer,
	logger *slog.Logger,
) *Onboarding {
	if logger == nil {
		logger = slog.Default()
	}
	return &Onboarding{
		competitors: competitors,
		news:        news,
		orgs:        orgs,
		grounded:    grounded,
		gatherer:    gatherer,
		extractor:   extractor,
		sink:        sink,
		jobStore:    jobStore,
		tracker:     tracker,
		mailer:      mailer,
		logger:      logger.With("component", "onboarding"),
		now:         time.Now,
	}
}

// Run onboards the selected competitors sequentially. Individual competitor
// failures are logged and skipped; the job completes either way.
func (o *Onboarding) Run(ctx context.Context, params OnboardParams) error {
	var (
		competitors []domain.Competitor
		err         error
	)
	switch {
	case len(params.CompetitorIDs) > 0:
		competitors, err = o.competitors.ByIDs(ctx, params.CompetitorIDs)
	case params.OrgID != "":
		competitors, err = o.competitors.Active(ctx, params.OrgID)
	default:
		return fmt.Errorf("onboarding needs competitor ids or an organization id")
	}
	if err != nil {
		o.tracker.Fail(ctx, params.Job, err.Error())
		return fmt.Errorf("load competitors: %w", err)
	}
	if len(competitors) == 0 {
		o.logger.Warn("no competitors matched onboarding request", "org_id", params.OrgID)
		o.tracker.Completed(ctx, params.Job, 0)
		return nil
	}

	var org domain.Organization
	if params.OrgID != "" {
		if loaded, err := o.orgs.ByID(ctx, params.OrgID); err != nil {
			o.logger.Warn("organization lookup failed", "org_id", params.OrgID, "error", err)
		} else {
			org = loaded
		}
	}

	total := len(competitors)
	o.logger.Info("starting onboarding", "competitors", total)
	for i, comp := range competitors {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.tracker.Running(ctx, params.Job, comp.Name, i, total)
		if err := o.processCompetitor(ctx, comp, org, params.Job, i, total); err != nil {
			o.logger.Error("onboarding competitor failed", "competitor", comp.Name, "error", err)
		}
	}

	o.tracker.Completed(ctx, params.Job, total)
	if params.Job != nil && params.OrgID != "" {
		o.sendCompletionEmail(ctx, params.OrgID, params.Job.ID)
	}
	o.logger.Info("onboarding finished", "competitors", total)
	return nil
}

func (o *Onboarding) processCompetitor(ctx context.Context, comp domain.Competitor, org domain.Organization, job *domain.FetchJob, processed, total int) error {
	phase := func(label string) {
		o.tracker.Running(ctx, job, fmt.Sprintf("%s (%s)", comp.Name, label), processed, total)
	}

	phase("Enriching Data")
	if err := o.Enrich(ctx, comp); err != nil {
		o.logger.Warn("enrichment failed", "competitor", comp.Name, "error", err)
	}

	regions := regionsFor(org)
	orgCtx := ports.OrgContext{
		CompanyName:     org.Name,
		Industry:        org.Industry,
		VIPCompetitors:  org.VIPCompetitors,
		PriorityRegions: org.PriorityRegions,
	}

	// Phase 1: historical backfill from the start of the tracking window.
	historicalDays := int(o.now().UTC().Sub(historicalEpoch).Hours()/24) + 1
	phase("Fetching Historical News")
	articles, err := o.gatherer.Gather(ctx, comp, historicalDays, regions, org)
	if err != nil {
		return fmt.Errorf("historical gather: %w", err)
	}

	phase1URLs := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		phase1URLs[a.Link] = struct{}{}
	}

	saved := 0
	if len(articles) > 0 {
		phase(fmt.Sprintf("Analyzing %d Articles", len(articles)))
		saved += o.analyzeAndSave(ctx, comp, articles, historicalDays, orgCtx, true)
	}

	// Phase 2: a tighter recent pass often surfaces detail the broad
	// historical window misses.
	phase("Fetching Recent News")
	recent, err := o.gatherer.Gather(ctx, comp, 7, regions, org)
	if err != nil {
		o.logger.Warn("recent gather failed", "competitor", comp.Name, "error", err)
		recent = nil
	}
	fresh := recent[:0:0]
	for _, a := range recent {
		if _, seen := phase1URLs[a.Link]; !seen {
			fresh = append(fresh, a)
		}
	}
	if len(fresh) > 0 {
		phase(fmt.Sprintf("Analyzing %d Recent Items", len(fresh)))
		saved += o.analyzeAndSave(ctx, comp, fresh, 7, orgCtx, false)
	}

	o.logger.Info("competitor onboarded", "competitor", comp.Name, "saved", saved)
	return nil
}

func (o *Onboarding) analyzeAndSave(ctx context.Context, comp domain.Competitor, articles []domain.RawArticle, daysBack int, orgCtx ports.OrgContext, allowFallback bool) int {
	extraction, err := o.extractor.Analyze(ctx, comp.Name, articles, daysBack, orgCtx)
	if err != nil {
		o.logger.Warn("extraction failed", "competitor", comp.Name, "error", err)
		return 0
	}
	if extraction.ExplicitNone {
		return 0
	}

	saved := 0
	for _, item := range extraction.Items {
		if ok, _ := o.sink.Save(ctx, comp.ID, item); ok {
			saved++
		}
	}
	if allowFallback && len(extraction.Items) == 0 {
		if item, ok := persist.FallbackItem(articles); ok {
			if stored, _ := o.sink.Save(ctx, comp.ID, item); stored {
				saved++
			}
		}
	}
	return saved
}

// Enrich asks the grounded model for company metadata and writes it onto the
// competitor row. Empty fields are left untouched.
func (o *Onboarding) Enrich(ctx context.Context, comp domain.Competitor) error {
	profile, err := o.grounded.ResearchCompany(ctx, comp.Name, comp.Website)
	if err != nil {
		return fmt.Errorf("research company: %w", err)
	}
	if profile == (domain.CompanyProfile{}) {
		return nil
	}
	if err := o.competitors.UpdateProfile(ctx, comp.ID, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	o.logger.Info("competitor enriched", "competitor", comp.Name)
	return nil
}

// EnrichByID loads one competitor and enriches it, for the standalone
// enrichment endpoint.
func (o *Onboarding) EnrichByID(ctx context.Context, competitorID string) error {
	comps, err := o.competitors.ByIDs(ctx, []string{competitorID})
	if err != nil {
		return fmt.Errorf("load competitor: %w", err)
	}
	if len(comps) == 0 {
		return fmt.Errorf("competitor %s not found", competitorID)
	}
	return o.Enrich(ctx, comps[0])
}

// sendCompletionEmail notifies the organization's user once per job. The
// emailSent flag makes retried completions idempotent.
func (o *Onboarding) sendCompletionEmail(ctx context.Context, orgID, jobID string) {
	if o.mailer == nil || o.jobStore == nil {
		return
	}
	job, err := o.jobStore.Get(ctx, jobID)
	if err != nil {
		o.logger.Warn("job lookup for email failed", "job_id", jobID, "error", err)
		return
	}
	if job.EmailSent {
		return
	}

	org, err := o.orgs.ByID(ctx, orgID)
	if err != nil {
		o.logger.Warn("organization lookup for email failed", "org_id", orgID, "error", err)
		return
	}
	email, err := o.orgs.UserEmail(ctx, orgID)
	if err != nil || email == "" {
		o.logger.Warn("no user email for organization", "org_id", orgID, "error", err)
		return
	}

	if err := o.mailer.SendCompletion(ctx, email, org.Name); err != nil {
		o.logger.Warn("completion email failed", "error", err)
		return
	}
	job.EmailSent = true
	if err := o.jobStore.Update(ctx, job); err != nil {
		o.logger.Warn("email flag update failed", "job_id", jobID, "error", err)
	}
	o.logger.Info("completion email sent", "to", email)
}
