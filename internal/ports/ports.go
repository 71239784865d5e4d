package ports

import (
	"context"
	"time"

	"marketintel/internal/domain"
)

// KeywordSearcher is the structured keyword-search backend (provider #1).
type KeywordSearcher interface {
	// SearchNews fans out the topic-template queries across the given
	// regions. Native-language results, if a native config is supplied,
	// are appended after the English-region results and are never capped.
	SearchNews(ctx context.Context, name string, regions []string, native *domain.RegionConfig, daysBack int, industryKeywords []string, website string) ([]domain.RawArticle, error)

	// SearchFallback issues one broad query with just the bare competitor
	// name, used as a last resort when everything else returned nothing.
	SearchFallback(ctx context.Context, name string, daysBack int) ([]domain.RawArticle, error)
}

// GroundedSearcher is the grounded-generation backend (provider #2).
type GroundedSearcher interface {
	// Search asks the generative model, with its web-search tool enabled,
	// for recent coverage and returns only citation-verified articles.
	Search(ctx context.Context, name string, daysBack int) ([]domain.RawArticle, error)

	// DeepSearch narrows the prompt to the competitor's own domain plus
	// trade-press outlets. Runs only as a fallback tier.
	DeepSearch(ctx context.Context, name, website string, daysBack int) ([]domain.RawArticle, error)

	// ResearchCompany looks up revenue, headcount, headquarters, and key
	// markets for competitor metadata enrichment.
	ResearchCompany(ctx context.Context, name, website string) (domain.CompanyProfile, error)
}

// LinkValidator discards dead or overly generic article links. Inconclusive
// checks fail open.
type LinkValidator interface {
	Validate(ctx context.Context, articles []domain.RawArticle) []domain.RawArticle
}

// ArticleGatherer produces the merged, validated article set for one
// competitor (the aggregator).
type ArticleGatherer interface {
	Gather(ctx context.Context, comp domain.Competitor, daysBack int, regions []string, org domain.Organization) ([]domain.RawArticle, error)
}

// OrgContext carries per-tenant prompt parameters into extraction.
type OrgContext struct {
	CompanyName     string
	Industry        string
	VIPCompetitors  []string
	PriorityRegions []string
	RecentEvents    []domain.RecentEvent
}

// Extractor turns raw articles into structured news events via the language
// model.
type Extractor interface {
	Analyze(ctx context.Context, competitorName string, articles []domain.RawArticle, daysBack int, org OrgContext) (domain.Extraction, error)
}

// CompletionClient is the raw language-model call used by the extractor.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompetitorStore reads and mutates competitor rows.
type CompetitorStore interface {
	Active(ctx context.Context, orgID string) ([]domain.Competitor, error)
	All(ctx context.Context) ([]domain.Competitor, error)
	ByIDs(ctx context.Context, ids []string) ([]domain.Competitor, error)
	Upsert(ctx context.Context, comp domain.Competitor) error
	Archive(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, id string, profile domain.CompanyProfile) error
}

// NewsStore persists extracted events and answers the dedup queries the
// persistence gate relies on.
type NewsStore interface {
	HasURL(ctx context.Context, url string) (bool, error)
	HasTitle(ctx context.Context, competitorID, title string) (bool, error)
	AllURLs(ctx context.Context) (map[string]struct{}, error)
	RecentEvents(ctx context.Context, competitorID string, days int) ([]domain.RecentEvent, error)
	LastExtractedAt(ctx context.Context) (time.Time, error)
	Insert(ctx context.Context, event domain.NewsEvent) error
}

// DebriefStore reads the event window a debrief covers and persists the
// generated report.
type DebriefStore interface {
	EventsBetween(ctx context.Context, start, end time.Time, limit int) ([]domain.DebriefItem, error)
	Insert(ctx context.Context, d domain.Debrief) (domain.Debrief, error)
}

// OrganizationStore loads tenant configuration.
type OrganizationStore interface {
	ByID(ctx context.Context, id string) (domain.Organization, error)
	UserEmail(ctx context.Context, orgID string) (string, error)
}

// JobStore tracks FetchJob records.
type JobStore interface {
	Create(ctx context.Context, orgID string) (domain.FetchJob, error)
	Get(ctx context.Context, id string) (domain.FetchJob, error)
	Update(ctx context.Context, job domain.FetchJob) error
}

// EventSink is the persistence gate as seen by the pipeline.
type EventSink interface {
	Save(ctx context.Context, competitorID string, item domain.NewsItem) (bool, string)
}

// Mailer sends run-completion notifications.
type Mailer interface {
	SendCompletion(ctx context.Context, to, orgName string) error
}

// Scheduler controls when recurring refresh runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
