package domain

import "time"

// Competitor is a tracked company. Drives which queries are issued and which
// language/region variants apply.
type Competitor struct {
	ID             string
	Name           string
	Website        string
	Description    string
	Industry       string
	Headquarters   string
	Region         string
	KeyMarkets     string
	EmployeeCount  string
	Revenue        string
	FundingStatus  string
	OrganizationID string
	Status         string
}

// CompanyProfile carries enrichment results produced by the grounded model.
type CompanyProfile struct {
	Revenue       string
	EmployeeCount string
	Headquarters  string
	KeyMarkets    string
}

// Organization is the tenant boundary. Supplies prompt parameters and scoping
// filters for every pipeline run; immutable during a run.
type Organization struct {
	ID              string
	Name            string
	Industry        string
	Keywords        []string
	Regions         []string
	VIPCompetitors  []string
	PriorityRegions []string
}

// RawArticle is a transient provider result. Link is the unique key within a
// run; SearchRegion records which provider/region produced it.
type RawArticle struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	Snippet      string `json:"snippet"`
	Date         string `json:"date"`
	SearchRegion string `json:"search_region"`
}

// Provider tags used in RawArticle.SearchRegion beyond the region labels.
const (
	SourceGemini   = "gemini_search"
	SourceFallback = "fallback"
)

// EventDetails is the free-form details blob stored with each news event.
type EventDetails struct {
	Location       string   `json:"location,omitempty"`
	FinancialValue string   `json:"financial_value,omitempty"`
	Partners       []string `json:"partners,omitempty"`
	Products       []string `json:"products,omitempty"`
	Category       string   `json:"category,omitempty"`
}

// NewsItem is one structured event as returned by the extraction model,
// before the persistence gate has validated it.
type NewsItem struct {
	EventType    string       `json:"event_type"`
	Category     string       `json:"category"`
	Title        string       `json:"title"`
	Summary      string       `json:"summary"`
	ThreatLevel  int          `json:"threat_level"`
	ImpactScore  *int         `json:"impact_score,omitempty"`
	Date         string       `json:"date"`
	SourceURL    string       `json:"source_url"`
	Region       string       `json:"region"`
	Details      EventDetails `json:"details"`
	SearchRegion string       `json:"-"`
}

// NewsEvent is the persisted form of a validated news item.
type NewsEvent struct {
	ID           string
	CompetitorID string
	EventType    string
	Category     string
	Title        string
	Summary      string
	ThreatLevel  int
	ImpactScore  *int
	Date         time.Time
	SourceURL    string
	Region       string
	IsRead       bool
	IsStarred    bool
	ExtractedAt  time.Time
	Details      EventDetails
}

// RecentEvent is the slice of an existing event shown to the model so it can
// suppress re-reports of the same underlying story.
type RecentEvent struct {
	Title     string
	EventType string
	Date      time.Time
}

// Extraction is the outcome of analyzing one competitor's article set.
// ExplicitNone is true only when the model itself answered "no relevant
// news"; a zero-item result caused by dropped batches leaves it false.
type Extraction struct {
	Items        []NewsItem
	ExplicitNone bool
}

// DebriefItem is a stored event joined with its competitor name, the unit the
// debrief prompt is built from.
type DebriefItem struct {
	CompetitorName string
	Title          string
	Summary        string
	EventType      string
	Region         string
	ThreatLevel    int
	Date           time.Time
	SourceURL      string
}

// Debrief is one generated strategic intelligence report over a time window.
type Debrief struct {
	ID          string
	Content     string
	PeriodStart time.Time
	PeriodEnd   time.Time
	ItemCount   int
	GeneratedAt time.Time
}

// JobStatus enumerates FetchJob lifecycle states.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// FetchJob is the externally observable state machine of one pipeline run.
type FetchJob struct {
	ID             string
	OrganizationID string
	Status         JobStatus
	CurrentStep    string
	Processed      int
	Total          int
	Error          string
	EmailSent      bool
	StartedAt      time.Time
	CompletedAt    time.Time
}
