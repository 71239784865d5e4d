// Package storage implements the relational stores over Postgres. Table and
// column names follow the dashboard's Prisma schema, hence the quoted
// camelCase identifiers.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"marketintel/internal/domain"
	"marketintel/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// CompetitorStore reads and writes "Competitor" rows.
type CompetitorStore struct {
	db *sql.DB
}

var _ ports.CompetitorStore = (*CompetitorStore)(nil)

func NewCompetitorStore(db *sql.DB) *CompetitorStore {
	return &CompetitorStore{db: db}
}

const competitorColumns = `id, name, COALESCE(website, ''), COALESCE(description, ''), COALESCE(industry, ''), COALESCE(headquarters, ''), COALESCE(region, ''), COALESCE("keyMarkets", ''), COALESCE("employeeCount", ''), COALESCE(revenue, ''), COALESCE("fundingStatus", ''), COALESCE("organizationId", ''), COALESCE(status, '')`

// Active returns active competitors, optionally scoped to one organization.
// Rows with a NULL status are treated as active.
func (s *CompetitorStore) Active(ctx context.Context, orgID string) ([]domain.Competitor, error) {
	b := psql.Select(competitorColumns).
		From(`"Competitor"`).
		Where(sq.Or{sq.Eq{"status": "active"}, sq.Eq{"status": nil}})
	if orgID != "" {
		b = b.Where(sq.Eq{`"organizationId"`: orgID})
	}
	return s.query(ctx, b)
}

// All returns every competitor row regardless of status.
func (s *CompetitorStore) All(ctx context.Context) ([]domain.Competitor, error) {
	return s.query(ctx, psql.Select(competitorColumns).From(`"Competitor"`))
}

// ByIDs returns the competitors matching the given ids, in name order.
func (s *CompetitorStore) ByIDs(ctx context.Context, ids []string) ([]domain.Competitor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b := psql.Select(competitorColumns).
		From(`"Competitor"`).
		Where(sq.Expr("id = ANY(?)", pq.StringArray(ids)))
	return s.query(ctx, b)
}

func (s *CompetitorStore) query(ctx context.Context, b sq.SelectBuilder) ([]domain.Competitor, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build competitor query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query competitors: %w", err)
	}
	defer rows.Close()

	var out []domain.Competitor
	for rows.Next() {
		var c domain.Competitor
		if err := rows.Scan(&c.ID, &c.Name, &c.Website, &c.Description, &c.Industry,
			&c.Headquarters, &c.Region, &c.KeyMarkets, &c.EmployeeCount,
			&c.Revenue, &c.FundingStatus, &c.OrganizationID, &c.Status); err != nil {
			return nil, fmt.Errorf("scan competitor: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Upsert updates a competitor by name, inserting it when absent. Either way
// the row ends up active.
func (s *CompetitorStore) Upsert(ctx context.Context, comp domain.Competitor) error {
	query, args, err := psql.Update(`"Competitor"`).
		Set("website", nullable(comp.Website)).
		Set("description", nullable(comp.Description)).
		Set("industry", nullable(comp.Industry)).
		Set("headquarters", nullable(comp.Headquarters)).
		Set(`"keyMarkets"`, nullable(comp.KeyMarkets)).
		Set("region", nullable(comp.Region)).
		Set(`"employeeCount"`, nullable(comp.EmployeeCount)).
		Set("revenue", nullable(comp.Revenue)).
		Set(`"fundingStatus"`, nullable(comp.FundingStatus)).
		Set("status", "active").
		Set(`"updatedAt"`, sq.Expr("NOW()")).
		Where(sq.Eq{"name": comp.Name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build competitor update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update competitor: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	query, args, err = psql.Insert(`"Competitor"`).
		Columns("id", "name", "website", "description", "industry", "headquarters",
			`"keyMarkets"`, "region", `"employeeCount"`, "revenue", `"fundingStatus"`,
			"status", `"createdAt"`, `"updatedAt"`).
		Values(newCUID(), comp.Name, nullable(comp.Website), nullable(comp.Description),
			nullable(comp.Industry), nullable(comp.Headquarters), nullable(comp.KeyMarkets),
			nullable(comp.Region), nullable(comp.EmployeeCount), nullable(comp.Revenue),
			nullable(comp.FundingStatus), "active", sq.Expr("NOW()"), sq.Expr("NOW()")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build competitor insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert competitor: %w", err)
	}
	return nil
}

// Archive marks a competitor as archived without touching its news.
func (s *CompetitorStore) Archive(ctx context.Context, id string) error {
	query, args, err := psql.Update(`"Competitor"`).
		Set("status", "archived").
		Set(`"updatedAt"`, sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build archive update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("archive competitor: %w", err)
	}
	return nil
}

// UpdateProfile writes enrichment results onto an existing row.
func (s *CompetitorStore) UpdateProfile(ctx context.Context, id string, profile domain.CompanyProfile) error {
	query, args, err := psql.Update(`"Competitor"`).
		Set("revenue", nullable(profile.Revenue)).
		Set(`"employeeCount"`, nullable(profile.EmployeeCount)).
		Set("headquarters", nullable(profile.Headquarters)).
		Set(`"keyMarkets"`, nullable(profile.KeyMarkets)).
		Set(`"updatedAt"`, sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build profile update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// NewsStore reads and writes "CompetitorNews" rows.
type NewsStore struct {
	db *sql.DB
}

var _ ports.NewsStore = (*NewsStore)(nil)

func NewNewsStore(db *sql.DB) *NewsStore {
	return &NewsStore{db: db}
}

func (s *NewsStore) HasURL(ctx context.Context, url string) (bool, error) {
	query, args, err := psql.Select("id").
		From(`"CompetitorNews"`).
		Where(sq.Eq{`"sourceUrl"`: url}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build url check: %w", err)
	}
	return s.exists(ctx, query, args)
}

func (s *NewsStore) HasTitle(ctx context.Context, competitorID, title string) (bool, error) {
	query, args, err := psql.Select("id").
		From(`"CompetitorNews"`).
		Where(sq.Eq{`"competitorId"`: competitorID, "title": title}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build title check: %w", err)
	}
	return s.exists(ctx, query, args)
}

func (s *NewsStore) exists(ctx context.Context, query string, args []any) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return true, nil
}

// AllURLs loads every stored source URL, used to pre-filter known articles
// before extraction.
func (s *NewsStore) AllURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT "sourceUrl" FROM "CompetitorNews"`)
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		out[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// RecentEvents returns events stored for a competitor in the last N days,
// newest first. Feeds the extraction prompt's dedup block.
func (s *NewsStore) RecentEvents(ctx context.Context, competitorID string, days int) ([]domain.RecentEvent, error) {
	query, args, err := psql.Select("title", `"eventType"`, "date").
		From(`"CompetitorNews"`).
		Where(sq.Eq{`"competitorId"`: competitorID}).
		Where(sq.Expr(`date > NOW() - ? * INTERVAL '1 day'`, days)).
		OrderBy("date DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent events query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var out []domain.RecentEvent
	for rows.Next() {
		var ev domain.RecentEvent
		if err := rows.Scan(&ev.Title, &ev.EventType, &ev.Date); err != nil {
			return nil, fmt.Errorf("scan recent event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// LastExtractedAt returns the newest extraction timestamp across all events,
// or the zero time when the table is empty.
func (s *NewsStore) LastExtractedAt(ctx context.Context) (time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT MAX("extractedAt") FROM "CompetitorNews"`).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("query last extraction: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

// detailsBlob is the JSON stored in the details column. Category and impact
// score live here so no schema migration is needed.
type detailsBlob struct {
	Location       string   `json:"location,omitempty"`
	FinancialValue string   `json:"financial_value,omitempty"`
	Partners       []string `json:"partners,omitempty"`
	Products       []string `json:"products,omitempty"`
	Category       string   `json:"category,omitempty"`
	ImpactScore    *int     `json:"impact_score,omitempty"`
}

func (s *NewsStore) Insert(ctx context.Context, event domain.NewsEvent) error {
	details, err := json.Marshal(detailsBlob{
		Location:       event.Details.Location,
		FinancialValue: event.Details.FinancialValue,
		Partners:       event.Details.Partners,
		Products:       event.Details.Products,
		Category:       firstNonEmpty(event.Category, event.Details.Category),
		ImpactScore:    event.ImpactScore,
	})
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	query, args, err := psql.Insert(`"CompetitorNews"`).
		Columns("id", `"competitorId"`, `"eventType"`, "date", "title", "summary",
			`"threatLevel"`, "details", `"sourceUrl"`, `"isRead"`, `"isStarred"`,
			`"extractedAt"`, "region").
		Values(event.ID, event.CompetitorID, event.EventType, event.Date, event.Title,
			event.Summary, event.ThreatLevel, string(details), event.SourceURL,
			event.IsRead, event.IsStarred, event.ExtractedAt, event.Region).
		ToSql()
	if err != nil {
		return fmt.Errorf("build news insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert news event: %w", err)
	}
	return nil
}

// OrganizationStore reads "Organization" and "UserProfile" rows.
type OrganizationStore struct {
	db *sql.DB
}

var _ ports.OrganizationStore = (*OrganizationStore)(nil)

func NewOrganizationStore(db *sql.DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

// ByID loads one organization. Keywords are stored as a comma-separated
// string; the array-valued columns use native Postgres arrays.
func (s *OrganizationStore) ByID(ctx context.Context, id string) (domain.Organization, error) {
	query, args, err := psql.Select("id", "name", "COALESCE(industry, '')",
		"COALESCE(keywords, '')", "regions", `"vipCompetitors"`, `"priorityRegions"`).
		From(`"Organization"`).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Organization{}, fmt.Errorf("build organization query: %w", err)
	}

	var (
		org      domain.Organization
		keywords string
		regions  pq.StringArray
		vips     pq.StringArray
		priority pq.StringArray
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&org.ID, &org.Name, &org.Industry, &keywords, &regions, &vips, &priority)
	if err != nil {
		return domain.Organization{}, fmt.Errorf("query organization %s: %w", id, err)
	}

	org.Keywords = splitList(keywords)
	org.Regions = regions
	org.VIPCompetitors = vips
	org.PriorityRegions = priority
	return org, nil
}

// UserEmail returns the email of any user in the organization.
func (s *OrganizationStore) UserEmail(ctx context.Context, orgID string) (string, error) {
	query, args, err := psql.Select("email").
		From(`"UserProfile"`).
		Where(sq.Eq{`"organizationId"`: orgID}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build user email query: %w", err)
	}

	var email string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&email); err != nil {
		return "", fmt.Errorf("query user email: %w", err)
	}
	return email, nil
}

// JobStore reads and writes "FetchJob" rows.
type JobStore struct {
	db *sql.DB
}

var _ ports.JobStore = (*JobStore)(nil)

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, orgID string) (domain.FetchJob, error) {
	job := domain.FetchJob{
		ID:             newCUID(),
		OrganizationID: orgID,
		Status:         domain.JobPending,
		StartedAt:      time.Now().UTC(),
	}
	query, args, err := psql.Insert(`"FetchJob"`).
		Columns("id", `"organizationId"`, "status", "processed", "total",
			`"emailSent"`, `"startedAt"`).
		Values(job.ID, orgID, string(job.Status), 0, 0, false, job.StartedAt).
		ToSql()
	if err != nil {
		return domain.FetchJob{}, fmt.Errorf("build job insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.FetchJob{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (s *JobStore) Get(ctx context.Context, id string) (domain.FetchJob, error) {
	query, args, err := psql.Select("id", `"organizationId"`, "status",
		`COALESCE("currentStep", '')`, "processed", "total", "COALESCE(error, '')",
		`"emailSent"`, `"startedAt"`, `"completedAt"`).
		From(`"FetchJob"`).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.FetchJob{}, fmt.Errorf("build job query: %w", err)
	}

	var (
		job       domain.FetchJob
		status    string
		completed sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&job.ID, &job.OrganizationID, &status, &job.CurrentStep,
			&job.Processed, &job.Total, &job.Error, &job.EmailSent,
			&job.StartedAt, &completed)
	if err != nil {
		return domain.FetchJob{}, fmt.Errorf("query job %s: %w", id, err)
	}
	job.Status = domain.JobStatus(status)
	if completed.Valid {
		job.CompletedAt = completed.Time
	}
	return job, nil
}

func (s *JobStore) Update(ctx context.Context, job domain.FetchJob) error {
	b := psql.Update(`"FetchJob"`).
		Set("status", string(job.Status)).
		Set(`"currentStep"`, job.CurrentStep).
		Set("processed", job.Processed).
		Set("total", job.Total).
		Set("error", nullable(job.Error)).
		Set(`"emailSent"`, job.EmailSent).
		Where(sq.Eq{"id": job.ID})
	if !job.CompletedAt.IsZero() {
		b = b.Set(`"completedAt"`, job.CompletedAt)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build job update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// DebriefStore reads the event window a debrief covers and writes "Debrief"
// rows.
type DebriefStore struct {
	db *sql.DB
}

var _ ports.DebriefStore = (*DebriefStore)(nil)

func NewDebriefStore(db *sql.DB) *DebriefStore {
	return &DebriefStore{db: db}
}

// EventsBetween returns events in [start, end] joined with their competitor
// name, highest threat first.
func (s *DebriefStore) EventsBetween(ctx context.Context, start, end time.Time, limit int) ([]domain.DebriefItem, error) {
	query, args, err := psql.Select("c.name", "cn.title", "cn.summary",
		`cn."eventType"`, `COALESCE(cn.region, '')`, `cn."threatLevel"`,
		"cn.date", `cn."sourceUrl"`).
		From(`"CompetitorNews" cn`).
		Join(`"Competitor" c ON cn."competitorId" = c.id`).
		Where(sq.GtOrEq{"cn.date": start}).
		Where(sq.LtOrEq{"cn.date": end}).
		OrderBy(`cn."threatLevel" DESC`).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build debrief events query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query debrief events: %w", err)
	}
	defer rows.Close()

	var out []domain.DebriefItem
	for rows.Next() {
		var it domain.DebriefItem
		if err := rows.Scan(&it.CompetitorName, &it.Title, &it.Summary,
			&it.EventType, &it.Region, &it.ThreatLevel, &it.Date, &it.SourceURL); err != nil {
			return nil, fmt.Errorf("scan debrief event: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Insert stores a generated debrief, assigning its ID and generation time.
func (s *DebriefStore) Insert(ctx context.Context, d domain.Debrief) (domain.Debrief, error) {
	d.ID = newCUID()
	d.GeneratedAt = time.Now().UTC()

	query, args, err := psql.Insert(`"Debrief"`).
		Columns("id", "content", `"periodStart"`, `"periodEnd"`, `"itemCount"`, `"generatedAt"`).
		Values(d.ID, d.Content, d.PeriodStart, d.PeriodEnd, d.ItemCount, d.GeneratedAt).
		ToSql()
	if err != nil {
		return domain.Debrief{}, fmt.Errorf("build debrief insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Debrief{}, fmt.Errorf("insert debrief: %w", err)
	}
	return d, nil
}

func newCUID() string {
	return "c" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
