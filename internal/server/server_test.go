package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/jobs"
	"marketintel/internal/logging"
	"marketintel/internal/ports"
	"marketintel/internal/usecase"
)

type stubCompetitors struct{}

func (stubCompetitors) Active(context.Context, string) ([]domain.Competitor, error) { return nil, nil }
func (stubCompetitors) All(context.Context) ([]domain.Competitor, error)            { return nil, nil }
func (stubCompetitors) ByIDs(context.Context, []string) ([]domain.Competitor, error) {
	return nil, nil
}
func (stubCompetitors) Upsert(context.Context, domain.Competitor) error { return nil }
func (stubCompetitors) Archive(context.Context, string) error           { return nil }
func (stubCompetitors) UpdateProfile(context.Context, string, domain.CompanyProfile) error {
	return nil
}

type stubNews struct{}

func (stubNews) HasURL(context.Context, string) (bool, error)           { return false, nil }
func (stubNews) HasTitle(context.Context, string, string) (bool, error) { return false, nil }
func (stubNews) AllURLs(context.Context) (map[string]struct{}, error)   { return nil, nil }
func (stubNews) RecentEvents(context.Context, string, int) ([]domain.RecentEvent, error) {
	return nil, nil
}
func (stubNews) LastExtractedAt(context.Context) (time.Time, error) { return time.Time{}, nil }
func (stubNews) Insert(context.Context, domain.NewsEvent) error     { return nil }

type stubOrgs struct{}

func (stubOrgs) ByID(context.Context, string) (domain.Organization, error) {
	return domain.Organization{}, nil
}
func (stubOrgs) UserEmail(context.Context, string) (string, error) { return "", nil }

type stubGatherer struct{}

func (stubGatherer) Gather(context.Context, domain.Competitor, int, []string, domain.Organization) ([]domain.RawArticle, error) {
	return nil, nil
}

type stubGrounded struct{}

func (stubGrounded) Search(context.Context, string, int) ([]domain.RawArticle, error) {
	return nil, nil
}
func (stubGrounded) DeepSearch(context.Context, string, string, int) ([]domain.RawArticle, error) {
	return nil, nil
}
func (stubGrounded) ResearchCompany(context.Context, string, string) (domain.CompanyProfile, error) {
	return domain.CompanyProfile{}, nil
}

type stubExtractor struct{}

func (stubExtractor) Analyze(context.Context, string, []domain.RawArticle, int, ports.OrgContext) (domain.Extraction, error) {
	return domain.Extraction{}, nil
}

type stubSink struct{}

func (stubSink) Save(context.Context, string, domain.NewsItem) (bool, string) { return true, "saved" }

type countingJobStore struct {
	created atomic.Int32
}

func (s *countingJobStore) Create(_ context.Context, orgID string) (domain.FetchJob, error) {
	s.created.Add(1)
	return domain.FetchJob{ID: "job-1", OrganizationID: orgID}, nil
}
func (s *countingJobStore) Get(context.Context, string) (domain.FetchJob, error) {
	return domain.FetchJob{ID: "job-1"}, nil
}
func (s *countingJobStore) Update(context.Context, domain.FetchJob) error { return nil }

func newTestServer(jobStore ports.JobStore) *Server {
	logger := logging.NewWithWriter(io.Discard, "error")
	tracker := jobs.NewTracker(nil, "", logger)
	pipeline := usecase.NewPipeline(stubCompetitors{}, stubNews{}, stubOrgs{},
		stubGatherer{}, stubExtractor{}, stubSink{}, tracker,
		usecase.PipelineOptions{AnthropicKeySet: true}, logger)
	onboarding := usecase.NewOnboarding(stubCompetitors{}, stubNews{}, stubOrgs{},
		stubGrounded{}, stubGatherer{}, stubExtractor{}, stubSink{}, jobStore,
		tracker, nil, logger)
	return New(pipeline, onboarding, jobStore, logger)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&countingJobStore{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRefreshNewsAccepted(t *testing.T) {
	t.Parallel()

	jobStore := &countingJobStore{}
	srv := newTestServer(jobStore)

	req := httptest.NewRequest(http.MethodPost, "/refresh-news",
		strings.NewReader(`{"orgId":"org-1","days":3}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if jobStore.created.Load() != 1 {
		t.Fatalf("job records created = %d, want 1", jobStore.created.Load())
	}
}

func TestRefreshNewsRequiresOrg(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&countingJobStore{})
	req := httptest.NewRequest(http.MethodPost, "/refresh-news", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProcessOnboardingRequiresSelector(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&countingJobStore{})
	req := httptest.NewRequest(http.MethodPost, "/process-onboarding", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestEnrichCompetitorAccepted(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&countingJobStore{})
	req := httptest.NewRequest(http.MethodPost, "/enrich-competitor",
		strings.NewReader(`{"competitorId":"c1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
}
