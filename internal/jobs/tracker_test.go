package jobs

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/logging"
)

type memJobStore struct {
	jobs map[string]domain.FetchJob
}

func (s *memJobStore) Create(_ context.Context, orgID string) (domain.FetchJob, error) {
	job := domain.FetchJob{ID: "job-1", OrganizationID: orgID, Status: domain.JobPending}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *memJobStore) Get(_ context.Context, id string) (domain.FetchJob, error) {
	return s.jobs[id], nil
}

func (s *memJobStore) Update(_ context.Context, job domain.FetchJob) error {
	s.jobs[job.ID] = job
	return nil
}

func TestTrackerMirrorsProgress(t *testing.T) {
	t.Parallel()

	store := &memJobStore{jobs: map[string]domain.FetchJob{}}
	path := filepath.Join(t.TempDir(), "status", "refresh_status.json")
	tr := NewTracker(store, path, logging.NewWithWriter(io.Discard, "error"))
	tr.now = func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	job, _ := store.Create(ctx, "org-1")

	tr.Running(ctx, &job, "Acme", 2, 10)

	got := store.jobs["job-1"]
	if got.Status != domain.JobRunning || got.Processed != 2 || got.CurrentStep != "Acme" {
		t.Fatalf("stored job: %+v", got)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("status file: %v", err)
	}
	var s fileStatus
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if s.Status != "running" || s.PercentComplete != 20 || s.EstimatedSecondsRemaining != 160 {
		t.Fatalf("status file: %+v", s)
	}

	tr.Completed(ctx, &job, 10)
	if store.jobs["job-1"].Status != domain.JobCompleted {
		t.Fatal("job not completed")
	}
	raw, _ = os.ReadFile(path)
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if s.CompletedAt == nil || s.PercentComplete != 100 {
		t.Fatalf("completed status: %+v", s)
	}
}

func TestTrackerFailRecordsError(t *testing.T) {
	t.Parallel()

	store := &memJobStore{jobs: map[string]domain.FetchJob{}}
	tr := NewTracker(store, "", logging.NewWithWriter(io.Discard, "error"))

	ctx := context.Background()
	job, _ := store.Create(ctx, "org-1")
	tr.Fail(ctx, &job, "missing credentials")

	got := store.jobs["job-1"]
	if got.Status != domain.JobError || got.Error != "missing credentials" {
		t.Fatalf("stored job: %+v", got)
	}
}

func TestTrackerWorksWithoutJobOrStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "refresh_status.json")
	tr := NewTracker(nil, path, logging.NewWithWriter(io.Discard, "error"))

	tr.Running(context.Background(), nil, "Acme", 0, 3)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("status file missing: %v", err)
	}
}
