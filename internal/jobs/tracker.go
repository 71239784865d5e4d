// Package jobs tracks pipeline run progress in two places at once: the
// FetchJob row polled by the dashboard, and a local status file that survives
// even when no job record exists.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/ports"
)

// perCompetitorEstimate is the rough wall-clock cost of one competitor,
// used only for the progress file's remaining-time hint.
const perCompetitorEstimate = 20 * time.Second

type fileStatus struct {
	Status                    string  `json:"status"`
	CurrentCompetitor         *string `json:"current_competitor"`
	Processed                 int     `json:"processed"`
	Total                     int     `json:"total"`
	PercentComplete           int     `json:"percent_complete"`
	EstimatedSecondsRemaining int     `json:"estimated_seconds_remaining"`
	StartedAt                 *string `json:"started_at"`
	CompletedAt               *string `json:"completed_at"`
	Error                     *string `json:"error"`
}

// Tracker mirrors job progress to the store and the status file. Both sinks
// are best-effort; progress reporting never fails a run.
type Tracker struct {
	store  ports.JobStore
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker builds a tracker. store may be nil when runs are launched
// without a job record; path may be empty to skip the file mirror.
func NewTracker(store ports.JobStore, path string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		path:   path,
		logger: logger.With("component", "jobs"),
		now:    time.Now,
	}
}

// Running records an in-progress step.
func (t *Tracker) Running(ctx context.Context, job *domain.FetchJob, current string, processed, total int) {
	if job != nil {
		job.Status = domain.JobRunning
		job.CurrentStep = current
		job.Processed = processed
		job.Total = total
		t.update(ctx, job)
	}
	t.writeFile(domain.JobRunning, current, processed, total, "")
}

// Completed marks the run finished.
func (t *Tracker) Completed(ctx context.Context, job *domain.FetchJob, total int) {
	if job != nil {
		job.Status = domain.JobCompleted
		job.CurrentStep = ""
		job.Processed = total
		job.Total = total
		job.CompletedAt = t.now().UTC()
		t.update(ctx, job)
	}
	t.writeFile(domain.JobCompleted, "", total, total, "")
}

// Fail records the first fatal message and marks the run errored.
func (t *Tracker) Fail(ctx context.Context, job *domain.FetchJob, msg string) {
	if job != nil {
		job.Status = domain.JobError
		job.Error = msg
		job.CompletedAt = t.now().UTC()
		t.update(ctx, job)
	}
	t.writeFile(domain.JobError, "", 0, 0, msg)
}

func (t *Tracker) update(ctx context.Context, job *domain.FetchJob) {
	if t.store == nil {
		return
	}
	if err := t.store.Update(ctx, *job); err != nil {
		t.logger.Warn("job update failed", "job_id", job.ID, "error", err)
	}
}

func (t *Tracker) writeFile(status domain.JobStatus, current string, processed, total int, errMsg string) {
	if t.path == "" {
		return
	}

	percent := 0
	if total > 0 {
		percent = processed * 100 / total
	}
	s := fileStatus{
		Status:                    string(status),
		Processed:                 processed,
		Total:                     total,
		PercentComplete:           percent,
		EstimatedSecondsRemaining: (total - processed) * int(perCompetitorEstimate/time.Second),
	}
	if current != "" {
		s.CurrentCompetitor = &current
	}
	if errMsg != "" {
		s.Error = &errMsg
	}
	now := t.now().UTC().Format(time.RFC3339)
	if status == domain.JobRunning && processed == 0 {
		s.StartedAt = &now
	}
	if status == domain.JobCompleted {
		s.CompletedAt = &now
	}

	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		t.logger.Warn("status dir not writable", "error", err)
		return
	}
	if err := os.WriteFile(t.path, raw, 0o644); err != nil {
		t.logger.Warn("status file not writable", "error", err)
	}
}
