// Package app wires configuration, infrastructure and use cases into a
// runnable application.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"marketintel/internal/config"
	"marketintel/internal/csvsync"
	"marketintel/internal/domain"
	"marketintel/internal/extract"
	"marketintel/internal/infrastructure/cache"
	"marketintel/internal/infrastructure/gemini"
	"marketintel/internal/infrastructure/llm"
	"marketintel/internal/infrastructure/mail"
	"marketintel/internal/infrastructure/scheduler"
	"marketintel/internal/infrastructure/serper"
	"marketintel/internal/infrastructure/storage"
	"marketintel/internal/jobs"
	"marketintel/internal/logging"
	"marketintel/internal/persist"
	"marketintel/internal/server"
	"marketintel/internal/usecase"
	"marketintel/internal/validate"
)

// Application holds the wired components and their lifecycle.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	pipeline   *usecase.Pipeline
	onboarding *usecase.Onboarding
	debriefer  *usecase.Debriefer
	srv        *server.Server
	sched      *scheduler.IntervalScheduler
	comps      *storage.CompetitorStore
}

// New builds the full application graph from configuration.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := openDB(cfg.Secrets.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	comps := storage.NewCompetitorStore(db)
	news := storage.NewNewsStore(db)
	orgs := storage.NewOrganizationStore(db)
	jobStore := storage.NewJobStore(db)

	serperCache := cache.New(filepath.Join(cfg.Cache.Dir, "serper"), cfg.Cache.SerperTTL)
	geminiCache := cache.New(filepath.Join(cfg.Cache.Dir, "gemini"), cfg.Cache.GeminiTTL)

	keyword := serper.NewClient(serper.Options{
		Endpoint:         cfg.Search.SerperEndpoint,
		APIKey:           cfg.Secrets.SerperAPIKey,
		Concurrency:      cfg.Search.Concurrency,
		ResultsPerQuery:  cfg.Search.ResultsPerQuery,
		EnglishResultCap: cfg.Search.EnglishResultCap,
	}, nil, serperCache, baseLogger)

	grounded := gemini.NewClient(gemini.Options{
		Endpoint:      cfg.Search.GeminiEndpoint,
		Model:         cfg.Search.GeminiModel,
		APIKey:        cfg.Secrets.GeminiAPIKey,
		JitterMin:     cfg.Search.JitterMin,
		JitterMax:     cfg.Search.JitterMax,
		DeepJitterMin: cfg.Search.DeepJitterMin,
		DeepJitterMax: cfg.Search.DeepJitterMax,
	}, nil, geminiCache, baseLogger)

	validator := validate.New(nil, cfg.Search.LivenessWorkers, cfg.Search.LivenessTimeout, baseLogger)
	aggregator := usecase.NewAggregator(keyword, grounded, validator, baseLogger)

	completion := llm.NewClient(llm.Options{
		Endpoint:  cfg.Extract.Endpoint,
		Model:     cfg.Extract.Model,
		APIKey:    cfg.Secrets.AnthropicAPIKey,
		MaxTokens: cfg.Extract.MaxTokens,
	}, &http.Client{Timeout: 120 * time.Second})

	engine := extract.NewEngine(completion, extract.Options{
		BatchSize:       cfg.Extract.BatchSize,
		NetworkRetries:  cfg.Extract.NetworkRetries,
		ParseRetries:    cfg.Extract.ParseRetries,
		RetryBackoff:    cfg.Extract.RetryBackoff,
		InterBatchDelay: cfg.Extract.InterBatchDelay,
	}, baseLogger)

	gate := persist.NewGate(news, 0, baseLogger)
	tracker := jobs.NewTracker(jobStore, cfg.Server.StatusPath, baseLogger)

	pipeline := usecase.NewPipeline(comps, news, orgs, aggregator, engine, gate, tracker,
		usecase.PipelineOptions{
			AnthropicKeySet: cfg.Secrets.AnthropicAPIKey != "",
			CompetitorBatch: cfg.Extract.CompetitorBatch,
			CooldownMin:     cfg.Extract.CooldownMin,
			CooldownMax:     cfg.Extract.CooldownMax,
			DedupWindowDays: cfg.Extract.DedupWindowDays,
			FallbackOrg: domain.Organization{
				Name:           cfg.Org.CompanyName,
				Industry:       cfg.Org.Industry,
				Keywords:       cfg.Org.IndustryKeywords,
				Regions:        cfg.Org.Regions,
				VIPCompetitors: cfg.Org.PriorityCompetitors,
			},
		}, baseLogger)

	mailer := mail.NewMailer(mail.Options{
		Endpoint:     cfg.Mail.Endpoint,
		APIKey:       cfg.Secrets.ResendAPIKey,
		From:         cfg.Mail.From,
		DashboardURL: cfg.Mail.DashboardURL,
	}, nil)

	onboarding := usecase.NewOnboarding(comps, news, orgs, grounded, aggregator,
		engine, gate, jobStore, tracker, mailer, baseLogger)

	debriefer := usecase.NewDebriefer(storage.NewDebriefStore(db), completion,
		domain.Organization{
			Name:            cfg.Org.CompanyName,
			Industry:        cfg.Org.Industry,
			VIPCompetitors:  cfg.Org.PriorityCompetitors,
			PriorityRegions: cfg.Org.Regions,
		}, usecase.DebriefOptions{}, baseLogger)

	srv := server.New(pipeline, onboarding, jobStore, baseLogger)
	sched := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, false)

	return &Application{
		cfg:        cfg,
		logger:     baseLogger.With("component", "app"),
		db:         db,
		pipeline:   pipeline,
		onboarding: onboarding,
		debriefer:  debriefer,
		srv:        srv,
		sched:      sched,
		comps:      comps,
	}, nil
}

// Run starts the scheduler and serves the control surface until ctx is
// cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.sched.Start(ctx, func(t time.Time) {
		a.logger.Info("scheduled refresh run", "at", t.In(a.cfg.Scheduler.Location()))
		if _, err := a.pipeline.RefreshAll(ctx, usecase.RunParams{}); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer a.sched.Stop(context.Background())

	httpSrv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("control surface listening", "addr", a.cfg.Server.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

// RunOnce executes a single refresh run, for CLI use.
func (a *Application) RunOnce(ctx context.Context, params usecase.RunParams) (int, error) {
	return a.pipeline.RefreshAll(ctx, params)
}

// GenerateDebrief builds and stores one strategic debrief, for CLI use.
func (a *Application) GenerateDebrief(ctx context.Context) (domain.Debrief, error) {
	return a.debriefer.Generate(ctx)
}

// SyncCompetitors reconciles the roster CSV against the store.
func (a *Application) SyncCompetitors(ctx context.Context, csvPath string, dryRun bool) (csvsync.Summary, error) {
	roster, err := csvsync.Load(csvPath, a.cfg.Org.CompanyName)
	if err != nil {
		return csvsync.Summary{}, err
	}
	return csvsync.Sync(ctx, a.comps, roster, dryRun, a.logger)
}

// Close releases the database pool.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// openDB strips connection-string parameters the Go driver does not
// understand (the dashboard's ORM appends its own) before opening the pool.
func openDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}
