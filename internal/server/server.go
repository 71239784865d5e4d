// Package server exposes the HTTP control surface. All run-triggering
// endpoints are fire-and-forget: they answer 202 immediately and progress is
// observed through the FetchJob record.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketintel/internal/domain"
	"marketintel/internal/ports"
	"marketintel/internal/usecase"
)

// Server routes control requests onto the pipeline and onboarding use cases.
type Server struct {
	pipeline   *usecase.Pipeline
	onboarding *usecase.Onboarding
	jobStore   ports.JobStore
	logger     *slog.Logger
	engine     *gin.Engine
}

func New(pipeline *usecase.Pipeline, onboarding *usecase.Onboarding, jobStore ports.JobStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipeline:   pipeline,
		onboarding: onboarding,
		jobStore:   jobStore,
		logger:     logger.With("component", "server"),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/process-onboarding", s.processOnboarding)
	r.POST("/refresh-news", s.refreshNews)
	r.POST("/enrich-competitor", s.enrichCompetitor)

	s.engine = r
	return s
}

// Handler returns the router for mounting into an http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type onboardingRequest struct {
	CompetitorIDs []string `json:"competitorIds"`
	OrgID         string   `json:"orgId"`
	JobID         string   `json:"jobId"`
}

func (s *Server) processOnboarding(c *gin.Context) {
	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.CompetitorIDs) == 0 && req.OrgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "must provide competitorIds or orgId"})
		return
	}

	job := s.resolveJob(c.Request.Context(), req.JobID, req.OrgID)
	go func() {
		ctx := context.Background()
		err := s.onboarding.Run(ctx, usecase.OnboardParams{
			CompetitorIDs: req.CompetitorIDs,
			OrgID:         req.OrgID,
			Job:           job,
		})
		if err != nil {
			s.logger.Error("onboarding run failed", "org_id", req.OrgID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "onboarding started in background"})
}

type refreshRequest struct {
	OrgID          string `json:"orgId"`
	JobID          string `json:"jobId"`
	Days           int    `json:"days"`
	CompetitorName string `json:"competitorName"`
}

func (s *Server) refreshNews(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.OrgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "must provide orgId"})
		return
	}

	job := s.resolveJob(c.Request.Context(), req.JobID, req.OrgID)
	go func() {
		ctx := context.Background()
		_, err := s.pipeline.RefreshAll(ctx, usecase.RunParams{
			OrgID:          req.OrgID,
			Days:           req.Days,
			CompetitorName: req.CompetitorName,
			Job:            job,
		})
		if err != nil {
			s.logger.Error("refresh run failed", "org_id", req.OrgID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "refresh started in background"})
}

type enrichRequest struct {
	CompetitorID string `json:"competitorId"`
}

func (s *Server) enrichCompetitor(c *gin.Context) {
	var req enrichRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CompetitorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "must provide competitorId"})
		return
	}

	go func() {
		if err := s.onboarding.EnrichByID(context.Background(), req.CompetitorID); err != nil {
			s.logger.Error("enrichment failed", "competitor_id", req.CompetitorID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "enrichment started in background"})
}

// resolveJob loads the caller-supplied job record, or creates one when the
// caller only named the organization. A nil job just means progress is not
// tracked in the store.
func (s *Server) resolveJob(ctx context.Context, jobID, orgID string) *domain.FetchJob {
	if s.jobStore == nil {
		return nil
	}
	if jobID != "" {
		job, err := s.jobStore.Get(ctx, jobID)
		if err != nil {
			s.logger.Warn("job lookup failed", "job_id", jobID, "error", err)
			return nil
		}
		return &job
	}
	if orgID == "" {
		return nil
	}
	job, err := s.jobStore.Create(ctx, orgID)
	if err != nil {
		s.logger.Warn("job create failed", "org_id", orgID, "error", err)
		return nil
	}
	return &job
}
