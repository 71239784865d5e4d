package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"marketintel/internal/app"
	"marketintel/internal/config"
	"marketintel/internal/logging"
	"marketintel/internal/usecase"
)

func main() {
	var (
		once       = flag.Bool("once", false, "run one refresh and exit instead of serving")
		days       = flag.Int("days", 0, "explicit day range for -once (0 = derive from last run)")
		competitor = flag.String("competitor", "", "only process competitors whose name contains this")
		limit      = flag.Int("limit", 0, "cap the number of competitors for -once")
		orgID      = flag.String("org", "", "organization id scope for -once")
	)
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		saved, err := application.RunOnce(ctx, usecase.RunParams{
			OrgID:          *orgID,
			Days:           *days,
			CompetitorName: *competitor,
			Limit:          *limit,
		})
		if err != nil {
			logger.Error("refresh run failed", "error", err)
			os.Exit(1)
		}
		logger.Info("refresh run done", "saved", saved)
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
