package main

import (
	"context"
	"flag"
	"os"

	"marketintel/internal/app"
	"marketintel/internal/config"
	"marketintel/internal/logging"
)

func main() {
	var (
		csvPath = flag.String("csv", "competitors.csv", "path to the competitor roster CSV")
		dryRun  = flag.Bool("dry-run", false, "preview changes without writing to the database")
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

	summary, err := application.SyncCompetitors(context.Background(), *csvPath, *dryRun)
	if err != nil {
		logger.Error("sync failed", "error", err)
		os.Exit(1)
	}
	logger.Info("sync finished",
		"added", summary.Added,
		"updated", summary.Updated,
		"archived", summary.Archived,
		"dry_run", *dryRun)
}
