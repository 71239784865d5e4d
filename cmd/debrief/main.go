package main

import (
	"context"
	"errors"
	"os"

	"marketintel/internal/app"
	"marketintel/internal/config"
	"marketintel/internal/logging"
	"marketintel/internal/usecase"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	debrief, err := application.GenerateDebrief(context.Background())
	if err != nil {
		if errors.Is(err, usecase.ErrNoRecentNews) {
			logger.Info("no recent news, nothing to generate")
			return
		}
		logger.Error("debrief generation failed", "error", err)
		os.Exit(1)
	}
	logger.Info("debrief generated",
		"id", debrief.ID,
		"items", debrief.ItemCount,
		"period_start", debrief.PeriodStart,
		"period_end", debrief.PeriodEnd)
}
