package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider call outcomes per adapter.
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketintel_provider_calls_total",
			Help: "Total provider calls by adapter and outcome",
		},
		[]string{"provider", "status"},
	)

	// Persistence gate outcomes, labeled by reason code.
	EventsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketintel_events_saved_total",
			Help: "Total news events persisted",
		},
	)

	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketintel_events_skipped_total",
			Help: "Total news events rejected by the persistence gate",
		},
		[]string{"reason"},
	)

	// Extraction batch outcomes.
	ExtractionBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketintel_extraction_batches_total",
			Help: "Total extraction batches by outcome",
		},
		[]string{"status"},
	)

	CompetitorsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketintel_competitors_processed_total",
			Help: "Total competitors processed by pipeline runs",
		},
	)

	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketintel_runs_active",
			Help: "Number of pipeline runs currently executing",
		},
	)
)
