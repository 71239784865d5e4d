// Package extract turns batches of raw articles into structured news events
// via a completion model.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/infrastructure/llm"
	"marketintel/internal/metrics"
	"marketintel/internal/ports"
)

// Options tunes batching and retry behavior.
type Options struct {
	BatchSize       int
	NetworkRetries  int
	ParseRetries    int
	RetryBackoff    time.Duration
	InterBatchDelay time.Duration
}

// Engine implements ports.Extractor on top of a completion client.
type Engine struct {
	client ports.CompletionClient
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
}

var _ ports.Extractor = (*Engine)(nil)

func NewEngine(client ports.CompletionClient, opts Options, logger *slog.Logger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 12
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client: client,
		opts:   opts,
		logger: logger.With("component", "extract"),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Analyze runs every batch of articles through the model and merges the
// results. A batch that fails after all retries is dropped; Analyze only
// errors when no batch succeeded at all.
func (e *Engine) Analyze(ctx context.Context, competitor string, articles []domain.RawArticle, daysBack int, org ports.OrgContext) (domain.Extraction, error) {
	if len(articles) == 0 {
		return domain.Extraction{}, nil
	}

	urlRegion := make(map[string]string, len(articles))
	for _, a := range articles {
		urlRegion[a.Link] = a.SearchRegion
	}

	var (
		out         domain.Extraction
		succeeded   int
		failed      int
		allExplicit = true
	)
	for start := 0; start < len(articles); start += e.opts.BatchSize {
		if start > 0 && e.opts.InterBatchDelay > 0 {
			e.sleep(ctx, e.opts.InterBatchDelay)
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		end := min(start+e.opts.BatchSize, len(articles))
		batch := articles[start:end]

		p, err := e.analyzeBatch(ctx, competitor, batch, daysBack, org)
		if err != nil {
			failed++
			metrics.ExtractionBatches.WithLabelValues("failure").Inc()
			e.logger.Error("batch analysis failed",
				"competitor", competitor, "batch_start", start, "error", err)
			continue
		}
		succeeded++
		metrics.ExtractionBatches.WithLabelValues("success").Inc()

		if !p.NoRelevantNews {
			allExplicit = false
		}
		for _, item := range p.NewsItems {
			item.SearchRegion = urlRegion[item.SourceURL]
			out.Items = append(out.Items, item)
		}
	}

	if succeeded == 0 {
		return domain.Extraction{}, fmt.Errorf("all %d extraction batches failed for %s", failed, competitor)
	}
	out.ExplicitNone = len(out.Items) == 0 && failed == 0 && allExplicit
	return out, nil
}

func (e *Engine) analyzeBatch(ctx context.Context, competitor string, batch []domain.RawArticle, daysBack int, org ports.OrgContext) (payload, error) {
	prompt := buildPrompt(competitor, batch, daysBack, org, e.now().UTC())

	text, err := e.completeWithRetry(ctx, prompt)
	if err != nil {
		return payload{}, err
	}

	// A malformed response is retried by resubmitting the same batch prompt,
	// regenerating from the articles rather than patching broken text.
	p, parseErr := parsePayload(text)
	for attempt := 0; parseErr != nil && attempt < e.opts.ParseRetries; attempt++ {
		e.logger.Warn("model output was not valid JSON, resubmitting batch",
			"competitor", competitor, "attempt", attempt+1)
		text, err = e.completeWithRetry(ctx, prompt)
		if err != nil {
			return payload{}, err
		}
		p, parseErr = parsePayload(text)
	}
	if parseErr != nil {
		return payload{}, fmt.Errorf("parse model output: %w", parseErr)
	}
	return p, nil
}

func (e *Engine) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.opts.NetworkRetries; attempt++ {
		if attempt > 0 {
			e.sleep(ctx, e.opts.RetryBackoff*time.Duration(attempt))
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		text, err := e.client.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !llm.IsTransient(err) {
			break
		}
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
