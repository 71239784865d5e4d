package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"marketintel/internal/domain"
	"marketintel/internal/ports"
)

// Aggregator fans one competitor out across both search providers, merges by
// URL and validates the links. Implements ports.ArticleGatherer.
type Aggregator struct {
	keyword   ports.KeywordSearcher
	grounded  ports.GroundedSearcher
	validator ports.LinkValidator
	logger    *slog.Logger
}

var _ ports.ArticleGatherer = (*Aggregator)(nil)

func NewAggregator(keyword ports.KeywordSearcher, grounded ports.GroundedSearcher, validator ports.LinkValidator, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		keyword:   keyword,
		grounded:  grounded,
		validator: validator,
		logger:    logger.With("component", "aggregator"),
	}
}

// Gather runs the keyword search, the grounded search and, when the
// competitor has a website, the deep grounded search concurrently. One
// provider failing contributes an empty slice, never an aborted run. Keyword
// results win on duplicate URLs. When everything comes back empty (or dead)
// a single broad fallback query is the last resort.
func (a *Aggregator) Gather(ctx context.Context, comp domain.Competitor, daysBack int, regions []string, org domain.Organization) ([]domain.RawArticle, error) {
	native := domain.NativeRegionFor(comp.Headquarters)
	if native != nil {
		a.logger.Info("using native-language search", "competitor", comp.Name, "label", native.Label)
	}

	groundedDays := daysBack
	if groundedDays == 0 {
		groundedDays = 7
	}
	deepDays := daysBack
	if deepDays == 0 {
		deepDays = 14
	}

	var keywordResults, groundedResults, deepResults []domain.RawArticle

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := a.keyword.SearchNews(gctx, comp.Name, regions, native, daysBack, org.Keywords, comp.Website)
		if err != nil {
			a.logger.Warn("keyword search failed", "competitor", comp.Name, "error", err)
			return nil
		}
		keywordResults = res
		return nil
	})
	g.Go(func() error {
		res, err := a.grounded.Search(gctx, comp.Name, groundedDays)
		if err != nil {
			a.logger.Warn("grounded search failed", "competitor", comp.Name, "error", err)
			return nil
		}
		groundedResults = res
		return nil
	})
	if comp.Website != "" {
		g.Go(func() error {
			res, err := a.grounded.DeepSearch(gctx, comp.Name, comp.Website, deepDays)
			if err != nil {
				a.logger.Warn("deep search failed", "competitor", comp.Name, "error", err)
				return nil
			}
			deepResults = res
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Deep results extend the grounded list first; keyword results then
	// take priority over both on duplicate URLs.
	grounded := mergeByURL(groundedResults, deepResults)
	merged := mergeByURL(keywordResults, grounded)

	validated := a.validator.Validate(ctx, merged)
	if len(validated) > 0 {
		return validated, nil
	}

	a.logger.Info("no articles survived, trying broad fallback query", "competitor", comp.Name)
	fallback, err := a.keyword.SearchFallback(ctx, comp.Name, daysBack)
	if err != nil {
		a.logger.Warn("fallback search failed", "competitor", comp.Name, "error", err)
		return nil, nil
	}
	return a.validator.Validate(ctx, fallback), nil
}

// mergeByURL appends the second list to the first, keeping the first
// occurrence of each URL and dropping articles without one.
func mergeByURL(primary, secondary []domain.RawArticle) []domain.RawArticle {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	out := make([]domain.RawArticle, 0, len(primary)+len(secondary))
	for _, list := range [][]domain.RawArticle{primary, secondary} {
		for _, a := range list {
			if a.Link == "" {
				continue
			}
			if _, ok := seen[a.Link]; ok {
				continue
			}
			seen[a.Link] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}
