// Package serper adapts the keyword-search provider (a Serper-style Google
// Search API) into normalized RawArticle lists.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"marketintel/internal/domain"
	"marketintel/internal/infrastructure/cache"
	"marketintel/internal/metrics"
	"marketintel/internal/ports"
	"marketintel/internal/urlfilter"
)

// Options configures a Client.
type Options struct {
	Endpoint        string
	APIKey          string
	Concurrency     int
	ResultsPerQuery int
	// EnglishResultCap stops collecting English-region results once
	// reached. Native-language results are never capped.
	EnglishResultCap int
}

// Client issues one HTTP request per (query x region) pair, consulting the
// result cache first and respecting the provider rate limit via a shared
// semaphore.
type Client struct {
	opts      Options
	http      *http.Client
	cache     *cache.FileCache
	sem       *semaphore.Weighted
	logger    *slog.Logger
	exhausted atomic.Bool
}

var _ ports.KeywordSearcher = (*Client)(nil)

// NewClient wires the provider adapter. client may be nil.
func NewClient(opts Options, client *http.Client, c *cache.FileCache, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.ResultsPerQuery <= 0 {
		opts.ResultsPerQuery = 10
	}
	if opts.EnglishResultCap <= 0 {
		opts.EnglishResultCap = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:   opts,
		http:   client,
		cache:  c,
		sem:    semaphore.NewWeighted(int64(opts.Concurrency)),
		logger: logger,
	}
}

type searchRequest struct {
	Query      string `json:"q"`
	Country    string `json:"gl"`
	Language   string `json:"hl"`
	Num        int    `json:"num"`
	TimeWindow string `json:"tbs,omitempty"`
}

type searchResponse struct {
	News []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"news"`
}

// SearchNews fans out all query templates across the given regions plus the
// optional native-language configuration. Results are deduplicated by URL,
// filtered through the news classifier, and tagged with the region label
// that found them.
func (c *Client) SearchNews(ctx context.Context, name string, regions []string, native *domain.RegionConfig, daysBack int, industryKeywords []string, website string) ([]domain.RawArticle, error) {
	queries := BuildQueries(name, industryKeywords, website)
	tbs := TimeWindowToken(daysBack)

	type task struct {
		region domain.RegionConfig
		query  string
		native bool
	}
	var tasks []task
	for _, key := range regions {
		region := domain.RegionOrDefault(key)
		for _, q := range queries {
			tasks = append(tasks, task{region: region, query: q})
		}
	}
	if native != nil {
		for _, q := range queries {
			tasks = append(tasks, task{region: *native, query: q, native: true})
		}
	}

	results := make([][]domain.RawArticle, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	for i, tk := range tasks {
		g.Go(func() error {
			found, err := c.search(gctx, tk.query, tk.region, tbs)
			if err != nil {
				c.logger.Warn("keyword search failed", "query", tk.query, "region", tk.region.Label, "error", err)
				return nil
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Collect in task order so the merge is deterministic: English regions
	// first (capped), native-language results appended after (uncapped).
	seen := map[string]struct{}{}
	var merged []domain.RawArticle
	filtered := 0
	englishCount := 0
	for i, tk := range tasks {
		for _, art := range results[i] {
			if art.Link == "" {
				continue
			}
			if _, dup := seen[art.Link]; dup {
				continue
			}
			seen[art.Link] = struct{}{}
			if !urlfilter.IsNewsURL(art.Link) {
				filtered++
				continue
			}
			if !tk.native {
				if englishCount >= c.opts.EnglishResultCap {
					continue
				}
				englishCount++
			}
			art.SearchRegion = tk.region.Label
			merged = append(merged, art)
		}
	}

	if filtered > 0 {
		c.logger.Debug("classifier dropped non-news links", "competitor", name, "count", filtered)
	}
	return merged, nil
}

// SearchFallback runs one broad global query with just the competitor name.
func (c *Client) SearchFallback(ctx context.Context, name string, daysBack int) ([]domain.RawArticle, error) {
	found, err := c.search(ctx, FallbackQuery(name), domain.RegionOrDefault("global"), TimeWindowToken(daysBack))
	if err != nil {
		return nil, err
	}

	var out []domain.RawArticle
	seen := map[string]struct{}{}
	for _, art := range found {
		if art.Link == "" || !urlfilter.IsNewsURL(art.Link) {
			continue
		}
		if _, dup := seen[art.Link]; dup {
			continue
		}
		seen[art.Link] = struct{}{}
		art.SearchRegion = domain.SourceFallback
		out = append(out, art)
	}
	return out, nil
}

var searchKind = "news"

func (c *Client) search(ctx context.Context, query string, region domain.RegionConfig, tbs string) ([]domain.RawArticle, error) {
	key := cache.Key(query, region.Label, searchKind)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			metrics.ProviderCalls.WithLabelValues("serper", "cached").Inc()
			return cached, nil
		}
	}

	if c.opts.APIKey == "" {
		return nil, fmt.Errorf("keyword-search API key is not configured")
	}
	if c.exhausted.Load() {
		return nil, nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	body, err := json.Marshal(searchRequest{
		Query:      query,
		Country:    region.Country,
		Language:   region.Language,
		Num:        c.opts.ResultsPerQuery,
		TimeWindow: tbs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint+"/"+searchKind, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("serper", "error").Inc()
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if creditsExhausted(resp.StatusCode, raw) {
		// Stop issuing live calls for the rest of the run; the cache and
		// the other provider still contribute.
		c.exhausted.Store(true)
		metrics.ProviderCalls.WithLabelValues("serper", "exhausted").Inc()
		c.logger.Error("keyword-search credits exhausted, short-circuiting live calls")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues("serper", "error").Inc()
		return nil, fmt.Errorf("search returned %s: %s", resp.Status, strings.TrimSpace(string(raw[:min(len(raw), 200)])))
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	articles := make([]domain.RawArticle, 0, len(parsed.News))
	for _, n := range parsed.News {
		articles = append(articles, domain.RawArticle{
			Title:   n.Title,
			Link:    n.Link,
			Snippet: n.Snippet,
			Date:    n.Date,
		})
	}

	metrics.ProviderCalls.WithLabelValues("serper", "ok").Inc()
	if c.cache != nil {
		// Concurrent writers may race on the same key; entries are
		// idempotent re-derivations, so last-writer-wins is safe.
		c.cache.Set(key, articles)
	}
	return articles, nil
}

// creditsExhausted detects the provider's quota signal: a 403, or a 400
// whose body mentions credits.
func creditsExhausted(status int, body []byte) bool {
	if status == http.StatusForbidden {
		return true
	}
	return status == http.StatusBadRequest && strings.Contains(strings.ToLower(string(body)), "credits")
}
