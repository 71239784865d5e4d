// Package gemini adapts the grounded-generation provider: a generative model
// with a live web-search tool whose citations, not its prose, are the source
// of truth for article URLs.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/infrastructure/cache"
	"marketintel/internal/infrastructure/serper"
	"marketintel/internal/metrics"
	"marketintel/internal/ports"
)

// Options configures a Client.
type Options struct {
	Endpoint string
	Model    string
	APIKey   string
	// JitterMin/Max delay every live search call so parallel competitors
	// do not hit the per-minute quota at the same instant.
	JitterMin time.Duration
	JitterMax time.Duration
	// DeepJitterMin/Max stack an extra delay on the deep variant, which
	// runs concurrently with its sibling search.
	DeepJitterMin time.Duration
	DeepJitterMax time.Duration
}

// Client calls the generateContent endpoint with the web-search tool enabled.
type Client struct {
	opts   Options
	http   *http.Client
	cache  *cache.FileCache
	logger *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ ports.GroundedSearcher = (*Client)(nil)

// NewClient wires the adapter. client may be nil.
func NewClient(opts Options, client *http.Client, c *cache.FileCache, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.JitterMin <= 0 {
		opts.JitterMin = time.Second
	}
	if opts.JitterMax < opts.JitterMin {
		opts.JitterMax = opts.JitterMin + 2*time.Second
	}
	if opts.DeepJitterMin <= 0 {
		opts.DeepJitterMin = 1500 * time.Millisecond
	}
	if opts.DeepJitterMax < opts.DeepJitterMin {
		opts.DeepJitterMax = opts.DeepJitterMin + 1500*time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:   opts,
		http:   client,
		cache:  c,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Search asks for recent coverage of the competitor and returns only
// citation-verified articles. Results are cached for a day per name.
func (c *Client) Search(ctx context.Context, name string, daysBack int) ([]domain.RawArticle, error) {
	if c.opts.APIKey == "" {
		return nil, nil
	}

	searchName := serper.StripParenthetical(name)
	key := cache.NameKey(searchName)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			metrics.ProviderCalls.WithLabelValues("gemini", "cached").Inc()
			return cached, nil
		}
	}

	if err := c.jitter(ctx, c.opts.JitterMin, c.opts.JitterMax); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Search for news articles published in the last %d days about the company '%s'. "+
			"Focus on: new contracts, partnerships, product launches, funding rounds, "+
			"office openings, leadership changes, market expansion. "+
			"Please provide a bulleted list of the articles you find, including their dates.",
		daysOrDefault(daysBack, 7), searchName)

	articles, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(key, articles)
	}
	return articles, nil
}

// DeepSearch narrows the prompt to the competitor's own domain plus named
// trade-press outlets. It is not cached: it only runs as a fallback tier.
func (c *Client) DeepSearch(ctx context.Context, name, website string, daysBack int) ([]domain.RawArticle, error) {
	if c.opts.APIKey == "" || website == "" {
		return nil, nil
	}

	searchName := serper.StripParenthetical(name)
	domainName := serper.DomainOf(website)

	if err := c.jitter(ctx, c.opts.DeepJitterMin, c.opts.DeepJitterMax); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Find any press releases, news announcements, or blog posts from or about '%s' "+
			"(website: %s) published in the last %d days. "+
			"Also search trade publications, PR Newswire, BusinessWire, and industry blogs "+
			"for any coverage of %s. "+
			"Please provide a bulleted list of the articles you find, including their dates.",
		searchName, domainName, daysOrDefault(daysBack, 14), searchName)

	return c.generate(ctx, prompt)
}

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// ResearchCompany looks up enrichment metadata for a competitor.
func (c *Client) ResearchCompany(ctx context.Context, name, website string) (domain.CompanyProfile, error) {
	if c.opts.APIKey == "" {
		return domain.CompanyProfile{}, fmt.Errorf("grounded-search API key is not configured")
	}

	prompt := fmt.Sprintf(
		"Research the company '%s' (Website: %s). Find their latest available:\n"+
			"1. Estimated Annual Revenue (e.g. '$50M' or 'Undisclosed')\n"+
			"2. Employee Count (e.g. '250+')\n"+
			"3. Headquarters City/Country\n"+
			"4. Key Markets / Regions they operate in\n\n"+
			"Return purely valid JSON with keys: revenue, employees, headquarters, key_markets.",
		serper.StripParenthetical(name), website)

	text, err := c.generateText(ctx, prompt)
	if err != nil {
		return domain.CompanyProfile{}, err
	}

	if m := jsonObject.FindString(text); m != "" {
		text = m
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return domain.CompanyProfile{}, fmt.Errorf("parse enrichment response: %w", err)
	}

	return domain.CompanyProfile{
		Revenue:       flattenField(raw["revenue"]),
		EmployeeCount: flattenField(raw["employees"]),
		Headquarters:  flattenField(raw["headquarters"]),
		KeyMarkets:    flattenField(raw["key_markets"]),
	}, nil
}

// flattenField normalizes a string-or-list JSON value to one clean string.
func flattenField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, v := range list {
			parts = append(parts, strings.TrimSpace(fmt.Sprint(v)))
		}
		return strings.Join(parts, ", ")
	}
	return strings.TrimSpace(string(raw))
}

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type tool struct {
	GoogleSearch struct{} `json:"google_search"`
}

func (c *Client) generate(ctx context.Context, prompt string) ([]domain.RawArticle, error) {
	resp, err := c.call(ctx, prompt)
	if err != nil {
		if isRateLimited(err) {
			metrics.ProviderCalls.WithLabelValues("gemini", "rate_limited").Inc()
			c.logger.Warn("grounded search rate-limited, skipping")
			return nil, nil
		}
		metrics.ProviderCalls.WithLabelValues("gemini", "error").Inc()
		return nil, err
	}
	metrics.ProviderCalls.WithLabelValues("gemini", "ok").Inc()
	return parseGrounding(resp, c.now()), nil
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.call(ctx, prompt)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) call(ctx context.Context, prompt string) (generateResponse, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		Tools:    []tool{{}},
	})
	if err != nil {
		return generateResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.opts.Endpoint, c.opts.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateResponse{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return generateResponse{}, fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return generateResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return generateResponse{}, fmt.Errorf("generate returned %s: %s", resp.Status, strings.TrimSpace(string(raw[:min(len(raw), 200)])))
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return generateResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return parsed, nil
}

func (c *Client) jitter(ctx context.Context, lo, hi time.Duration) error {
	span := hi - lo
	d := lo
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	return c.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}

func daysOrDefault(days, fallback int) int {
	if days <= 0 {
		return fallback
	}
	return days
}
