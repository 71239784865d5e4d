// Package validate performs best-effort liveness checks on candidate article
// URLs. A check that cannot complete keeps the article: an unreachable
// validator must never be the reason a real article is lost.
package validate

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"marketintel/internal/domain"
	"marketintel/internal/ports"
)

// genericPaths are root-level section indexes, not specific articles.
var genericPaths = map[string]struct{}{
	"":           {},
	"/":          {},
	"/home":      {},
	"/blog":      {},
	"/news":      {},
	"/press":     {},
	"/media":     {},
	"/insights":  {},
	"/resources": {},
}

// Liveness checks URL existence with bounded concurrency.
type Liveness struct {
	client  *http.Client
	workers int64
	logger  *slog.Logger
}

var _ ports.LinkValidator = (*Liveness)(nil)

// New wires an HTTP client; workers defaults to 10, timeout to 5s.
func New(client *http.Client, workers int, timeout time.Duration, logger *slog.Logger) *Liveness {
	if client == nil {
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if workers <= 0 {
		workers = 10
	}
	return &Liveness{client: client, workers: int64(workers), logger: logger}
}

// Validate returns the subset of articles whose URLs look like live,
// specific pages. Rejections happen only on a generic path or an explicit
// >=400 status; network errors fail open.
func (l *Liveness) Validate(ctx context.Context, articles []domain.RawArticle) []domain.RawArticle {
	keep := make([]bool, len(articles))
	sem := semaphore.NewWeighted(l.workers)
	var wg sync.WaitGroup

	for i, art := range articles {
		if isGenericURL(art.Link) {
			if l.logger != nil {
				l.logger.Debug("dropping generic section link", "url", art.Link)
			}
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Context gone; keep whatever was not checked yet.
			keep[i] = true
			continue
		}

		wg.Add(1)
		go func(i int, link string) {
			defer wg.Done()
			defer sem.Release(1)
			keep[i] = l.exists(ctx, link)
		}(i, art.Link)
	}
	wg.Wait()

	out := make([]domain.RawArticle, 0, len(articles))
	for i, art := range articles {
		if keep[i] {
			out = append(out, art)
		}
	}
	return out
}

func (l *Liveness) exists(ctx context.Context, link string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return true
	}

	resp, err := l.client.Do(req)
	if err != nil {
		// Timeout or connection failure: fail open.
		return true
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		if l.logger != nil {
			l.logger.Debug("dropping dead link", "url", link, "status", resp.StatusCode)
		}
		return false
	}
	return true
}

func isGenericURL(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	path := strings.TrimSuffix(strings.ToLower(parsed.Path), "/")
	_, generic := genericPaths[path]
	return generic
}
