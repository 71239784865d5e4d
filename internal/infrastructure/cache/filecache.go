// Package cache persists raw provider responses on disk so repeated queries
// within the TTL window do not burn provider credits. It is an optimization
// only: every I/O error degrades to a cache miss or a no-op.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketintel/internal/domain"
)

// FileCache stores one JSON file per key under dir, expiring entries by age.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

type entry struct {
	CachedAt int64               `json:"cached_at"`
	Results  []domain.RawArticle `json:"results"`
}

// New builds a cache rooted at dir with the given TTL.
func New(dir string, ttl time.Duration) *FileCache {
	return &FileCache{dir: dir, ttl: ttl, now: time.Now}
}

// Key derives the cache key for a (query, region, kind) triple.
func Key(query, region, kind string) string {
	sum := md5.Sum([]byte(query + "|" + region + "|" + kind))
	return hex.EncodeToString(sum[:])
}

// NameKey derives the cache key for the grounded-generation path, which is
// keyed by competitor name alone.
func NameKey(name string) string {
	sum := md5.Sum([]byte(strings.ToLower(name)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached articles for key, or false when the entry is
// missing, expired, or unreadable.
func (c *FileCache) Get(key string) ([]domain.RawArticle, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}

	age := c.now().Unix() - e.CachedAt
	if age < 0 || time.Duration(age)*time.Second >= c.ttl {
		return nil, false
	}
	return e.Results, true
}

// Set stores articles under key. Write failures are silently dropped.
func (c *FileCache) Set(key string, results []domain.RawArticle) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}

	raw, err := json.Marshal(entry{CachedAt: c.now().Unix(), Results: results})
	if err != nil {
		return
	}
	_ = os.WriteFile(c.path(key), raw, 0o644)
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}
