// Package urlfilter labels URLs as news-worthy or not. It is a coarse
// precision filter built from a fixed block list, not a scoring classifier.
package urlfilter

import "strings"

// blockedPatterns mark non-news content: social profiles, marketplaces, job
// boards, company self-description pages, and localized equivalents.
var blockedPatterns = []string{
	"linkedin.com", "crunchbase.com", "facebook.com", "instagram.com",
	"youtube.com", "twitter.com", "x.com",
	"/product", "/products", "/catalog", "/catalogo",
	"/shop", "/store", "/loja", "/tienda",
	"/contact", "/contato", "/about", "/sobre",
	"mercadolivre", "mercadolibre", "amazon.com", "alibaba.com",
	"olx.com", "ebay.com",
	"glassdoor.com", "indeed.com", "ziprecruiter.com",
	"wikipedia.org", "dnb.com", "zoominfo.com",
	"/careers", "/vagas", "/empleo",
}

// IsNewsURL reports whether a URL plausibly points at a news article.
// Matching is case-insensitive substring containment over the block list.
func IsNewsURL(url string) bool {
	if url == "" {
		return false
	}
	lower := strings.ToLower(url)
	for _, pattern := range blockedPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}
