package serper

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultTopics are the boolean keyword themes every competitor is searched
// under, independent of tenant configuration.
var defaultTopics = []string{
	"contract OR deal",
	"launch OR expansion",
	"financial results OR funding",
	"acquisition OR merger",
	"partnership OR partner",
	"CEO OR appoints OR executive",
	"press release",
}

var parenthetical = regexp.MustCompile(`\s*\(.*?\)`)

// StripParenthetical removes annotations like "(formerly X)" from a
// competitor name. Those are internal notes, not search-relevant tokens.
func StripParenthetical(name string) string {
	return strings.TrimSpace(parenthetical.ReplaceAllString(name, ""))
}

// keywordChunkSize caps how many OR-joined industry keywords go into one
// query, bounding query length.
const keywordChunkSize = 4

// BuildQueries renders all query strings for one competitor: the fixed topic
// templates, chunked industry-keyword queries, and domain-scoped variants of
// each topic when the competitor's website is known.
func BuildQueries(name string, industryKeywords []string, website string) []string {
	searchName := StripParenthetical(name)
	quoted := fmt.Sprintf("%q", searchName)

	queries := make([]string, 0, 2*len(defaultTopics)+len(industryKeywords)/keywordChunkSize+1)
	for _, topic := range defaultTopics {
		queries = append(queries, quoted+" "+topic)
	}

	for _, chunk := range chunkKeywords(industryKeywords, keywordChunkSize) {
		queries = append(queries, quoted+" "+strings.Join(chunk, " OR "))
	}

	if domain := DomainOf(website); domain != "" {
		for _, topic := range defaultTopics {
			queries = append(queries, quoted+" "+topic+" site:"+domain)
		}
	}

	return queries
}

// FallbackQuery is the bare-name query of last resort.
func FallbackQuery(name string) string {
	return fmt.Sprintf("%q", StripParenthetical(name))
}

// DomainOf extracts the bare domain from a website URL, or "" when absent.
func DomainOf(website string) string {
	d := strings.TrimSpace(website)
	if d == "" {
		return ""
	}
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimSuffix(d, "/")
	if i := strings.Index(d, "/"); i >= 0 {
		d = d[:i]
	}
	return d
}

func chunkKeywords(keywords []string, size int) [][]string {
	var cleaned []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}

	var chunks [][]string
	for start := 0; start < len(cleaned); start += size {
		end := start + size
		if end > len(cleaned) {
			end = len(cleaned)
		}
		chunks = append(chunks, cleaned[start:end])
	}
	return chunks
}

// TimeWindowToken maps a day range to the coarsest enclosing provider
// bucket, or "" for an unrestricted search.
func TimeWindowToken(daysBack int) string {
	switch {
	case daysBack <= 0:
		return ""
	case daysBack <= 1:
		return "qdr:d"
	case daysBack <= 7:
		return "qdr:w"
	case daysBack <= 30:
		return "qdr:m"
	case daysBack <= 365:
		return "qdr:y"
	default:
		return ""
	}
}
