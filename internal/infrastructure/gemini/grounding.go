package gemini

import (
	"regexp"
	"strings"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/urlfilter"
)

// generateResponse mirrors the provider's generateContent response, reduced
// to the fields the adapter consumes.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata *groundingMetadata `json:"groundingMetadata"`
	} `json:"candidates"`
}

type groundingMetadata struct {
	GroundingChunks []struct {
		Web *struct {
			URI   string `json:"uri"`
			Title string `json:"title"`
		} `json:"web"`
	} `json:"groundingChunks"`
	GroundingSupports []struct {
		Segment struct {
			StartIndex int `json:"startIndex"`
			EndIndex   int `json:"endIndex"`
		} `json:"segment"`
		GroundingChunkIndices []int     `json:"groundingChunkIndices"`
		ConfidenceScores      []float64 `json:"confidenceScores"`
	} `json:"groundingSupports"`
}

var (
	listMarker   = regexp.MustCompile(`^([*\-]|\d+[.)])\s*`)
	boldMarkdown = strings.NewReplacer("**", "")
)

// parseGrounding extracts citation-verified articles from the model's text
// plus grounding metadata. Only list-formatted lines count as article
// mentions; each line keeps its single highest-confidence citation, and a
// citation is accepted only when its span overlaps the line.
func parseGrounding(resp generateResponse, now time.Time) []domain.RawArticle {
	if len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]

	var text string
	if len(candidate.Content.Parts) > 0 {
		text = candidate.Content.Parts[0].Text
	}
	grounding := candidate.GroundingMetadata
	if grounding == nil || text == "" {
		return nil
	}

	var articles []domain.RawArticle
	seen := map[string]struct{}{}

	offset := 0
	for _, line := range strings.Split(text, "\n") {
		start := offset
		end := offset + len(line)
		offset = end + 1 // the newline

		clean := strings.TrimSpace(line)
		if !listMarker.MatchString(clean) {
			// Narrative filler, not an article mention.
			continue
		}

		bestIdx := -1
		bestScore := 0.0
		for _, support := range grounding.GroundingSupports {
			seg := support.Segment
			if max(start, seg.StartIndex) >= min(end, seg.EndIndex) {
				continue
			}
			for j, idx := range support.GroundingChunkIndices {
				if j >= len(support.ConfidenceScores) {
					break
				}
				score := support.ConfidenceScores[j]
				if score <= bestScore || idx < 0 || idx >= len(grounding.GroundingChunks) {
					continue
				}
				web := grounding.GroundingChunks[idx].Web
				if web == nil || web.URI == "" || !urlfilter.IsNewsURL(web.URI) {
					continue
				}
				bestScore = score
				bestIdx = idx
			}
		}

		if bestIdx == -1 {
			continue
		}
		web := grounding.GroundingChunks[bestIdx].Web
		if _, dup := seen[web.URI]; dup {
			continue
		}
		seen[web.URI] = struct{}{}

		snippet := boldMarkdown.Replace(listMarker.ReplaceAllString(clean, ""))
		title := web.Title
		if title == "" {
			title = truncate(snippet, 100)
		}

		articles = append(articles, domain.RawArticle{
			Title:        title,
			Link:         web.URI,
			Snippet:      snippet,
			Date:         now.UTC().Format("2006-01-02"),
			SearchRegion: domain.SourceGemini,
		})
	}

	return articles
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
