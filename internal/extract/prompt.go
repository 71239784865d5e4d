package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketintel/internal/domain"
	"marketintel/internal/ports"
)

// buildPrompt renders the analysis instruction for one article batch.
func buildPrompt(competitor string, articles []domain.RawArticle, daysBack int, org ports.OrgContext, today time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a competitive intelligence analyst working for %s", orDefault(org.CompanyName, "our company"))
	if org.Industry != "" {
		fmt.Fprintf(&b, " in the %s industry", org.Industry)
	}
	fmt.Fprintf(&b, ".\n\nAnalyze the following news articles about the competitor %q and extract every distinct business event.\n\n", competitor)

	fmt.Fprintf(&b, "Today's date is %s.\n", today.Format("2006-01-02"))
	cutoff := today.AddDate(0, 0, -daysBack)
	fmt.Fprintf(&b, "Only include events from the last %d days (on or after %s). Discard anything older and anything dated in the future.\n\n",
		daysBack, cutoff.Format("2006-01-02"))

	if len(org.RecentEvents) > 0 {
		b.WriteString("The following events are already recorded. Do NOT report them again, including reworded duplicates:\n")
		for _, ev := range org.RecentEvents {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", ev.EventType, ev.Title, ev.Date.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	b.WriteString(`Scoring guide:
- threat_level: integer 1-5. How directly this event threatens our competitive position.
- impact_score: integer 0-100. Overall market significance of the event.
`)
	if len(org.VIPCompetitors) > 0 {
		fmt.Fprintf(&b, "- %s are priority competitors we track closely. Add 10-15 points of impact_score to their events.\n",
			strings.Join(org.VIPCompetitors, ", "))
	}
	if len(org.PriorityRegions) > 0 {
		fmt.Fprintf(&b, "- Events located in %s are in our priority markets. Add 5-10 points of impact_score.\n",
			strings.Join(org.PriorityRegions, ", "))
	}

	b.WriteString(`
Respond with a single JSON object and nothing else, using exactly this shape:
{
  "news_items": [
    {
      "event_type": "New Project" | "Investment" | "Product Launch" | "Partnership" | "Leadership Change" | "Market Expansion" | "Financial Performance" | "Other",
      "category": "Product" | "Expansion" | "Pricing" | "General",
      "title": "concise event title",
      "summary": "2-3 sentence factual summary",
      "threat_level": 1,
      "impact_score": 50,
      "date": "YYYY-MM-DD",
      "source_url": "the url of the article the event came from, copied verbatim",
      "region": "MENA" | "EUROPE" | "NORTH_AMERICA" | "APAC" | "GLOBAL",
      "details": {
        "location": "City, Country or null",
        "financial_value": "Amount or null",
        "partners": [],
        "products": []
      }
    }
  ],
  "no_relevant_news": false
}

If none of the articles contain relevant competitor news, return {"news_items": [], "no_relevant_news": true}.

Articles:
`)
	enc, _ := json.MarshalIndent(articles, "", "  ")
	b.Write(enc)
	return b.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
