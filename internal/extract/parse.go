package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"marketintel/internal/domain"
)

// payload is the JSON document the model is asked to produce.
type payload struct {
	NewsItems      []domain.NewsItem `json:"news_items"`
	NoRelevantNews bool              `json:"no_relevant_news"`
}

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// truncation-repair suffixes, tried in order when the model stops mid-document
var repairSuffixes = []string{"}]}", "]}", "}"}

// parsePayload recovers the analysis document from raw model text. It strips
// markdown fences, then tries the text as-is, then with each repair suffix
// appended, and finally whatever the outermost-brace regexp can pull out.
func parsePayload(raw string) (payload, error) {
	text := stripFences(raw)

	if p, err := tryParse(text); err == nil {
		return p, nil
	}
	for _, suffix := range repairSuffixes {
		if p, err := tryParse(text + suffix); err == nil {
			return p, nil
		}
	}
	if match := jsonObjectRe.FindString(text); match != "" && match != text {
		if p, err := tryParse(match); err == nil {
			return p, nil
		}
		for _, suffix := range repairSuffixes {
			if p, err := tryParse(match + suffix); err == nil {
				return p, nil
			}
		}
	}
	return payload{}, fmt.Errorf("no parsable JSON object in model output")
}

func tryParse(text string) (payload, error) {
	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return payload{}, err
	}
	return p, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
