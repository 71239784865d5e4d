package persist

import "strings"

var typographic = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"–", "-", "—", "-",
	"…", "...",
	" ", " ",
)

// Sanitize strips control characters, normalizes typographic punctuation to
// ASCII, drops whatever non-ASCII remains, and trims whitespace.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = typographic.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || (r >= 0x7f && r <= 0x9f):
			// control characters
		case r > 0x7f:
			// best-effort ASCII only
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
