package serper

import (
	"strings"
	"testing"
)

func TestStripParenthetical(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Atrius (formerly Acuity)": "Atrius",
		"Pointr":                   "Pointr",
		"Acme (EMEA) Ltd (note)":   "Acme Ltd",
	}
	for in, want := range cases {
		if got := StripParenthetical(in); got != want {
			t.Errorf("StripParenthetical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildQueriesTopicsAndKeywords(t *testing.T) {
	t.Parallel()

	keywords := []string{"wayfinding", "digital signage", "kiosk", "indoor maps", "smart building"}
	queries := BuildQueries("Acme (formerly Zed)", keywords, "https://acme.com/")

	for _, q := range queries {
		if !strings.Contains(q, `"Acme"`) {
			t.Fatalf("query missing quoted stripped name: %s", q)
		}
		if strings.Contains(q, "Zed") {
			t.Fatalf("parenthetical leaked into query: %s", q)
		}
	}

	// 7 topics + 2 keyword chunks (4+1) + 7 site-scoped topic variants.
	if len(queries) != 16 {
		t.Fatalf("expected 16 queries, got %d", len(queries))
	}

	var keywordQuery, siteQuery bool
	for _, q := range queries {
		if strings.Contains(q, "wayfinding OR digital signage OR kiosk OR indoor maps") {
			keywordQuery = true
		}
		if strings.Contains(q, "site:acme.com") {
			siteQuery = true
		}
		if strings.Count(q, " OR ") > 3 {
			t.Fatalf("keyword chunk exceeds 4 terms: %s", q)
		}
	}
	if !keywordQuery {
		t.Error("missing chunked industry-keyword query")
	}
	if !siteQuery {
		t.Error("missing domain-scoped query variant")
	}
}

func TestBuildQueriesWithoutWebsite(t *testing.T) {
	t.Parallel()

	queries := BuildQueries("Acme", nil, "")
	if len(queries) != 7 {
		t.Fatalf("expected only the 7 topic queries, got %d", len(queries))
	}
	for _, q := range queries {
		if strings.Contains(q, "site:") {
			t.Fatalf("unexpected site-scoped query: %s", q)
		}
	}
}

func TestTimeWindowToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		days int
		want string
	}{
		{0, ""},
		{1, "qdr:d"},
		{7, "qdr:w"},
		{14, "qdr:m"},
		{30, "qdr:m"},
		{180, "qdr:y"},
		{365, "qdr:y"},
		{400, ""},
	}
	for _, c := range cases {
		if got := TimeWindowToken(c.days); got != c.want {
			t.Errorf("TimeWindowToken(%d) = %q, want %q", c.days, got, c.want)
		}
	}
}

func TestDomainOf(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://acme.com/":         "acme.com",
		"http://acme.com/en/home":   "acme.com",
		"acme.io":                   "acme.io",
		"":                          "",
		"  https://www.acme.co.uk ": "www.acme.co.uk",
	}
	for in, want := range cases {
		if got := DomainOf(in); got != want {
			t.Errorf("DomainOf(%q) = %q, want %q", in, got, want)
		}
	}
}
