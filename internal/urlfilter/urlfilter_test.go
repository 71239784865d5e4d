package urlfilter

import "testing"

func TestIsNewsURLBlocksKnownPatterns(t *testing.T) {
	t.Parallel()

	blocked := []string{
		"https://www.linkedin.com/company/acme",
		"https://WWW.LINKEDIN.COM/in/someone",
		"https://crunchbase.com/organization/acme",
		"https://acme.com/products/kiosk-3000",
		"https://acme.com/careers",
		"https://en.wikipedia.org/wiki/Acme",
		"https://www.amazon.com/acme-kiosk/dp/B000",
		"https://www.glassdoor.com/Reviews/acme",
		"https://acme.com.br/vagas",
	}

	for _, url := range blocked {
		if IsNewsURL(url) {
			t.Errorf("expected %s to be rejected", url)
		}
	}
}

func TestIsNewsURLAcceptsArticlePaths(t *testing.T) {
	t.Parallel()

	allowed := []string{
		"https://example.com/2024/01/acme-wins-contract",
		"https://www.reuters.com/technology/acme-expands-into-europe-2025-06-01/",
		"https://techcrunch.com/2025/03/12/acme-raises-50m/",
	}

	for _, url := range allowed {
		if !IsNewsURL(url) {
			t.Errorf("expected %s to be accepted", url)
		}
	}
}

func TestIsNewsURLRejectsEmpty(t *testing.T) {
	t.Parallel()

	if IsNewsURL("") {
		t.Error("empty URL should be rejected")
	}
}
