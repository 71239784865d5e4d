package usecase

import (
	"context"
	"errors"
	"io"
	"testing"

	"marketintel/internal/domain"
	"marketintel/internal/logging"
)

type fakeKeyword struct {
	results  []domain.RawArticle
	fallback []domain.RawArticle
	err      error

	gotNative *domain.RegionConfig
	// results produced per native config when set
	nativeResults func(native *domain.RegionConfig) []domain.RawArticle
}

func (f *fakeKeyword) SearchNews(_ context.Context, _ string, _ []string, native *domain.RegionConfig, _ int, _ []string, _ string) ([]domain.RawArticle, error) {
	f.gotNative = native
	if f.err != nil {
		return nil, f.err
	}
	if f.nativeResults != nil {
		return f.nativeResults(native), nil
	}
	return f.results, nil
}

func (f *fakeKeyword) SearchFallback(context.Context, string, int) ([]domain.RawArticle, error) {
	return f.fallback, nil
}

type fakeGrounded struct {
	results []domain.RawArticle
	deep    []domain.RawArticle
	err     error
}

func (f *fakeGrounded) Search(context.Context, string, int) ([]domain.RawArticle, error) {
	return f.results, f.err
}

func (f *fakeGrounded) DeepSearch(context.Context, string, string, int) ([]domain.RawArticle, error) {
	return f.deep, nil
}

func (f *fakeGrounded) ResearchCompany(context.Context, string, string) (domain.CompanyProfile, error) {
	return domain.CompanyProfile{}, nil
}

type passValidator struct{}

func (passValidator) Validate(_ context.Context, articles []domain.RawArticle) []domain.RawArticle {
	return articles
}

func TestGatherMergeIsIdempotentOnURL(t *testing.T) {
	t.Parallel()

	url := "https://news.example.org/story"
	keyword := &fakeKeyword{results: []domain.RawArticle{{Title: "from keyword", Link: url, SearchRegion: "global"}}}
	grounded := &fakeGrounded{results: []domain.RawArticle{{Title: "from grounded", Link: url, SearchRegion: domain.SourceGemini}}}
	agg := NewAggregator(keyword, grounded, passValidator{}, logging.NewWithWriter(io.Discard, "error"))

	got, err := agg.Gather(context.Background(), domain.Competitor{Name: "Acme"}, 7, []string{"global"}, domain.Organization{})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d articles, want 1", len(got))
	}
	if got[0].SearchRegion != "global" || got[0].Title != "from keyword" {
		t.Fatalf("keyword result should win: %+v", got[0])
	}
}

func TestGatherNativeLanguageResults(t *testing.T) {
	t.Parallel()

	keyword := &fakeKeyword{
		nativeResults: func(native *domain.RegionConfig) []domain.RawArticle {
			if native == nil {
				return nil
			}
			return []domain.RawArticle{
				{Title: "un", Link: "https://presse.example.fr/1", SearchRegion: native.Label},
				{Title: "deux", Link: "https://presse.example.fr/2", SearchRegion: native.Label},
			}
		},
	}
	agg := NewAggregator(keyword, &fakeGrounded{}, passValidator{}, logging.NewWithWriter(io.Discard, "error"))

	comp := domain.Competitor{Name: "Acme", Headquarters: "Paris, France"}
	got, err := agg.Gather(context.Background(), comp, 7, []string{"global"}, domain.Organization{})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if keyword.gotNative == nil || keyword.gotNative.Label != "france_fr" {
		t.Fatalf("native config = %+v", keyword.gotNative)
	}
	if len(got) != 2 {
		t.Fatalf("got %d articles, want 2", len(got))
	}
	for _, a := range got {
		if a.SearchRegion != "france_fr" {
			t.Errorf("article %q region = %q, want france_fr", a.Title, a.SearchRegion)
		}
	}
}

func TestGatherDeepResultsExtendGrounded(t *testing.T) {
	t.Parallel()

	grounded := &fakeGrounded{
		results: []domain.RawArticle{{Title: "g", Link: "https://a.example.org/g", SearchRegion: domain.SourceGemini}},
		deep:    []domain.RawArticle{{Title: "d", Link: "https://a.example.org/d", SearchRegion: domain.SourceGemini}},
	}
	agg := NewAggregator(&fakeKeyword{}, grounded, passValidator{}, logging.NewWithWriter(io.Discard, "error"))

	comp := domain.Competitor{Name: "Acme", Website: "https://acme.example.org"}
	got, err := agg.Gather(context.Background(), comp, 0, []string{"global"}, domain.Organization{})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d articles, want 2", len(got))
	}
}

func TestGatherOneProviderFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	keyword := &fakeKeyword{err: errors.New("quota")}
	grounded := &fakeGrounded{results: []domain.RawArticle{{Title: "g", Link: "https://a.example.org/g"}}}
	agg := NewAggregator(keyword, grounded, passValidator{}, logging.NewWithWriter(io.Discard, "error"))

	got, err := agg.Gather(context.Background(), domain.Competitor{Name: "Acme"}, 7, []string{"global"}, domain.Organization{})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d articles, want 1", len(got))
	}
}

func TestGatherFallbackWhenEmpty(t *testing.T) {
	t.Parallel()

	keyword := &fakeKeyword{
		fallback: []domain.RawArticle{{Title: "broad", Link: "https://a.example.org/b", SearchRegion: domain.SourceFallback}},
	}
	agg := NewAggregator(keyword, &fakeGrounded{}, passValidator{}, logging.NewWithWriter(io.Discard, "error"))

	got, err := agg.Gather(context.Background(), domain.Competitor{Name: "Acme"}, 7, []string{"global"}, domain.Organization{})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(got) != 1 || got[0].SearchRegion != domain.SourceFallback {
		t.Fatalf("got %+v", got)
	}
}
