package csvsync

import (
	"context"
	"io"
	"strings"
	"testing"

	"marketintel/internal/domain"
	"marketintel/internal/logging"
)

const sampleCSV = `Company,Website,Primary Solution,Category,HQ Location,Key Markets,Approx Employees,Est. Revenue (USD),Funding/Status
Acme Corp,https://acme.example.org,Wayfinding,Mapping,"Berlin, Germany",Europe,250,$50M,Series B
,,,,,,,,
Abuzz Internal,,,,,,,,
Globex,,Signage,Displays,"Austin, USA",,40,,Bootstrapped
`

func TestParse(t *testing.T) {
	t.Parallel()

	got, err := Parse(strings.NewReader(sampleCSV), "Abuzz")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2 (blank and own rows skipped)", len(got))
	}
	acme := got[0]
	if acme.Name != "Acme Corp" || acme.Headquarters != "Berlin, Germany" || acme.Revenue != "$50M" {
		t.Fatalf("acme row: %+v", acme)
	}
	if acme.Region != "Europe" {
		t.Errorf("region should come from key markets, got %q", acme.Region)
	}
	if got[1].Region != "Austin, USA" {
		t.Errorf("region should fall back to HQ, got %q", got[1].Region)
	}
}

type syncStore struct {
	existing []domain.Competitor
	upserts  []string
	archived []string
}

func (s *syncStore) All(context.Context) ([]domain.Competitor, error) { return s.existing, nil }
func (s *syncStore) Active(context.Context, string) ([]domain.Competitor, error) {
	return s.existing, nil
}
func (s *syncStore) ByIDs(context.Context, []string) ([]domain.Competitor, error) { return nil, nil }
func (s *syncStore) Upsert(_ context.Context, comp domain.Competitor) error {
	s.upserts = append(s.upserts, comp.Name)
	return nil
}
func (s *syncStore) Archive(_ context.Context, id string) error {
	s.archived = append(s.archived, id)
	return nil
}
func (s *syncStore) UpdateProfile(context.Context, string, domain.CompanyProfile) error {
	return nil
}

func TestSyncUpsertsAndArchives(t *testing.T) {
	t.Parallel()

	store := &syncStore{existing: []domain.Competitor{
		{ID: "id-acme", Name: "Acme Corp", Status: "active"},
		{ID: "id-gone", Name: "Gone Inc", Status: "active"},
		{ID: "id-old", Name: "Old Inc", Status: "archived"},
	}}
	roster := []domain.Competitor{
		{Name: "Acme Corp"},
		{Name: "Newco"},
	}

	s, err := Sync(context.Background(), store, roster, false, logging.NewWithWriter(io.Discard, "error"))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if s.Added != 1 || s.Updated != 1 || s.Archived != 1 {
		t.Fatalf("summary: %+v", s)
	}
	if len(store.upserts) != 2 {
		t.Fatalf("upserts: %v", store.upserts)
	}
	if len(store.archived) != 1 || store.archived[0] != "id-gone" {
		t.Fatalf("archived: %v", store.archived)
	}
}

func TestSyncDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	store := &syncStore{existing: []domain.Competitor{{ID: "id-gone", Name: "Gone Inc", Status: "active"}}}
	s, err := Sync(context.Background(), store, []domain.Competitor{{Name: "Newco"}}, true, logging.NewWithWriter(io.Discard, "error"))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if s.Added != 1 || s.Archived != 1 {
		t.Fatalf("summary: %+v", s)
	}
	if len(store.upserts) != 0 || len(store.archived) != 0 {
		t.Fatal("dry-run must not write")
	}
}
