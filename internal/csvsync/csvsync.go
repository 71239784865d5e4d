// Package csvsync reconciles the competitor roster in the database with a
// curated CSV export. It upserts rows and archives competitors that dropped
// out of the file, but never touches their news.
package csvsync

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"marketintel/internal/domain"
	"marketintel/internal/ports"
)

// Summary reports what a sync did (or would do, in dry-run mode).
type Summary struct {
	Added    int
	Updated  int
	Archived int
}

// Load parses the competitor CSV. Rows without a company name are skipped,
// as is the organization's own row.
func Load(path, ownName string) ([]domain.Competitor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return Parse(f, ownName)
}

// Parse reads competitor rows from r. The first record is the header.
func Parse(r io.Reader, ownName string) ([]domain.Competitor, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var out []domain.Competitor
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		name := field(record, "Company")
		if name == "" {
			continue
		}
		if ownName != "" && strings.HasPrefix(strings.ToLower(name), strings.ToLower(ownName)) {
			continue
		}

		keyMarkets := field(record, "Key Markets")
		hq := field(record, "HQ Location")
		region := keyMarkets
		if region == "" {
			region = hq
		}
		out = append(out, domain.Competitor{
			Name:          name,
			Website:       field(record, "Website"),
			Description:   field(record, "Primary Solution"),
			Industry:      field(record, "Category"),
			Headquarters:  hq,
			KeyMarkets:    keyMarkets,
			Region:        region,
			EmployeeCount: field(record, "Approx Employees"),
			Revenue:       field(record, "Est. Revenue (USD)"),
			FundingStatus: field(record, "Funding/Status"),
		})
	}
	return out, nil
}

// Sync upserts the CSV roster and archives active competitors missing from
// it. With dryRun set, only the summary is produced.
func Sync(ctx context.Context, store ports.CompetitorStore, roster []domain.Competitor, dryRun bool, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "csvsync")

	existing, err := store.All(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load existing competitors: %w", err)
	}
	byName := make(map[string]domain.Competitor, len(existing))
	for _, c := range existing {
		byName[c.Name] = c
	}
	rosterNames := make(map[string]struct{}, len(roster))

	var s Summary
	for _, comp := range roster {
		rosterNames[comp.Name] = struct{}{}
		if _, ok := byName[comp.Name]; ok {
			s.Updated++
			logger.Info("updating competitor", "name", comp.Name)
		} else {
			s.Added++
			logger.Info("adding competitor", "name", comp.Name)
		}
		if dryRun {
			continue
		}
		if err := store.Upsert(ctx, comp); err != nil {
			return s, fmt.Errorf("upsert %s: %w", comp.Name, err)
		}
	}

	for _, c := range existing {
		if _, ok := rosterNames[c.Name]; ok {
			continue
		}
		if c.Status != "active" {
			continue
		}
		s.Archived++
		logger.Info("archiving competitor", "name", c.Name)
		if dryRun {
			continue
		}
		if err := store.Archive(ctx, c.ID); err != nil {
			return s, fmt.Errorf("archive %s: %w", c.Name, err)
		}
	}
	return s, nil
}
