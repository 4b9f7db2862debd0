// Command validate checks a cached eGRID dataset for integrity: canonical
// columns, supported years only, well-formed records, year ordering, and
// agreement between in-memory and DuckDB-side aggregates. With -source-dir it
// also re-normalizes every year from the source workbooks and compares row
// counts against the cache.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -cache egrid_all_years.parquet \
//	  -source-dir USeGRID
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/couchcryptid/egrid-plants/internal/adapter/parquet"
	"github.com/couchcryptid/egrid-plants/internal/adapter/spreadsheet"
	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/observability"
	"github.com/couchcryptid/egrid-plants/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cachePath := flag.String("cache", "", "path to the cached Parquet dataset")
	sourceDir := flag.String("source-dir", "", "optional directory of source workbooks to compare against")
	flag.Parse()

	if *cachePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(context.Background(), *cachePath, *sourceDir); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, cachePath, sourceDir string) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := domain.DefaultCatalog()
	store := parquet.NewStore(cachePath, logger)

	fmt.Println("=== eGRID Dataset Validation ===")
	fmt.Println()

	// ── Load the dataset ──
	ds, err := store.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset: %v\n", err)
		return 1
	}
	fileCounts, err := store.CountByYear(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: count dataset: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateYears(ds, catalog),
		validateRecords(ds),
		validateAggregates(ds, fileCounts),
	}
	if sourceDir != "" {
		phases = append(phases, validateSourceParity(ctx, ds, catalog, sourceDir, logger))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d across %d years\n", len(ds.Records), len(ds.Years()))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateYears(ds domain.Dataset, catalog *domain.Catalog) *phase {
	p := &phase{name: "Phase 1: Years (catalog coverage)"}

	present := ds.Years()
	for _, year := range present {
		if _, err := catalog.Lookup(year); err != nil {
			p.errorf("year %d: %v", year, err)
		}
	}
	for _, year := range catalog.Years() {
		if !slices.Contains(present, year) {
			p.errorf("year %d: no records", year)
		}
	}
	return p
}

func validateRecords(ds domain.Dataset) *phase {
	p := &phase{name: "Phase 2: Records (field integrity)"}

	prevYear := 0
	for i, r := range ds.Records {
		if r.Year < prevYear {
			p.errorf("row %d: year %d after %d", i, r.Year, prevYear)
		}
		prevYear = r.Year

		if _, ok := domain.StateName(r.State); !ok {
			p.errorf("row %d: unknown state %q", i, r.State)
		}
		if r.Lat.Valid && (r.Lat.Float64 < -90 || r.Lat.Float64 > 90) {
			p.errorf("row %d: latitude %v out of range", i, r.Lat.Float64)
		}
		if r.Lon.Valid && (r.Lon.Float64 < -180 || r.Lon.Float64 > 180) {
			p.errorf("row %d: longitude %v out of range", i, r.Lon.Float64)
		}
	}
	return p
}

func validateAggregates(ds domain.Dataset, fileCounts map[int]int) *phase {
	p := &phase{name: "Phase 3: Aggregates (DuckDB vs decoded)"}

	decoded := ds.CountByYear()
	if !maps.Equal(decoded, fileCounts) {
		p.errorf("row counts differ: decoded %v, file %v", decoded, fileCounts)
	}
	return p
}

func validateSourceParity(ctx context.Context, ds domain.Dataset, catalog *domain.Catalog, sourceDir string, logger *slog.Logger) *phase {
	p := &phase{name: "Phase 4: Source Parity (re-normalized)"}

	normalizer := pipeline.NewNormalizer(spreadsheet.NewReader(logger), catalog, sourceDir, logger, observability.NewMetricsForTesting())
	cached := ds.CountByYear()
	for _, year := range catalog.Years() {
		records, err := normalizer.Normalize(ctx, year)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		if len(records) != cached[year] {
			p.errorf("year %d: source has %d rows, cache has %d", year, len(records), cached[year])
		}
	}
	return p
}
