// Package mockdata writes synthetic eGRID source workbooks. Each supported
// year gets a workbook under its catalog file name, laid out the way that
// year's real extract is: legacy years carry title rows above a header at row
// 4 and no YEAR column; modern years carry one description row and a YEAR
// column. Output is deterministic for a given seed.
package mockdata

import (
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"

	"github.com/couchcryptid/egrid-plants/internal/adapter/spreadsheet"
	"github.com/couchcryptid/egrid-plants/internal/domain"
)

type stateArea struct {
	code     string
	lat, lon float64 // approximate center
	counties []string
}

var states = []stateArea{
	{"TX", 31.0, -99.0, []string{"Harris", "Nolan", "Somervell", "Travis"}},
	{"OK", 35.5, -97.5, []string{"Oklahoma", "Tulsa", "Custer"}},
	{"CA", 37.0, -120.0, []string{"Kern", "San Luis Obispo", "Riverside"}},
	{"AL", 32.8, -86.8, []string{"Mobile", "Jefferson", "Walker"}},
	{"NM", 34.5, -106.0, []string{"San Juan", "Bernalillo"}},
	{"NY", 42.9, -75.5, []string{"Oswego", "Niagara", "Queens"}},
}

var fuels = []struct {
	code      string
	renewable bool
}{
	{"NG", false}, {"COL", false}, {"NUC", false}, {"OIL", false},
	{"WND", true}, {"SUN", true}, {"WAT", true}, {"BIOMASS", true},
}

// Options controls the generated data volume.
type Options struct {
	PlantsPerYear int
	Seed          uint64
}

// Generate writes one workbook per catalog year into dir and returns the
// paths written. Every file is Office Open XML, including those whose catalog
// name ends in .xls.
func Generate(dir string, catalog *domain.Catalog, opts Options) ([]string, error) {
	if opts.PlantsPerYear <= 0 {
		return nil, fmt.Errorf("plants per year must be positive, got %d", opts.PlantsPerYear)
	}

	var paths []string
	for _, year := range catalog.Years() {
		spec, err := catalog.Lookup(year)
		if err != nil {
			return nil, err
		}
		rng := rand.New(rand.NewPCG(opts.Seed, uint64(year)))
		sheet := yearSheet(spec, catalog.SequenceColumn(spec), opts.PlantsPerYear, rng)

		path := filepath.Join(dir, spec.File)
		if err := spreadsheet.WriteWorkbook(path, readmeSheet(spec), sheet); err != nil {
			return nil, fmt.Errorf("year %d: %w", year, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func readmeSheet(spec domain.YearSpec) spreadsheet.Sheet {
	return spreadsheet.Sheet{
		Name:    "Contents",
		Columns: []string{fmt.Sprintf("eGRID%d synthetic extract", spec.Year)},
	}
}

func yearSheet(spec domain.YearSpec, seqCol string, n int, rng *rand.Rand) spreadsheet.Sheet {
	sheet := spreadsheet.Sheet{Name: spec.Sheet, HeaderRow: spec.HeaderRow}

	// Legacy extracts have no YEAR column and list the sequence number first;
	// modern extracts put YEAR right after it.
	cols := []string{seqCol}
	if spec.Convention == domain.ConventionModern {
		cols = append(cols, domain.ColYear)
	}
	cols = append(cols,
		domain.ColState, domain.ColPlantName, "ORISPL", domain.ColCounty,
		domain.ColLat, domain.ColLon, domain.ColPrimaryFuel, "NAMEPCAP",
		domain.ColNetGeneration, domain.ColNonrenewableGen, domain.ColRenewableGen,
	)
	sheet.Columns = cols

	if spec.Convention == domain.ConventionLegacy {
		sheet.Titles = [][]any{
			{fmt.Sprintf("eGRID%d Plant File", spec.Year)},
			{},
			{"Plant file sequence number", "Plant state abbreviation", "Plant name"},
			{},
		}
	} else {
		sheet.Titles = [][]any{{"Plant file sequence number", "Data Year", "Plant state abbreviation"}}
	}

	for i := range n {
		st := states[rng.IntN(len(states))]
		fuel := fuels[rng.IntN(len(fuels))]
		capacity := round(5+rng.Float64()*1500, 1)
		gen := round(capacity*8760*(0.1+rng.Float64()*0.8), 3)
		nonren, ren := gen, 0.0
		if fuel.renewable {
			nonren, ren = 0, gen
		}

		row := []any{i + 1}
		if spec.Convention == domain.ConventionModern {
			row = append(row, spec.Year)
		}
		row = append(row,
			st.code,
			fmt.Sprintf("%s %s Plant %d", st.code, fuel.code, i+1),
			10000+i,
			st.counties[rng.IntN(len(st.counties))],
			round(st.lat+rng.NormFloat64(), 6),
			round(st.lon+rng.NormFloat64(), 6),
			fuel.code,
			capacity,
			gen,
			nonren,
			ren,
		)
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
