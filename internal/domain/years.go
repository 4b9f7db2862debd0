package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed years.yaml
var defaultYearsYAML []byte

// Convention identifies the column-naming layout of a year's plant sheet.
type Convention string

const (
	ConventionLegacy Convention = "legacy"
	ConventionModern Convention = "modern"
)

// YearSpec describes how to read one data year's plant sheet.
type YearSpec struct {
	Year       int
	File       string
	Sheet      string
	HeaderRow  int // 0-based row holding the column codes
	Convention Convention
}

// Suffix returns the two-digit year suffix used in sheet and column names.
func (s YearSpec) Suffix() string {
	return fmt.Sprintf("%02d", s.Year%100)
}

// Catalog is the static table of supported years.
type Catalog struct {
	first, last    int
	excluded       map[int]bool
	sequencePrefix string
	specs          map[int]YearSpec
	years          []int
}

type catalogFile struct {
	FirstYear     int   `yaml:"first_year"`
	LastYear      int   `yaml:"last_year"`
	ExcludedYears []int `yaml:"excluded_years"`
	Sheets        struct {
		LegacyYear int    `yaml:"legacy_year"`
		LegacyName string `yaml:"legacy_name"`
		Prefix     string `yaml:"prefix"`
	} `yaml:"sheets"`
	Headers struct {
		LegacyThrough int `yaml:"legacy_through"`
		LegacyRow     int `yaml:"legacy_row"`
		ModernRow     int `yaml:"modern_row"`
	} `yaml:"headers"`
	SequencePrefix string         `yaml:"sequence_prefix"`
	Files          map[int]string `yaml:"files"`
}

var defaultCatalog = mustParseCatalog(defaultYearsYAML)

// DefaultCatalog returns the built-in eGRID year table.
func DefaultCatalog() *Catalog { return defaultCatalog }

func mustParseCatalog(data []byte) *Catalog {
	c, err := ParseCatalog(data)
	if err != nil {
		panic(fmt.Sprintf("embedded year table: %v", err))
	}
	return c
}

// ParseCatalog builds a Catalog from its YAML form. Every year in range that
// is not excluded must name a source file.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse year table: %w", err)
	}
	if f.FirstYear <= 0 || f.LastYear < f.FirstYear {
		return nil, errors.New("year table: invalid year range")
	}
	if f.Sheets.Prefix == "" || f.Sheets.LegacyName == "" {
		return nil, errors.New("year table: sheet names are required")
	}

	c := &Catalog{
		first:          f.FirstYear,
		last:           f.LastYear,
		excluded:       make(map[int]bool, len(f.ExcludedYears)),
		sequencePrefix: f.SequencePrefix,
		specs:          make(map[int]YearSpec),
	}
	for _, y := range f.ExcludedYears {
		c.excluded[y] = true
	}

	for y := f.FirstYear; y <= f.LastYear; y++ {
		file, hasFile := f.Files[y]
		if c.excluded[y] {
			if hasFile {
				return nil, fmt.Errorf("year table: excluded year %d has a source file", y)
			}
			continue
		}
		if !hasFile || file == "" {
			return nil, fmt.Errorf("year table: no source file for %d", y)
		}

		spec := YearSpec{Year: y, File: file}
		if y == f.Sheets.LegacyYear {
			spec.Sheet = f.Sheets.LegacyName
		} else {
			spec.Sheet = f.Sheets.Prefix + spec.Suffix()
		}
		if y <= f.Headers.LegacyThrough {
			spec.HeaderRow = f.Headers.LegacyRow
			spec.Convention = ConventionLegacy
		} else {
			spec.HeaderRow = f.Headers.ModernRow
			spec.Convention = ConventionModern
		}
		c.specs[y] = spec
		c.years = append(c.years, y)
	}
	for y := range f.Files {
		if y < f.FirstYear || y > f.LastYear {
			return nil, fmt.Errorf("year table: source file for out-of-range year %d", y)
		}
	}
	return c, nil
}

// Years returns the supported years in ascending order.
func (c *Catalog) Years() []int {
	return slices.Clone(c.years)
}

// Range returns the first and last year of the supported range.
func (c *Catalog) Range() (first, last int) {
	return c.first, c.last
}

// Lookup returns the spec for year, or ErrUnsupportedYear when the year is
// out of range or has no published extract.
func (c *Catalog) Lookup(year int) (YearSpec, error) {
	if year < c.first || year > c.last {
		return YearSpec{}, fmt.Errorf("%w: year must be between %d and %d", ErrUnsupportedYear, c.first, c.last)
	}
	spec, ok := c.specs[year]
	if !ok {
		return YearSpec{}, fmt.Errorf("%w: eGRID data for %d is not available", ErrUnsupportedYear, year)
	}
	return spec, nil
}

// ParseYear parses a user-supplied year and validates it against the catalog.
func (c *Catalog) ParseYear(s string) (YearSpec, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return YearSpec{}, fmt.Errorf("%w: %q is not a year", ErrUnsupportedYear, s)
	}
	return c.Lookup(year)
}

// SequenceColumn returns the per-year sequence column name, e.g. "SEQPLT04".
func (c *Catalog) SequenceColumn(spec YearSpec) string {
	return c.sequencePrefix + spec.Suffix()
}
