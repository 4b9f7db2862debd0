package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/paulmach/orb"
)

// BoundaryProvider supplies WGS84 polygon geometry keyed by region name.
type BoundaryProvider interface {
	// Regions lists the region names the provider knows, as stored.
	Regions() []string

	// Boundary returns the geometry for a region, matched case-insensitively.
	Boundary(name string) (orb.MultiPolygon, error)
}

// StaticBoundaries is an in-memory BoundaryProvider.
type StaticBoundaries map[string]orb.MultiPolygon

func (s StaticBoundaries) Regions() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s StaticBoundaries) Boundary(name string) (orb.MultiPolygon, error) {
	for k, v := range s {
		if strings.EqualFold(k, strings.TrimSpace(name)) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, name)
}

// Selection is a validated (year, state) request.
type Selection struct {
	Year   YearSpec
	Region string // region name as known to the boundary provider
	Code   string // postal code used in PSTATABB
}

// DisplayName is the title-cased region name.
func (s Selection) DisplayName() string {
	return TitleCase(s.Region)
}

// ResolveRegion validates a user-supplied state (full name or postal code)
// against the boundary provider's region set.
func ResolveRegion(input string, boundaries BoundaryProvider) (region, code string, err error) {
	input = strings.TrimSpace(input)
	name := input
	if len(input) == 2 {
		if n, ok := StateName(input); ok {
			name = n
		}
	}

	code, ok := StateCode(name)
	if !ok {
		return "", "", fmt.Errorf("%w: %s is not a state in the contiguous US", ErrUnknownRegion, TitleCase(input))
	}
	for _, r := range boundaries.Regions() {
		if strings.EqualFold(r, name) {
			return r, code, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s is not a state in the contiguous US", ErrUnknownRegion, TitleCase(name))
}

// Select validates a year and state before any dataset work happens.
func Select(catalog *Catalog, boundaries BoundaryProvider, year, state string) (Selection, error) {
	spec, err := catalog.ParseYear(year)
	if err != nil {
		return Selection{}, err
	}
	region, code, err := ResolveRegion(state, boundaries)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Year: spec, Region: region, Code: code}, nil
}
