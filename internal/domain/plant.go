package domain

import (
	"database/sql"
	"slices"
)

// Canonical column names, in canonical order.
const (
	ColYear            = "YEAR"
	ColState           = "PSTATABB"
	ColPlantName       = "PNAME"
	ColCounty          = "CNTYNAME"
	ColLat             = "LAT"
	ColLon             = "LON"
	ColPrimaryFuel     = "PLPRMFL"
	ColNetGeneration   = "PLNGENAN"
	ColNonrenewableGen = "PLGENATN"
	ColRenewableGen    = "PLGENATR"
)

// CanonicalColumns is the fixed column set retained after normalization.
var CanonicalColumns = []string{
	ColYear, ColState, ColPlantName, ColCounty, ColLat, ColLon,
	ColPrimaryFuel, ColNetGeneration, ColNonrenewableGen, ColRenewableGen,
}

// PlantRecord is one normalized plant row for one data year.
type PlantRecord struct {
	Year         int
	State        string
	PlantName    sql.NullString
	County       sql.NullString
	Lat          sql.NullFloat64
	Lon          sql.NullFloat64
	PrimaryFuel  sql.NullString
	NetGen       sql.NullFloat64 // MWh
	Nonrenewable sql.NullFloat64 // MWh
	Renewable    sql.NullFloat64 // MWh
}

// HasCoordinates reports whether both latitude and longitude are known.
func (r PlantRecord) HasCoordinates() bool {
	return r.Lat.Valid && r.Lon.Valid
}

// Dataset is the unified, year-ordered sequence of plant records.
type Dataset struct {
	Records []PlantRecord
}

// Years returns the distinct years present, ascending.
func (d Dataset) Years() []int {
	seen := make(map[int]struct{})
	var years []int
	for _, r := range d.Records {
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		years = append(years, r.Year)
	}
	slices.Sort(years)
	return years
}

// Plants returns the records for one year and state code, in dataset order.
func (d Dataset) Plants(year int, state string) []PlantRecord {
	var out []PlantRecord
	for _, r := range d.Records {
		if r.Year == year && r.State == state {
			out = append(out, r)
		}
	}
	return out
}

// CountByYear returns the number of records per year.
func (d Dataset) CountByYear() map[int]int {
	counts := make(map[int]int)
	for _, r := range d.Records {
		counts[r.Year]++
	}
	return counts
}
