package domain

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeStats counts rows that were dropped or coerced while building
// records from a table.
type NormalizeStats struct {
	Rows          int // records produced
	BlankState    int // rows dropped for lacking a state code
	InvalidNumber int // numeric cells that could not be parsed and became NULL
}

// NormalizeTable runs the year-column and projection steps on a parsed sheet
// and converts the result to canonical records. Row order is preserved.
func NormalizeTable(t Table, spec YearSpec, sequenceColumn string) ([]PlantRecord, NormalizeStats, error) {
	if len(t.Columns) == 0 {
		return nil, NormalizeStats{}, fmt.Errorf("%w: sheet %q has no header at row %d", ErrSchemaMismatch, spec.Sheet, spec.HeaderRow)
	}
	if !t.Has(ColState) {
		return nil, NormalizeStats{}, fmt.Errorf("%w: sheet %q row %d lacks column %s", ErrSchemaMismatch, spec.Sheet, spec.HeaderRow, ColState)
	}

	t = EnsureYearColumn(t, spec, sequenceColumn)
	t = Project(t, CanonicalColumns)
	return RecordsFromTable(t, spec.Year)
}

// RecordsFromTable converts a projected canonical table into PlantRecords.
// The table must carry YEAR and PSTATABB; other canonical columns are optional
// and absent ones are NULL.
func RecordsFromTable(t Table, year int) ([]PlantRecord, NormalizeStats, error) {
	var stats NormalizeStats
	idx := make(map[string]int, len(CanonicalColumns))
	for _, c := range CanonicalColumns {
		idx[c] = t.Index(c)
	}
	if idx[ColYear] < 0 || idx[ColState] < 0 {
		return nil, stats, fmt.Errorf("%w: table lacks %s or %s", ErrSchemaMismatch, ColYear, ColState)
	}

	cell := func(row []string, col string) string {
		if i := idx[col]; i >= 0 {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	str := func(row []string, col string) sql.NullString {
		v := cell(row, col)
		return sql.NullString{String: v, Valid: v != ""}
	}
	num := func(row []string, col string) sql.NullFloat64 {
		v, ok, valid := parseNumber(cell(row, col))
		if !valid {
			stats.InvalidNumber++
		}
		return sql.NullFloat64{Float64: v, Valid: ok}
	}

	records := make([]PlantRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		state := cell(row, ColState)
		if state == "" {
			stats.BlankState++
			continue
		}

		rowYear, err := parseYearCell(cell(row, ColYear), year)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: data row %d: %v", ErrSchemaMismatch, i+1, err)
		}

		records = append(records, PlantRecord{
			Year:         rowYear,
			State:        state,
			PlantName:    str(row, ColPlantName),
			County:       str(row, ColCounty),
			Lat:          num(row, ColLat),
			Lon:          num(row, ColLon),
			PrimaryFuel:  str(row, ColPrimaryFuel),
			NetGen:       num(row, ColNetGeneration),
			Nonrenewable: num(row, ColNonrenewableGen),
			Renewable:    num(row, ColRenewableGen),
		})
	}
	stats.Rows = len(records)
	return records, stats, nil
}

// parseYearCell accepts "2019" or "2019.0"; a blank cell takes the batch year.
func parseYearCell(s string, want int) (int, error) {
	if s == "" {
		return want, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid %s value %q", ColYear, s)
	}
	if int(f) != want {
		return 0, fmt.Errorf("%s value %d does not match data year %d", ColYear, int(f), want)
	}
	return want, nil
}

// parseNumber parses a raw numeric cell. ok reports a usable value; valid is
// false only for non-blank cells that are not numbers.
func parseNumber(s string) (v float64, ok, valid bool) {
	if s == "" {
		return 0, false, true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, false
	}
	return v, true, true
}
