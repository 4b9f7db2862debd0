package domain

import (
	"slices"
	"strconv"
)

// Table is a parsed sheet: named columns and string cells, in source order.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of the first column named name, or -1.
func (t Table) Index(name string) int {
	return slices.Index(t.Columns, name)
}

// Has reports whether the table carries a column named name.
func (t Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Column returns the cells of the named column, or nil if absent.
func (t Table) Column(name string) []string {
	i := t.Index(name)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// EnsureYearColumn adds a YEAR column holding spec.Year to tables that lack
// one. When both the year's sequence column (e.g. "SEQPLT04") and PSTATABB are
// present, YEAR is placed directly after the sequence column; otherwise it is
// appended. Tables that already carry YEAR are returned unchanged.
func EnsureYearColumn(t Table, spec YearSpec, sequenceColumn string) Table {
	if t.Has(ColYear) {
		return t
	}

	pos := len(t.Columns)
	if seq := t.Index(sequenceColumn); seq >= 0 && t.Has(ColState) {
		pos = seq + 1
	}

	year := strconv.Itoa(spec.Year)
	out := Table{
		Columns: slices.Insert(slices.Clone(t.Columns), pos, ColYear),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = slices.Insert(slices.Clone(row), pos, year)
	}
	return out
}

// Project keeps only the listed columns that are present, in the order given.
func Project(t Table, columns []string) Table {
	var keep []int
	out := Table{}
	for _, name := range columns {
		if i := t.Index(name); i >= 0 {
			keep = append(keep, i)
			out.Columns = append(out.Columns, name)
		}
	}
	out.Rows = make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		cells := make([]string, len(keep))
		for j, i := range keep {
			cells[j] = row[i]
		}
		out.Rows[r] = cells
	}
	return out
}
