package spreadsheet

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// Sheet is one sheet to write: title lines above the header, the header
// itself at row HeaderRow (0-based), then data rows.
type Sheet struct {
	Name      string
	HeaderRow int
	Titles    [][]any // written from the first row; len must not exceed HeaderRow
	Columns   []string
	Rows      [][]any
}

// WriteWorkbook writes the sheets to a new .xlsx workbook at path. The file
// is always Office Open XML regardless of the extension in path.
func WriteWorkbook(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("write workbook %s: no sheets", path)
	}

	wb := excelize.NewFile()
	defer wb.Close()

	for i, s := range sheets {
		if len(s.Titles) > s.HeaderRow {
			return fmt.Errorf("sheet %q: %d title rows do not fit above header row %d", s.Name, len(s.Titles), s.HeaderRow)
		}
		if i == 0 {
			if err := wb.SetSheetName(wb.GetSheetName(0), s.Name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := wb.NewSheet(s.Name); err != nil {
			return fmt.Errorf("add sheet %q: %w", s.Name, err)
		}

		for r, title := range s.Titles {
			if err := setRow(wb, s.Name, r, title); err != nil {
				return err
			}
		}

		header := make([]any, len(s.Columns))
		for c, name := range s.Columns {
			header[c] = name
		}
		if err := setRow(wb, s.Name, s.HeaderRow, header); err != nil {
			return err
		}
		for r, row := range s.Rows {
			if err := setRow(wb, s.Name, s.HeaderRow+1+r, row); err != nil {
				return err
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if _, err := wb.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write workbook %s: %w", path, err)
	}
	return f.Close()
}

func setRow(wb *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row+1)
	if err != nil {
		return err
	}
	if err := wb.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("sheet %q row %d: %w", sheet, row, err)
	}
	return nil
}
