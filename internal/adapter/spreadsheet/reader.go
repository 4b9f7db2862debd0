// Package spreadsheet reads one sheet of an eGRID workbook into a domain.Table.
// Both Office Open XML (.xlsx) and legacy BIFF (.xls) workbooks are supported;
// the format is detected from the file header, not its extension.
package spreadsheet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/egrid-plants/internal/domain"
)

var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Format identifies a workbook container.
type Format int

const (
	FormatUnknown Format = iota
	FormatXLSX
	FormatXLS
)

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatXLS:
		return "xls"
	default:
		return "unknown"
	}
}

// Reader parses workbook sheets from the local filesystem.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a Reader. Cells that cannot be decoded are logged to logger.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadTable reads sheet from the workbook at path. Row headerRow (0-based)
// holds the column names; every later row that is not entirely blank becomes
// a data row padded or truncated to the header width.
func (r *Reader) ReadTable(ctx context.Context, path, sheet string, headerRow int) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Table{}, fmt.Errorf("%w: %s", domain.ErrSourceMissing, path)
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	format, err := Sniff(f)
	if err != nil {
		return domain.Table{}, fmt.Errorf("read workbook header %s: %w", path, err)
	}

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(f, sheet)
	case FormatXLS:
		rows, err = readXLS(f, sheet, r.logger)
	default:
		return domain.Table{}, fmt.Errorf("%w: %s is not a workbook", domain.ErrSchemaMismatch, path)
	}
	if err != nil {
		return domain.Table{}, err
	}

	return tableFromRows(rows, sheet, headerRow)
}

// Sniff detects the workbook format from the first bytes of r and rewinds it.
func Sniff(r io.ReadSeeker) (Format, error) {
	head := make([]byte, len(cfbMagic))
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatXLSX, nil
	case bytes.Equal(head, cfbMagic):
		return FormatXLS, nil
	default:
		return FormatUnknown, nil
	}
}

func readXLSX(r io.Reader, sheet string) ([][]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer wb.Close()

	if idx, err := wb.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: sheet %q not found", domain.ErrSchemaMismatch, sheet)
	}
	rows, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func tableFromRows(rows [][]string, sheet string, headerRow int) (domain.Table, error) {
	if headerRow >= len(rows) {
		return domain.Table{}, fmt.Errorf("%w: sheet %q has no row %d", domain.ErrSchemaMismatch, sheet, headerRow)
	}

	header := trimTrailingBlank(rows[headerRow])
	if len(header) == 0 {
		return domain.Table{}, fmt.Errorf("%w: sheet %q header row %d is empty", domain.ErrSchemaMismatch, sheet, headerRow)
	}

	t := domain.Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(h)
	}

	for _, raw := range rows[headerRow+1:] {
		if isBlank(raw) {
			continue
		}
		cells := make([]string, len(t.Columns))
		copy(cells, raw)
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

func trimTrailingBlank(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
