package spreadsheet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"

	"github.com/couchcryptid/egrid-plants/internal/domain"
)

// BIFF8 record types.
const (
	recBOF        = 0x0809
	recEOF        = 0x000A
	recFilePass   = 0x002F
	recBoundSheet = 0x0085
	recSST        = 0x00FC
	recContinue   = 0x003C
	recNumber     = 0x0203
	recRK         = 0x027E
	recMulRK      = 0x00BD
	recLabelSST   = 0x00FD
	recLabel      = 0x0204
	recRString    = 0x00D6
	recFormula    = 0x0006
	recString     = 0x0207
	recBoolErr    = 0x0205
)

const (
	biff8Version   = 0x0600
	workbookStream = "Workbook"
)

var errTruncated = errors.New("truncated BIFF record")

var le = binary.LittleEndian

// errorValues names the BIFF8 cell error codes.
var errorValues = map[byte]string{
	0x00: "#NULL!", 0x07: "#DIV/0!", 0x0F: "#VALUE!", 0x17: "#REF!",
	0x1D: "#NAME?", 0x24: "#NUM!", 0x2A: "#N/A",
}

type record struct {
	typ  uint16
	data []byte
}

type boundSheet struct {
	name   string
	offset int
	kind   byte // 0 is a worksheet
}

// biffBook is the globals substream of a BIFF8 workbook stream.
type biffBook struct {
	stream []byte
	sheets []boundSheet
	sst    []string
}

// readXLS decodes sheet from a BIFF8 workbook held in a compound file.
// Numeric cells are rendered from their stored values, independent of the
// cell's number format.
func readXLS(ra io.ReaderAt, sheet string, logger *slog.Logger) ([][]string, error) {
	doc, err := mscfb.New(ra)
	if err != nil {
		return nil, fmt.Errorf("%w: open xls container: %v", domain.ErrSchemaMismatch, err)
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != workbookStream {
			continue
		}
		stream := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, stream); err != nil {
			return nil, fmt.Errorf("read xls workbook stream: %w", err)
		}
		book, err := parseBIFF(stream)
		if err != nil {
			return nil, err
		}
		return book.sheetRows(sheet, logger)
	}
	return nil, fmt.Errorf("%w: no BIFF8 workbook stream", domain.ErrSchemaMismatch)
}

func readRecord(stream []byte, off int) (record, int, error) {
	if off+4 > len(stream) {
		return record{}, off, errTruncated
	}
	typ := le.Uint16(stream[off:])
	end := off + 4 + int(le.Uint16(stream[off+2:]))
	if end > len(stream) {
		return record{}, off, errTruncated
	}
	return record{typ: typ, data: stream[off+4 : end]}, end, nil
}

func parseBIFF(stream []byte) (*biffBook, error) {
	rec, off, err := readRecord(stream, 0)
	if err != nil || rec.typ != recBOF || len(rec.data) < 2 {
		return nil, fmt.Errorf("%w: workbook stream does not start with BOF", domain.ErrSchemaMismatch)
	}
	if v := le.Uint16(rec.data); v != biff8Version {
		return nil, fmt.Errorf("%w: unsupported BIFF version %#06x", domain.ErrSchemaMismatch, v)
	}

	b := &biffBook{stream: stream}
	for {
		rec, next, err := readRecord(stream, off)
		if err != nil {
			return nil, fmt.Errorf("%w: workbook globals: %v", domain.ErrSchemaMismatch, err)
		}
		switch rec.typ {
		case recEOF:
			return b, nil
		case recFilePass:
			return nil, fmt.Errorf("%w: workbook is password protected", domain.ErrSchemaMismatch)
		case recBoundSheet:
			sh, err := parseBoundSheet(rec.data)
			if err != nil {
				return nil, err
			}
			b.sheets = append(b.sheets, sh)
		case recSST:
			segs := [][]byte{rec.data}
			for {
				cont, after, err := readRecord(stream, next)
				if err != nil || cont.typ != recContinue {
					break
				}
				segs = append(segs, cont.data)
				next = after
			}
			if b.sst, err = parseSST(segs); err != nil {
				return nil, fmt.Errorf("%w: shared strings: %v", domain.ErrSchemaMismatch, err)
			}
		}
		off = next
	}
}

func parseBoundSheet(data []byte) (boundSheet, error) {
	if len(data) < 8 {
		return boundSheet{}, fmt.Errorf("%w: sheet entry: %v", domain.ErrSchemaMismatch, errTruncated)
	}
	cch := int(data[6])
	name, err := decodeChars(data[8:], cch, data[7]&0x01 != 0)
	if err != nil {
		return boundSheet{}, fmt.Errorf("%w: sheet name: %v", domain.ErrSchemaMismatch, err)
	}
	return boundSheet{name: name, offset: int(le.Uint32(data)), kind: data[5]}, nil
}

// decodeChars reads cch characters, one byte each (Latin-1) or UTF-16LE.
func decodeChars(b []byte, cch int, wide bool) (string, error) {
	size := 1
	if wide {
		size = 2
	}
	if len(b) < cch*size {
		return "", errTruncated
	}
	units := make([]uint16, cch)
	for i := range units {
		if wide {
			units[i] = le.Uint16(b[2*i:])
		} else {
			units[i] = uint16(b[i])
		}
	}
	return string(utf16.Decode(units)), nil
}

// xlString decodes an XLUnicodeString: a 16-bit count, a flags byte, characters.
func xlString(b []byte) (string, error) {
	if len(b) < 3 {
		return "", errTruncated
	}
	return decodeChars(b[3:], int(le.Uint16(b)), b[2]&0x01 != 0)
}

// segmentReader walks an SST record and its CONTINUE records as one buffer.
type segmentReader struct {
	segs [][]byte
	seg  int
	off  int
}

func (r *segmentReader) next(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if r.seg >= len(r.segs) {
			return nil, errTruncated
		}
		cur := r.segs[r.seg][r.off:]
		if len(cur) == 0 {
			r.seg++
			r.off = 0
			continue
		}
		take := min(n-len(out), len(cur))
		out = append(out, cur[:take]...)
		r.off += take
	}
	return out, nil
}

// chars reads cch characters. A string split across records resumes after a
// flags byte that restates the character width.
func (r *segmentReader) chars(cch int, wide bool) (string, error) {
	units := make([]uint16, 0, cch)
	for cch > 0 {
		if r.seg >= len(r.segs) {
			return "", errTruncated
		}
		cur := r.segs[r.seg][r.off:]
		size := 1
		if wide {
			size = 2
		}
		n := min(cch, len(cur)/size)
		if n == 0 {
			r.seg++
			if r.seg >= len(r.segs) || len(r.segs[r.seg]) == 0 {
				return "", errTruncated
			}
			wide = r.segs[r.seg][0]&0x01 != 0
			r.off = 1
			continue
		}
		for i := range n {
			if wide {
				units = append(units, le.Uint16(cur[2*i:]))
			} else {
				units = append(units, uint16(cur[i]))
			}
		}
		r.off += n * size
		cch -= n
	}
	return string(utf16.Decode(units)), nil
}

func parseSST(segs [][]byte) ([]string, error) {
	r := &segmentReader{segs: segs}
	head, err := r.next(8)
	if err != nil {
		return nil, err
	}
	unique := int(le.Uint32(head[4:]))

	strs := make([]string, 0, min(unique, 1<<16))
	for range unique {
		h, err := r.next(3)
		if err != nil {
			return nil, err
		}
		cch, flags := int(le.Uint16(h)), h[2]

		var runs, ext int
		if flags&0x08 != 0 {
			b, err := r.next(2)
			if err != nil {
				return nil, err
			}
			runs = int(le.Uint16(b))
		}
		if flags&0x04 != 0 {
			b, err := r.next(4)
			if err != nil {
				return nil, err
			}
			ext = int(le.Uint32(b))
		}

		s, err := r.chars(cch, flags&0x01 != 0)
		if err != nil {
			return nil, err
		}
		// Formatting runs and phonetic data are skipped.
		if _, err := r.next(4*runs + ext); err != nil {
			return nil, err
		}
		strs = append(strs, s)
	}
	return strs, nil
}

// decodeRK unpacks an RK value: a 30-bit signed integer or the high 30 bits
// of an IEEE double, optionally scaled by 1/100.
func decodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type sheetGrid struct {
	rows map[int][]string
	max  int
}

func (g *sheetGrid) set(row, col int, v string) {
	cells := g.rows[row]
	if col >= len(cells) {
		grown := make([]string, col+1)
		copy(grown, cells)
		cells = grown
	}
	cells[col] = v
	g.rows[row] = cells
	g.max = max(g.max, row)
}

func (g *sheetGrid) slice() [][]string {
	if len(g.rows) == 0 {
		return nil
	}
	out := make([][]string, g.max+1)
	for r, cells := range g.rows {
		out[r] = cells
	}
	return out
}

func (b *biffBook) sheetRows(name string, logger *slog.Logger) ([][]string, error) {
	var sh *boundSheet
	for i := range b.sheets {
		if b.sheets[i].kind == 0 && b.sheets[i].name == name {
			sh = &b.sheets[i]
			break
		}
	}
	if sh == nil {
		return nil, fmt.Errorf("%w: sheet %q not found", domain.ErrSchemaMismatch, name)
	}

	rec, off, err := readRecord(b.stream, sh.offset)
	if err != nil || rec.typ != recBOF {
		return nil, fmt.Errorf("%w: sheet %q does not start with BOF", domain.ErrSchemaMismatch, name)
	}

	grid := &sheetGrid{rows: make(map[int][]string)}
	// pending is the cell whose formula result follows in a STRING record.
	pending := [2]int{-1, -1}
	depth := 0

	for {
		rec, next, err := readRecord(b.stream, off)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", domain.ErrSchemaMismatch, name, err)
		}
		off = next

		// Embedded substreams (charts) carry their own BOF/EOF pairs.
		switch rec.typ {
		case recBOF:
			depth++
			continue
		case recEOF:
			if depth == 0 {
				return grid.slice(), nil
			}
			depth--
			continue
		}
		if depth > 0 {
			continue
		}

		if err := b.decodeCell(rec, grid, &pending, name, logger); err != nil {
			return nil, fmt.Errorf("%w: sheet %q record %#06x: %v", domain.ErrSchemaMismatch, name, rec.typ, err)
		}
	}
}

func (b *biffBook) decodeCell(rec record, grid *sheetGrid, pending *[2]int, sheet string, logger *slog.Logger) error {
	d := rec.data
	cellAt := func(minLen int) (int, int, error) {
		if len(d) < minLen {
			return 0, 0, errTruncated
		}
		return int(le.Uint16(d)), int(le.Uint16(d[2:])), nil
	}

	switch rec.typ {
	case recNumber:
		row, col, err := cellAt(14)
		if err != nil {
			return err
		}
		grid.set(row, col, formatNumber(math.Float64frombits(le.Uint64(d[6:]))))

	case recRK:
		row, col, err := cellAt(10)
		if err != nil {
			return err
		}
		grid.set(row, col, formatNumber(decodeRK(le.Uint32(d[6:]))))

	case recMulRK:
		row, first, err := cellAt(6)
		if err != nil {
			return err
		}
		n := (len(d) - 6) / 6
		last := int(le.Uint16(d[len(d)-2:]))
		if (len(d)-6)%6 != 0 || last-first+1 != n {
			return fmt.Errorf("MULRK spans columns %d-%d with %d values", first, last, n)
		}
		for i := range n {
			grid.set(row, first+i, formatNumber(decodeRK(le.Uint32(d[4+6*i+2:]))))
		}

	case recLabelSST:
		row, col, err := cellAt(10)
		if err != nil {
			return err
		}
		idx := int(le.Uint32(d[6:]))
		if idx >= len(b.sst) {
			return fmt.Errorf("shared string %d out of range", idx)
		}
		grid.set(row, col, b.sst[idx])

	case recLabel, recRString:
		row, col, err := cellAt(9)
		if err != nil {
			return err
		}
		s, err := xlString(d[6:])
		if err != nil {
			return err
		}
		grid.set(row, col, s)

	case recFormula:
		row, col, err := cellAt(20)
		if err != nil {
			return err
		}
		val := d[6:14]
		if val[6] != 0xFF || val[7] != 0xFF {
			grid.set(row, col, formatNumber(math.Float64frombits(le.Uint64(val))))
			return nil
		}
		switch val[0] {
		case 0x00:
			*pending = [2]int{row, col}
		case 0x01:
			grid.set(row, col, boolString(val[2]))
		case 0x02:
			cellError(logger, sheet, row, col, val[2])
		case 0x03:
			grid.set(row, col, "")
		}

	case recString:
		if pending[0] < 0 {
			return nil
		}
		s, err := xlString(d)
		if err != nil {
			return err
		}
		grid.set(pending[0], pending[1], s)
		*pending = [2]int{-1, -1}

	case recBoolErr:
		row, col, err := cellAt(8)
		if err != nil {
			return err
		}
		if d[7] != 0 {
			cellError(logger, sheet, row, col, d[6])
			return nil
		}
		grid.set(row, col, boolString(d[6]))
	}
	return nil
}

func boolString(b byte) string {
	if b != 0 {
		return "TRUE"
	}
	return "FALSE"
}

// cellError logs a cell holding an error value; the cell reads as blank.
func cellError(logger *slog.Logger, sheet string, row, col int, code byte) {
	value, ok := errorValues[code]
	if !ok {
		value = fmt.Sprintf("error %#04x", code)
	}
	logger.Warn("cell holds an error value, reading it as blank",
		"sheet", sheet,
		"row", row,
		"col", col,
		"value", value,
	)
}
