package spreadsheet

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/egrid-plants/internal/domain"
)

// eGRID2004_plant.xls is a BIFF8 workbook laid out like the 2004 plant file:
// title rows above a header on row 4, a "Contents" sheet ahead of the data
// sheet, and a shared string table split across a CONTINUE record.
const legacyFixture = "testdata/eGRID2004_plant.xls"

func TestReadTable_BIFF8Workbook(t *testing.T) {
	table, err := NewReader(discard()).ReadTable(context.Background(), legacyFixture, "EGRDPLNT04", 4)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"SEQPLT04", "PSTATABB", "PNAME", "CNTYNAME", "LAT", "LON",
		"PLPRMFL", "PLNGENAN", "PLGENATN", "PLGENATR",
	}, table.Columns)
	require.Len(t, table.Rows, 3, "blank rows are skipped")

	// RK integer, full-precision NUMBER coordinates, RK scaled by 100 and a
	// numeric formula result.
	assert.Equal(t, []string{"1", "AL", "Barry", "Mobile", "31.006944444444", "-88.010833333333", "COL", "1234.5", "1234.5", "0"}, table.Rows[0])
	// Shared string split mid-character-array, a custom number format on LAT,
	// an RK float and negative integers packed in a MULRK.
	assert.Equal(t, []string{"2", "TX", "Bad Creek – Unit 1", "Nolan", "32.123456789012", "-100.5", "PS", "-500", "-500", "0"}, table.Rows[1])
	// Formula string result, an #N/A cell and a two-decimal RK value.
	assert.Equal(t, []string{"3", "OK", "Formula Plant", "Tulsa", "36.15", "-95.99", "NG", "", "1234.56", "42"}, table.Rows[2])
}

func TestReadTable_BIFF8LogsErrorCells(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := NewReader(logger).ReadTable(context.Background(), legacyFixture, "EGRDPLNT04", 4)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "sheet=EGRDPLNT04 row=7 col=7")
	assert.Contains(t, out, "value=#N/A")
}

func TestReadTable_BIFF8SelectsSheetByName(t *testing.T) {
	table, err := NewReader(discard()).ReadTable(context.Background(), legacyFixture, "Contents", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"Plant list"}, table.Columns)
	assert.Empty(t, table.Rows)
}

func TestReadTable_BIFF8MissingSheet(t *testing.T) {
	_, err := NewReader(discard()).ReadTable(context.Background(), legacyFixture, "PLNT19", 1)

	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "PLNT19")
}

func TestReadTable_BIFF8Normalizes(t *testing.T) {
	spec, err := domain.DefaultCatalog().Lookup(2004)
	require.NoError(t, err)

	table, err := NewReader(discard()).ReadTable(context.Background(), legacyFixture, spec.Sheet, spec.HeaderRow)
	require.NoError(t, err)

	records, stats, err := domain.NormalizeTable(table, spec, "SEQPLT04")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Zero(t, stats.InvalidNumber)

	assert.Equal(t, 31.006944444444, records[0].Lat.Float64)
	assert.Equal(t, -88.010833333333, records[0].Lon.Float64)
	assert.Equal(t, 1234.5, records[0].NetGen.Float64)
	assert.Equal(t, sql.NullString{String: "Bad Creek – Unit 1", Valid: true}, records[1].PlantName)
	assert.Equal(t, -500.0, records[1].NetGen.Float64)
	assert.False(t, records[2].NetGen.Valid, "error cell must be NULL")
	assert.Equal(t, 1234.56, records[2].Nonrenewable.Float64)
}

func rkFloat(v float64) uint32 {
	return uint32(math.Float64bits(v) >> 32)
}

func rkInt(v int32, scaled bool) uint32 {
	rk := uint32(v<<2) | 0x02
	if scaled {
		rk |= 0x01
	}
	return rk
}

func TestDecodeRK(t *testing.T) {
	cases := []struct {
		name string
		rk   uint32
		want float64
	}{
		{"integer", rkInt(1, false), 1},
		{"zero", rkInt(0, false), 0},
		{"negative integer", rkInt(-500, false), -500},
		{"integer scaled", rkInt(123450, true), 1234.5},
		{"negative integer scaled", rkInt(-123456, true), -1234.56},
		{"float", rkFloat(-100.5), -100.5},
		{"float scaled", rkFloat(1.5) | 0x01, 0.015},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, decodeRK(tc.rk))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "3", formatNumber(3))
	assert.Equal(t, "-500", formatNumber(-500))
	assert.Equal(t, "32.123456789012", formatNumber(32.123456789012))
	assert.Equal(t, "12345678.901", formatNumber(12345678.901))
}

func u16(v int) []byte { return binary.LittleEndian.AppendUint16(nil, uint16(v)) }

func cat(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

func TestParseSST_SplitAcrossContinue(t *testing.T) {
	segs := [][]byte{
		// Counts, then "Alpha" stored compressed until the record ends.
		cat(binary.LittleEndian.AppendUint32(nil, 3), binary.LittleEndian.AppendUint32(nil, 3),
			u16(5), []byte{0x00}, []byte("Al")),
		// The continuation restates the width as UTF-16, then the next
		// header starts and is itself split without a flags byte.
		cat([]byte{0x01}, []byte("p\x00h\x00a\x00"), u16(3)[:1]),
		cat(u16(3)[1:], []byte{0x00}, []byte("Bob"),
			// Rich text with one formatting run.
			u16(2), []byte{0x08}, u16(1), []byte("Hi"), make([]byte, 4)),
	}

	got, err := parseSST(segs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Bob", "Hi"}, got)
}

func TestParseSST_Truncated(t *testing.T) {
	segs := [][]byte{cat(binary.LittleEndian.AppendUint32(nil, 1), binary.LittleEndian.AppendUint32(nil, 1), u16(10), []byte{0x00}, []byte("short"))}

	_, err := parseSST(segs)
	require.ErrorIs(t, err, errTruncated)
}

func biffRecord(typ int, data []byte) []byte {
	return cat(u16(typ), u16(len(data)), data)
}

func TestParseBIFF_RejectsNonBIFF8(t *testing.T) {
	stream := cat(biffRecord(recBOF, cat(u16(0x0500), u16(0x0005))), biffRecord(recEOF, nil))

	_, err := parseBIFF(stream)
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "0x0500")
}

func TestParseBIFF_RejectsEncrypted(t *testing.T) {
	stream := cat(biffRecord(recBOF, cat(u16(biff8Version), u16(0x0005))), biffRecord(recFilePass, make([]byte, 6)))

	_, err := parseBIFF(stream)
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestSheetRows_TruncatedRecord(t *testing.T) {
	// Globals naming one sheet, then a sheet whose RK record is cut short.
	name := "PLNT"
	sheetEntry := func(offset int) []byte {
		return cat(binary.LittleEndian.AppendUint32(nil, uint32(offset)), []byte{0, 0, byte(len(name)), 0}, []byte(name))
	}
	globals := cat(biffRecord(recBOF, cat(u16(biff8Version), u16(0x0005))), biffRecord(recBoundSheet, sheetEntry(0)), biffRecord(recEOF, nil))
	offset := len(globals)
	globals = cat(biffRecord(recBOF, cat(u16(biff8Version), u16(0x0005))), biffRecord(recBoundSheet, sheetEntry(offset)), biffRecord(recEOF, nil))
	stream := cat(globals,
		biffRecord(recBOF, cat(u16(biff8Version), u16(0x0010))),
		biffRecord(recRK, cat(u16(0), u16(0), u16(15))),
		biffRecord(recEOF, nil),
	)

	book, err := parseBIFF(stream)
	require.NoError(t, err)
	_, err = book.sheetRows(name, discard())
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "truncated")
}

func TestSheetRows_SkipsEmbeddedSubstreams(t *testing.T) {
	name := "PLNT"
	sheetEntry := cat(binary.LittleEndian.AppendUint32(nil, 0), []byte{0, 0, byte(len(name)), 0}, []byte(name))
	globals := cat(biffRecord(recBOF, cat(u16(biff8Version), u16(0x0005))), biffRecord(recBoundSheet, sheetEntry), biffRecord(recEOF, nil))
	binary.LittleEndian.PutUint32(globals[8+4:], uint32(len(globals)))

	rk := func(row, col int, v int32) []byte {
		return biffRecord(recRK, cat(u16(row), u16(col), u16(15), binary.LittleEndian.AppendUint32(nil, rkInt(v, false))))
	}
	stream := cat(globals,
		biffRecord(recBOF, cat(u16(biff8Version), u16(0x0010))),
		rk(0, 0, 7),
		// A chart substream: its cells are not part of the sheet.
		biffRecord(recBOF, cat(u16(biff8Version), u16(0x0020))),
		rk(0, 1, 99),
		biffRecord(recEOF, nil),
		rk(1, 0, -3),
		biffRecord(recEOF, nil),
	)

	book, err := parseBIFF(stream)
	require.NoError(t, err)
	rows, err := book.sheetRows(name, discard())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"7"}, {"-3"}}, rows)
}
