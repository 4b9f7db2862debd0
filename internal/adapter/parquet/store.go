// Package parquet persists the unified plant dataset as a single Parquet file
// using an embedded DuckDB instance.
package parquet

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/couchcryptid/egrid-plants/internal/domain"
)

const stagingTable = "plants"

// columnTypes maps each canonical column to its DuckDB type.
var columnTypes = map[string]string{
	domain.ColYear:            "INTEGER",
	domain.ColState:           "VARCHAR",
	domain.ColPlantName:       "VARCHAR",
	domain.ColCounty:          "VARCHAR",
	domain.ColLat:             "DOUBLE",
	domain.ColLon:             "DOUBLE",
	domain.ColPrimaryFuel:     "VARCHAR",
	domain.ColNetGeneration:   "DOUBLE",
	domain.ColNonrenewableGen: "DOUBLE",
	domain.ColRenewableGen:    "DOUBLE",
}

// Store reads and writes the dataset at a fixed path.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a Store for the Parquet file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Exists reports whether a dataset file is present.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat dataset: %w", err)
	}
	return true, nil
}

// Save writes ds to a temporary file beside the target and renames it into
// place, so an existing dataset is never left half-written. Failures wrap
// domain.ErrCachePersist.
func (s *Store) Save(ctx context.Context, ds domain.Dataset) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCachePersist, err)
	}

	tmp, err := os.CreateTemp(dir, ".egrid-*.parquet")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCachePersist, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if err := s.write(ctx, ds, tmpPath); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCachePersist, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCachePersist, err)
	}

	s.logger.Info("dataset persisted", "path", s.path, "rows", len(ds.Records))
	return nil
}

func (s *Store) write(ctx context.Context, ds domain.Dataset, target string) error {
	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer connector.Close()

	db := sql.OpenDB(connector)
	defer db.Close()

	if _, err := db.ExecContext(ctx, createTableSQL()); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	if err := appendRecords(ctx, connector, ds.Records); err != nil {
		return err
	}

	copySQL := fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET)", stagingTable, quoteLiteral(target))
	if _, err := db.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("copy to parquet: %w", err)
	}
	return nil
}

func appendRecords(ctx context.Context, connector *duckdb.Connector, records []domain.PlantRecord) error {
	conn, err := connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect duckdb: %w", err)
	}
	defer conn.Close()

	duckConn, ok := conn.(*duckdb.Conn)
	if !ok {
		return errors.New("duckdb connection has unexpected type")
	}

	appender, err := duckdb.NewAppenderFromConn(duckConn, "", stagingTable)
	if err != nil {
		return fmt.Errorf("create appender: %w", err)
	}

	for i, r := range records {
		if err := appender.AppendRow(rowValues(r)...); err != nil {
			_ = appender.Close()
			return fmt.Errorf("append record %d: %w", i, err)
		}
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush appender: %w", err)
	}
	return nil
}

func rowValues(r domain.PlantRecord) []driver.Value {
	return []driver.Value{
		int32(r.Year),
		r.State,
		nullString(r.PlantName),
		nullString(r.County),
		nullFloat(r.Lat),
		nullFloat(r.Lon),
		nullString(r.PrimaryFuel),
		nullFloat(r.NetGen),
		nullFloat(r.Nonrenewable),
		nullFloat(r.Renewable),
	}
}

// Load reads the dataset file. A file whose columns are not the canonical set
// in canonical order is rejected with domain.ErrSchemaMismatch.
func (s *Store) Load(ctx context.Context) (domain.Dataset, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT * FROM read_parquet(%s)", quoteLiteral(s.path))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("read dataset %s: %w", s.path, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("read dataset columns: %w", err)
	}
	if !slices.Equal(cols, domain.CanonicalColumns) {
		return domain.Dataset{}, fmt.Errorf("%w: dataset columns %v", domain.ErrSchemaMismatch, cols)
	}

	var ds domain.Dataset
	for rows.Next() {
		var r domain.PlantRecord
		if err := rows.Scan(
			&r.Year, &r.State, &r.PlantName, &r.County, &r.Lat, &r.Lon,
			&r.PrimaryFuel, &r.NetGen, &r.Nonrenewable, &r.Renewable,
		); err != nil {
			return domain.Dataset{}, fmt.Errorf("scan dataset row: %w", err)
		}
		ds.Records = append(ds.Records, r)
	}
	if err := rows.Err(); err != nil {
		return domain.Dataset{}, fmt.Errorf("iterate dataset: %w", err)
	}

	s.logger.Debug("dataset loaded", "path", s.path, "rows", len(ds.Records))
	return ds, nil
}

// CountByYear aggregates the file directly, without materializing records.
func (s *Store) CountByYear(ctx context.Context) (map[int]int, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf(`SELECT "YEAR", count(*) FROM read_parquet(%s) GROUP BY "YEAR" ORDER BY "YEAR"`, quoteLiteral(s.path))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count dataset rows: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var year, n int
		if err := rows.Scan(&year, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[year] = n
	}
	return counts, rows.Err()
}

func nullString(v sql.NullString) driver.Value {
	if !v.Valid {
		return nil
	}
	return v.String
}

func nullFloat(v sql.NullFloat64) driver.Value {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

func createTableSQL() string {
	defs := make([]string, len(domain.CanonicalColumns))
	for i, c := range domain.CanonicalColumns {
		defs[i] = quoteIdent(c) + " " + columnTypes[c]
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", stagingTable, strings.Join(defs, ", "))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
