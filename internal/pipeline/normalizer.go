package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/observability"
)

// TableReader parses one sheet of a source workbook starting at a header row.
type TableReader interface {
	ReadTable(ctx context.Context, path, sheet string, headerRow int) (domain.Table, error)
}

// Normalizer turns one year's source workbook into canonical plant records.
type Normalizer struct {
	reader    TableReader
	catalog   *domain.Catalog
	sourceDir string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewNormalizer creates a Normalizer reading workbooks from sourceDir.
func NewNormalizer(reader TableReader, catalog *domain.Catalog, sourceDir string, logger *slog.Logger, metrics *observability.Metrics) *Normalizer {
	return &Normalizer{
		reader:    reader,
		catalog:   catalog,
		sourceDir: sourceDir,
		logger:    logger,
		metrics:   metrics,
	}
}

// Normalize reads and normalizes the given year. Unsupported years fail
// before any file is touched. Every error is a *domain.YearError.
func (n *Normalizer) Normalize(ctx context.Context, year int) ([]domain.PlantRecord, error) {
	spec, err := n.catalog.Lookup(year)
	if err != nil {
		return nil, n.fail(year, err)
	}

	path := filepath.Join(n.sourceDir, spec.File)
	table, err := n.reader.ReadTable(ctx, path, spec.Sheet, spec.HeaderRow)
	if err != nil {
		return nil, n.fail(year, err)
	}

	records, stats, err := domain.NormalizeTable(table, spec, n.catalog.SequenceColumn(spec))
	if err != nil {
		return nil, n.fail(year, err)
	}

	if stats.BlankState > 0 {
		n.logger.Debug("rows without state dropped", "year", year, "count", stats.BlankState)
	}
	if stats.InvalidNumber > 0 {
		n.logger.Warn("non-numeric cells stored as null", "year", year, "count", stats.InvalidNumber)
		n.metrics.CellsCoerced.Add(float64(stats.InvalidNumber))
	}
	n.metrics.RowsNormalized.WithLabelValues(strconv.Itoa(year)).Add(float64(stats.Rows))
	n.logger.Info("year normalized",
		"year", year,
		"file", spec.File,
		"sheet", spec.Sheet,
		"convention", spec.Convention,
		"rows", stats.Rows,
	)
	return records, nil
}

func (n *Normalizer) fail(year int, err error) error {
	n.metrics.NormalizeFailures.WithLabelValues(domain.ErrorKind(err)).Inc()
	return &domain.YearError{Year: year, Err: err}
}
