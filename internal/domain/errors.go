package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by normalization, caching, and selection.
var (
	ErrUnsupportedYear = errors.New("unsupported year")
	ErrUnknownRegion   = errors.New("unknown region")
	ErrSourceMissing   = errors.New("source missing")
	ErrSchemaMismatch  = errors.New("schema mismatch")
	ErrCachePersist    = errors.New("cache persist failure")
	ErrNoPlants        = errors.New("no plant data")
)

// YearError attaches the offending data year to a normalization failure.
type YearError struct {
	Year int
	Err  error
}

func (e *YearError) Error() string {
	return fmt.Sprintf("year %d: %v", e.Year, e.Err)
}

func (e *YearError) Unwrap() error { return e.Err }

// ErrorKind maps an error to a short label for metrics and diagnostics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedYear):
		return "unsupported_year"
	case errors.Is(err, ErrUnknownRegion):
		return "unknown_region"
	case errors.Is(err, ErrSourceMissing):
		return "source_missing"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrCachePersist):
		return "cache_persist"
	case errors.Is(err, ErrNoPlants):
		return "no_plants"
	default:
		return "other"
	}
}
