package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/observability"
)

// YearNormalizer produces the canonical records for one data year.
type YearNormalizer interface {
	Normalize(ctx context.Context, year int) ([]domain.PlantRecord, error)
}

// DatasetStore persists the unified dataset.
type DatasetStore interface {
	Exists() (bool, error)
	Load(ctx context.Context) (domain.Dataset, error)
	Save(ctx context.Context, ds domain.Dataset) error
}

// Cache builds the unified dataset once and serves it from the store afterwards.
type Cache struct {
	store      DatasetStore
	normalizer YearNormalizer
	years      []int
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// NewCache creates a Cache that builds from the given years, in the order given.
func NewCache(store DatasetStore, normalizer YearNormalizer, years []int, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{
		store:      store,
		normalizer: normalizer,
		years:      years,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a dataset has been loaded or built.
func (c *Cache) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("dataset has not been loaded yet")
	}
	return nil
}

// LoadOrBuild returns the persisted dataset if present; otherwise it
// normalizes every year, persists the concatenation, and returns it.
func (c *Cache) LoadOrBuild(ctx context.Context) (domain.Dataset, error) {
	exists, err := c.store.Exists()
	if err != nil {
		return domain.Dataset{}, err
	}
	if !exists {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		c.logger.Info("dataset cache miss, building")
		return c.Build(ctx)
	}

	c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	ds, err := c.store.Load(ctx)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("load cached dataset: %w", err)
	}
	c.loaded(ds)
	c.logger.Info("dataset loaded from cache", "rows", len(ds.Records))
	return ds, nil
}

// Build normalizes every year and persists the result, replacing any
// existing dataset. If any year fails, nothing is written.
func (c *Cache) Build(ctx context.Context) (domain.Dataset, error) {
	start := time.Now()

	var ds domain.Dataset
	for _, year := range c.years {
		if err := ctx.Err(); err != nil {
			return domain.Dataset{}, err
		}
		records, err := c.normalizer.Normalize(ctx, year)
		if err != nil {
			c.logger.Error("build aborted", "year", year, "error", err)
			return domain.Dataset{}, err
		}
		ds.Records = append(ds.Records, records...)
	}

	if err := c.store.Save(ctx, ds); err != nil {
		return domain.Dataset{}, err
	}

	elapsed := time.Since(start)
	c.metrics.BuildDuration.Observe(elapsed.Seconds())
	c.loaded(ds)
	c.logger.Info("dataset built", "years", len(c.years), "rows", len(ds.Records), "duration", elapsed)
	return ds, nil
}

func (c *Cache) loaded(ds domain.Dataset) {
	c.metrics.DatasetRows.Set(float64(len(ds.Records)))
	c.ready.Store(true)
}
