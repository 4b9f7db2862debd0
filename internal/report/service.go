package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/egrid-plants/internal/domain"
)

// DatasetLoader provides the unified dataset, building it if needed.
type DatasetLoader interface {
	LoadOrBuild(ctx context.Context) (domain.Dataset, error)
}

// Service answers dashboard requests against a dataset loaded once.
type Service struct {
	loader     DatasetLoader
	catalog    *domain.Catalog
	boundaries domain.BoundaryProvider
	renderer   *Renderer
	logger     *slog.Logger

	mu      sync.Mutex
	dataset *domain.Dataset
	loading *datasetLoad
}

// datasetLoad is a load in flight; done closes once ds and err are set.
type datasetLoad struct {
	done chan struct{}
	ds   domain.Dataset
	err  error
}

// NewService creates a Service. The dataset is loaded on first use.
func NewService(loader DatasetLoader, catalog *domain.Catalog, boundaries domain.BoundaryProvider, renderer *Renderer, logger *slog.Logger) *Service {
	return &Service{
		loader:     loader,
		catalog:    catalog,
		boundaries: boundaries,
		renderer:   renderer,
		logger:     logger,
	}
}

// Select validates a raw year and state without touching the dataset.
func (s *Service) Select(year, state string) (domain.Selection, error) {
	return domain.Select(s.catalog, s.boundaries, year, state)
}

// Regions lists the selectable region names.
func (s *Service) Regions() []string {
	return s.boundaries.Regions()
}

// Dataset returns the unified dataset, loading it on the first call.
// Concurrent callers share one load and wait for it without holding the
// lock; each stops waiting when its own ctx ends. A failed load is retried
// on the next call.
func (s *Service) Dataset(ctx context.Context) (domain.Dataset, error) {
	s.mu.Lock()
	if s.dataset != nil {
		ds := *s.dataset
		s.mu.Unlock()
		return ds, nil
	}
	load := s.loading
	if load == nil {
		load = &datasetLoad{done: make(chan struct{})}
		s.loading = load
		// The load outlives a canceled caller so that waiters still get it.
		go s.load(context.WithoutCancel(ctx), load)
	}
	s.mu.Unlock()

	select {
	case <-load.done:
		return load.ds, load.err
	case <-ctx.Done():
		return domain.Dataset{}, ctx.Err()
	}
}

func (s *Service) load(ctx context.Context, load *datasetLoad) {
	ds, err := s.loader.LoadOrBuild(ctx)

	s.mu.Lock()
	if err == nil {
		s.dataset = &ds
	} else {
		s.logger.Warn("dataset load failed, retrying on next request", "error", err)
	}
	s.loading = nil
	load.ds, load.err = ds, err
	s.mu.Unlock()
	close(load.done)
}

// Years lists the data years present in the dataset.
func (s *Service) Years(ctx context.Context) ([]int, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Years(), nil
}

// Dashboard renders the dashboard for a validated selection.
func (s *Service) Dashboard(ctx context.Context, sel domain.Selection) (*Dashboard, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}

	plants := ds.Plants(sel.Year.Year, sel.Code)
	if len(plants) == 0 {
		return nil, fmt.Errorf("%w for %s in %d", domain.ErrNoPlants, sel.DisplayName(), sel.Year.Year)
	}

	boundary, err := s.boundaries.Boundary(sel.Region)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, sel, plants, boundary)
}
