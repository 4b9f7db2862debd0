package report

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/observability"
)

type countingLoader struct {
	calls int
	ds    domain.Dataset
	err   error
}

func (l *countingLoader) LoadOrBuild(_ context.Context) (domain.Dataset, error) {
	l.calls++
	return l.ds, l.err
}

// gatedLoader blocks every load until release is closed.
type gatedLoader struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	ds      domain.Dataset
}

func newGatedLoader(ds domain.Dataset) *gatedLoader {
	return &gatedLoader{started: make(chan struct{}, 1), release: make(chan struct{}), ds: ds}
}

func (l *gatedLoader) LoadOrBuild(_ context.Context) (domain.Dataset, error) {
	l.calls.Add(1)
	select {
	case l.started <- struct{}{}:
	default:
	}
	<-l.release
	return l.ds, nil
}

func newTestService(loader DatasetLoader) *Service {
	r := NewRenderer(nil, 5, discardLogger(), observability.NewMetricsForTesting())
	return NewService(loader, domain.DefaultCatalog(), texas(), r, discardLogger())
}

func TestService_LoadsDatasetOnce(t *testing.T) {
	loader := &countingLoader{ds: domain.Dataset{Records: texasPlants()}}
	svc := newTestService(loader)
	ctx := context.Background()

	years, err := svc.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2019}, years)

	sel, err := svc.Select("2019", "texas")
	require.NoError(t, err)
	d, err := svc.Dashboard(ctx, sel)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Plants)

	assert.Equal(t, 1, loader.calls)
}

func TestService_RetriesFailedLoad(t *testing.T) {
	loader := &countingLoader{err: errors.New("disk on fire")}
	svc := newTestService(loader)

	_, err := svc.Years(context.Background())
	require.Error(t, err)

	loader.err = nil
	_, err = svc.Years(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestService_SelectValidatesWithoutLoading(t *testing.T) {
	loader := &countingLoader{}
	svc := newTestService(loader)

	_, err := svc.Select("2017", "TX")
	require.ErrorIs(t, err, domain.ErrUnsupportedYear)

	_, err = svc.Select("2019", "Puerto Rico")
	require.ErrorIs(t, err, domain.ErrUnknownRegion)

	assert.Equal(t, 0, loader.calls)
}

func TestService_NoPlantsForSelection(t *testing.T) {
	svc := newTestService(&countingLoader{ds: domain.Dataset{Records: texasPlants()}})

	sel, err := svc.Select("2019", "OK")
	require.NoError(t, err)
	_, err = svc.Dashboard(context.Background(), sel)

	require.ErrorIs(t, err, domain.ErrNoPlants)
	assert.Equal(t, "no plant data for Oklahoma in 2019", err.Error())
}

func TestService_Regions(t *testing.T) {
	svc := newTestService(&countingLoader{})
	assert.Equal(t, []string{"Oklahoma", "Texas"}, svc.Regions())
}

func TestService_ConcurrentCallersShareOneLoad(t *testing.T) {
	loader := newGatedLoader(domain.Dataset{Records: texasPlants()})
	svc := newTestService(loader)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := svc.Dataset(context.Background())
			results[i], errs[i] = len(ds.Records), err
		}()
	}

	<-loader.started
	close(loader.release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, 4, results[i])
	}
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestService_WaiterHonorsOwnContextDuringLoad(t *testing.T) {
	loader := newGatedLoader(domain.Dataset{Records: texasPlants()})
	svc := newTestService(loader)

	first := make(chan error, 1)
	go func() {
		_, err := svc.Dataset(context.Background())
		first <- err
	}()
	<-loader.started

	// A second caller is not blocked behind the load in flight.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Dataset(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(loader.release)
	require.NoError(t, <-first)

	ds, err := svc.Dataset(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Records, 4)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestService_CanceledCallerDoesNotAbortLoad(t *testing.T) {
	loader := newGatedLoader(domain.Dataset{Records: texasPlants()})
	svc := newTestService(loader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Dataset(ctx)
		done <- err
	}()
	<-loader.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(loader.release)
	ds, err := svc.Dataset(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Records, 4)
	assert.Equal(t, int32(1), loader.calls.Load())
}
