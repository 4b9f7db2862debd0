// Command egrid normalizes the yearly eGRID plant workbooks into one cached
// dataset and renders per-state dashboards from it.
//
// Usage:
//
//	egrid report [-open] [-out PATH] YEAR STATE
//	egrid build [-force]
//	egrid serve
//	egrid publish
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"

	httpadapter "github.com/couchcryptid/egrid-plants/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/egrid-plants/internal/adapter/kafka"
	"github.com/couchcryptid/egrid-plants/internal/adapter/mapbox"
	"github.com/couchcryptid/egrid-plants/internal/adapter/parquet"
	"github.com/couchcryptid/egrid-plants/internal/adapter/shapefile"
	"github.com/couchcryptid/egrid-plants/internal/adapter/spreadsheet"
	"github.com/couchcryptid/egrid-plants/internal/config"
	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/observability"
	"github.com/couchcryptid/egrid-plants/internal/pipeline"
	"github.com/couchcryptid/egrid-plants/internal/report"
)

const usage = `usage:
  egrid report [-open] [-out PATH] YEAR STATE
  egrid build [-force]
  egrid serve
  egrid publish`

func main() {
	log.SetFlags(0)
	log.SetPrefix("egrid: ")
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)
	switch cmd, rest := args[0], args[1:]; cmd {
	case "report":
		return a.report(ctx, rest)
	case "build":
		return a.build(ctx, rest)
	case "serve":
		return a.serve(ctx)
	case "publish":
		return a.publish(ctx)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

// app wires the shared components for every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	catalog *domain.Catalog
	cache   *pipeline.Cache
}

func newApp(cfg *config.Config) *app {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	catalog := domain.DefaultCatalog()

	store := parquet.NewStore(cfg.CachePath, logger)
	normalizer := pipeline.NewNormalizer(spreadsheet.NewReader(logger), catalog, cfg.SourceDir, logger, metrics)
	cache := pipeline.NewCache(store, normalizer, catalog.Years(), logger, metrics)

	return &app{cfg: cfg, logger: logger, metrics: metrics, catalog: catalog, cache: cache}
}

// geocoder is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
func (a *app) geocoder() domain.Geocoder {
	if !a.cfg.MapboxEnabled {
		a.logger.Info("mapbox geocoding disabled")
		return nil
	}
	a.metrics.GeocodeEnabled.Set(1)
	client := mapbox.NewClient(a.cfg.MapboxToken, a.cfg.MapboxTimeout, a.metrics, a.logger)
	a.logger.Info("mapbox geocoding enabled", "cache_size", a.cfg.MapboxCacheSize, "timeout", a.cfg.MapboxTimeout)
	return mapbox.NewCachedGeocoder(client, a.cfg.MapboxCacheSize, a.metrics)
}

func (a *app) service() (*report.Service, domain.BoundaryProvider, error) {
	boundaries, err := shapefile.Load(a.cfg.BoundaryPath, shapefile.DefaultNameField, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("load boundaries: %w", err)
	}
	renderer := report.NewRenderer(a.geocoder(), a.cfg.TopN, a.logger, a.metrics)
	return report.NewService(a.cache, a.catalog, boundaries, renderer, a.logger), boundaries, nil
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	open := fs.Bool("open", false, "open the dashboard in the default browser")
	out := fs.String("out", a.cfg.DashboardPath, "dashboard output path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	// Flags may also follow the positional arguments.
	pos := fs.Args()
	if len(pos) < 2 {
		return errors.New("report needs YEAR and STATE")
	}
	year, state := pos[0], pos[1]
	if err := fs.Parse(pos[2:]); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if _, err := a.catalog.ParseYear(year); err != nil {
		return err
	}
	svc, _, err := a.service()
	if err != nil {
		return err
	}
	// Validate before touching the cache.
	sel, err := svc.Select(year, state)
	if err != nil {
		return err
	}

	d, err := svc.Dashboard(ctx, sel)
	if err != nil {
		return err
	}
	if err := report.SaveHTML(*out, d); err != nil {
		return err
	}
	a.logger.Info("dashboard saved", "path", *out, "year", sel.Year.Year, "state", sel.Code)

	if *open {
		if err := browser.OpenFile(*out); err != nil {
			a.logger.Warn("could not open browser", "path", *out, "error", err)
		}
	}
	return nil
}

func (a *app) build(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	force := fs.Bool("force", false, "rebuild even if the cached dataset exists")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		ds  domain.Dataset
		err error
	)
	if *force {
		ds, err = a.cache.Build(ctx)
	} else {
		ds, err = a.cache.LoadOrBuild(ctx)
	}
	if err != nil {
		return err
	}

	counts := ds.CountByYear()
	for _, year := range ds.Years() {
		a.logger.Info("year loaded", "year", year, "rows", counts[year])
	}
	a.logger.Info("dataset ready", "path", a.cfg.CachePath, "rows", len(ds.Records))
	return nil
}

func (a *app) serve(ctx context.Context) error {
	svc, boundaries, err := a.service()
	if err != nil {
		return err
	}
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.cache, svc, boundaries, a.logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	// Warm the dataset; /readyz reports ready once it is loaded.
	go func() {
		if _, err := svc.Dataset(ctx); err != nil {
			a.logger.Error("dataset load error", "error", err)
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *app) publish(ctx context.Context) error {
	ds, err := a.cache.LoadOrBuild(ctx)
	if err != nil {
		return err
	}

	writer := kafkaadapter.NewWriter(a.cfg, a.logger, a.metrics)
	defer func() {
		if err := writer.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}()

	n, err := writer.Publish(ctx, ds)
	if err != nil {
		return fmt.Errorf("publish after %d records: %w", n, err)
	}
	a.logger.Info("dataset published", "topic", a.cfg.KafkaTopic, "records", n)
	return nil
}
