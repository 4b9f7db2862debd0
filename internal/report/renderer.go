// Package report turns one (year, state) slice of the unified dataset into
// a dashboard of charts and summary figures.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/observability"
)

var errNoPositiveShares = errors.New("no positive fuel shares")

// Renderer builds dashboards. A nil geocoder disables coordinate backfill.
type Renderer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
	topN     int
}

// NewRenderer creates a Renderer that ranks the topN largest plants.
func NewRenderer(geocoder domain.Geocoder, topN int, logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	if topN < 1 {
		topN = 5
	}
	return &Renderer{geocoder: geocoder, logger: logger, metrics: metrics, topN: topN}
}

// Render summarizes plants for the selection and draws its charts. The map is
// skipped when there is no boundary; the split and fuel charts are skipped
// when their totals are zero.
func (r *Renderer) Render(ctx context.Context, sel domain.Selection, plants []domain.PlantRecord, boundary orb.MultiPolygon) (*Dashboard, error) {
	if len(plants) == 0 {
		return nil, fmt.Errorf("%w for %s in %d", domain.ErrNoPlants, sel.DisplayName(), sel.Year.Year)
	}
	start := time.Now()

	located, placed := domain.LocatePlants(ctx, plants, r.geocoder, r.logger)
	colors := domain.FuelColors(located)
	name := sel.DisplayName()

	d := &Dashboard{
		Title:       fmt.Sprintf("Power Plants in %s (%d)", name, sel.Year.Year),
		Selection:   sel,
		GeneratedAt: domain.Now(),
		Plants:      len(plants),
		Located:     placed,
		Split:       domain.SplitGeneration(located),
		Top:         domain.TopPlants(located, r.topN),
		Mix:         domain.FuelMix(located),
	}

	if len(boundary) > 0 {
		png, err := mapChart(fmt.Sprintf("Power Plants in %s", name), boundary, located, colors)
		if err != nil {
			return nil, err
		}
		d.Charts = append(d.Charts, Chart{Title: "Plant locations by primary fuel", PNG: png})
	}

	if len(d.Top) > 0 {
		title := fmt.Sprintf("Top %d Power Plants by Net Generation", len(d.Top))
		png, err := topPlantsChart(title, d.Top, colors)
		if err != nil {
			return nil, err
		}
		d.Charts = append(d.Charts, Chart{Title: title, PNG: png})
	}

	if d.Split.Renewable+d.Split.Nonrenewable > 0 {
		title := "Renewable vs Nonrenewable Generation"
		png, err := splitChart(title, d.Split)
		if err != nil {
			return nil, err
		}
		d.Charts = append(d.Charts, Chart{Title: title, PNG: png})
	}

	png, err := fuelPieChart("Generation by Fuel Type", d.Mix, colors)
	switch {
	case errors.Is(err, errNoPositiveShares):
	case err != nil:
		return nil, err
	default:
		d.Charts = append(d.Charts, Chart{Title: "Generation by Fuel Type", PNG: png})
	}

	r.metrics.DashboardsRendered.Inc()
	r.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("dashboard rendered",
		"year", sel.Year.Year,
		"state", sel.Code,
		"plants", len(plants),
		"charts", len(d.Charts),
		"duration", time.Since(start),
	)
	return d, nil
}
