package domain

import (
	"context"
	"database/sql"
	"log/slog"
)

// LocatePlants fills in coordinates for plants that lack them by forward
// geocoding "<county> County, <state>". The input slice is not modified.
// If geocoder is nil or a lookup fails, the plant keeps its missing
// coordinates (graceful degradation). It returns the number of plants placed.
func LocatePlants(ctx context.Context, plants []PlantRecord, geocoder Geocoder, logger *slog.Logger) ([]PlantRecord, int) {
	out := make([]PlantRecord, len(plants))
	copy(out, plants)
	if geocoder == nil {
		return out, 0
	}

	located := 0
	for i, p := range out {
		if p.HasCoordinates() || !p.County.Valid {
			continue
		}

		result, err := geocoder.ForwardGeocode(ctx, p.County.String+" County", p.State)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"plant", p.PlantName.String,
				"county", p.County.String,
				"state", p.State,
				"error", err,
			)
			continue
		}
		if result.Lat == 0 && result.Lon == 0 {
			continue
		}

		out[i].Lat = sql.NullFloat64{Float64: result.Lat, Valid: true}
		out[i].Lon = sql.NullFloat64{Float64: result.Lon, Valid: true}
		located++
	}
	return out, located
}
