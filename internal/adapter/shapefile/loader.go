// Package shapefile loads region boundaries from an ESRI shapefile. Geometry
// comes from the .shp file; region names come from the .dbf attribute table
// beside it. Records sharing a name (e.g. the counties of one state) are
// merged into a single MultiPolygon.
package shapefile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	dbase "github.com/Valentin-Kaiser/go-dbase/dbase"
	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/egrid-plants/internal/domain"
)

// DefaultNameField is the attribute holding the full state name in the
// census county shapefile.
const DefaultNameField = "STATE_NAME"

// Load reads every polygon record in the shapefile at path and groups it by
// the value of nameField.
func Load(path, nameField string, logger *slog.Logger) (domain.StaticBoundaries, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceMissing, path)
	}

	names, err := readNames(dbfPath(path), nameField)
	if err != nil {
		return nil, err
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer reader.Close()

	boundaries := make(domain.StaticBoundaries)
	skipped := 0
	for reader.Next() {
		i, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || int(i) >= len(names) || names[i] == "" {
			skipped++
			continue
		}
		boundaries[names[i]] = append(boundaries[names[i]], polygons(poly)...)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	if len(boundaries) == 0 {
		return nil, fmt.Errorf("%w: no %s polygons in %s", domain.ErrSchemaMismatch, nameField, path)
	}

	logger.Info("boundaries loaded", "path", path, "regions", len(boundaries), "skipped", skipped)
	return boundaries, nil
}

func dbfPath(shpPath string) string {
	return strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".dbf"
}

// readNames returns the nameField value of every attribute row, indexed by
// record number. Deleted rows keep their slot with an empty name.
func readNames(path, nameField string) ([]string, error) {
	table, err := dbase.OpenTable(&dbase.Config{Filename: path, TrimSpaces: true})
	if err != nil {
		return nil, fmt.Errorf("open attribute table: %w", err)
	}
	defer table.Close()

	var names []string
	for !table.EOF() {
		row, err := table.Next()
		if err != nil {
			return nil, fmt.Errorf("read attribute row %d: %w", len(names), err)
		}
		if row.Deleted {
			names = append(names, "")
			continue
		}
		v, err := row.ValueByName(nameField)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute table lacks %s: %v", domain.ErrSchemaMismatch, nameField, err)
		}
		names = append(names, strings.TrimSpace(fmt.Sprint(v)))
	}
	return names, nil
}

// polygons splits a shapefile polygon into orb polygons. Clockwise rings are
// outer boundaries; counter-clockwise rings are holes in the preceding outer ring.
func polygons(p *shp.Polygon) []orb.Polygon {
	var out []orb.Polygon
	for part := range p.Parts {
		start := int(p.Parts[part])
		end := len(p.Points)
		if part+1 < len(p.Parts) {
			end = int(p.Parts[part+1])
		}
		if end-start < 4 {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}

		if ring.Orientation() == orb.CCW && len(out) > 0 {
			out[len(out)-1] = append(out[len(out)-1], ring)
			continue
		}
		out = append(out, orb.Polygon{ring})
	}
	return out
}
