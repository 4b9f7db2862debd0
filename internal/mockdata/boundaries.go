package mockdata

import (
	"fmt"
	"os"
	"path/filepath"

	shp "github.com/jonas-p/go-shp"

	"github.com/couchcryptid/egrid-plants/internal/domain"
)

// NameField is the attribute column WriteBoundaries stores state names in.
const NameField = "STATE_NAME"

// WriteBoundaries writes a polygon shapefile at path with two square
// "counties" per generated state, named in the STATE_NAME column. The
// squares tile a box centered on the state's approximate center.
func WriteBoundaries(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create boundary dir: %w", err)
	}
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{shp.StringField(NameField, 40)}); err != nil {
		return fmt.Errorf("set shapefile fields: %w", err)
	}

	row := 0
	for _, st := range states {
		name, ok := domain.StateName(st.code)
		if !ok {
			return fmt.Errorf("no state name for %s", st.code)
		}
		// West and east halves of a 4x4 degree box.
		for _, x := range []float64{st.lon - 2, st.lon} {
			poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{clockwiseBox(x, st.lat-2, 2, 4)}))
			w.Write(&poly)
			if err := w.WriteAttribute(row, 0, domain.TitleCase(name)); err != nil {
				return fmt.Errorf("write attribute: %w", err)
			}
			row++
		}
	}
	return nil
}

func clockwiseBox(x, y, width, height float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + height},
		{X: x + width, Y: y + height},
		{X: x + width, Y: y},
		{X: x, Y: y},
	}
}
