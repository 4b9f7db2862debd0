// Command genmock writes synthetic eGRID source workbooks for every supported
// year, each in that year's real layout, plus a matching boundary shapefile.
// The output lets the full pipeline run without the EPA downloads.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir USeGRID \
//	  -boundary US_COUNTY_SHPFILE/US_county_cont.shp \
//	  -plants 200 -seed 1
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/couchcryptid/egrid-plants/internal/domain"
	"github.com/couchcryptid/egrid-plants/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory to write yearly workbooks into")
	boundary := flag.String("boundary", "", "optional path for a synthetic state boundary shapefile")
	plants := flag.Int("plants", 200, "plants per year")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	paths, err := mockdata.Generate(*outDir, domain.DefaultCatalog(), mockdata.Options{
		PlantsPerYear: *plants,
		Seed:          *seed,
	})
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Printf("Wrote %s\n", p)
	}

	if *boundary != "" {
		if err := mockdata.WriteBoundaries(*boundary); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", *boundary)
	}

	fmt.Printf("\n%d workbooks, %d plants each (seed %d)\n", len(paths), *plants, *seed)
	return nil
}
