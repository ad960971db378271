// Command genmock writes a deterministic synthetic data store for a run file,
// so that cmd/assemble can be exercised without real measurement archives.
//
// Usage:
//
//	go run ./cmd/genmock -run-file run.yaml -data-dir data
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/adapter/ncstore"
	"github.com/couchcryptid/ghg-merge/internal/config"
	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/couchcryptid/ghg-merge/internal/mockdata"
)

// speciesProfile holds plausible magnitudes for one gas.
type speciesProfile struct {
	units    string  // observation units
	base     float64 // background mole fraction in observation units
	flux     float64 // largest sector flux, mol/m2/s
	boundary float64 // boundary concentration, mol/mol
}

var profiles = map[string]speciesProfile{
	"ch4": {units: "1e-9", base: 1900, flux: 1e-8, boundary: 1.9e-6},
	"co2": {units: "1e-6", base: 410, flux: 1e-6, boundary: 4.1e-4},
	"n2o": {units: "1e-9", base: 330, flux: 1e-10, boundary: 3.3e-7},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	runFile := flag.String("run-file", "", "path to the YAML run file")
	dataDir := flag.String("data-dir", "data", "root of the data store tree")
	missingEvery := flag.Int("missing-every", 5, "leave every n-th repeatability value undefined (0 disables)")
	flag.Parse()

	if *runFile == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -run-file")
	}

	rf, err := config.LoadRunFile(*runFile)
	if err != nil {
		return err
	}
	req, err := rf.ToRequest()
	if err != nil {
		return err
	}
	sites, err := domain.NormalizeSites(&req)
	if err != nil {
		return err
	}

	species := strings.ToLower(req.Species)
	profile, ok := profiles[species]
	if !ok {
		return fmt.Errorf("no synthetic profile for species %q", req.Species)
	}

	store := ncstore.New(*dataDir, slog.Default())
	grid := mockdata.DefaultGrid()
	hours := int(req.TimeRange.End.Sub(req.TimeRange.Start) / time.Hour)
	times := mockdata.HourlyTimes(req.TimeRange.Start, hours)
	// Monthly fields start at the first of the month so they cover the run start.
	monthly := []time.Time{time.Date(req.TimeRange.Start.Year(), req.TimeRange.Start.Month(), 1, 0, 0, 0, 0, time.UTC)}

	var written []string
	for i, site := range sites {
		obs := mockdata.Observation(site.Site, species, times, profile.base, uint64(i+1), mockdata.ObservationOptions{
			Units:            profile.units,
			CalibrationScale: req.CalibrationScale,
			Inlet:            site.Inlet,
			Instrument:       site.Instrument,
			MissingEvery:     *missingEvery,
		})
		obs.DataLevel = site.DataLevel
		path, err := store.PutObservation(req.ObsStore, obs)
		if err != nil {
			return err
		}
		written = append(written, path)

		fp := mockdata.Footprint(site.Site, req.Domain, grid, times, uint64(100+i))
		fp.Model = req.FootprintModel
		fp.Height = site.FootprintHeight
		if path, err = store.PutFootprint(req.FootprintStore, fp); err != nil {
			return err
		}
		written = append(written, path)
	}

	for i, sector := range req.Sectors {
		flux := mockdata.Flux(species, req.Domain, sector, grid, monthly, profile.flux/float64(i+1))
		path, err := store.PutFlux(req.FluxStore, flux)
		if err != nil {
			return err
		}
		written = append(written, path)
	}

	if req.UseBC {
		bc := mockdata.BoundaryCondition(species, req.Domain, req.BCInput, grid, monthly, profile.boundary)
		path, err := store.PutBoundaryCondition(req.BCStore, bc)
		if err != nil {
			return err
		}
		written = append(written, path)
	}

	for _, p := range written {
		log.Printf("wrote %s", p)
	}
	log.Printf("total: %d files, %d sites, %d hourly steps", len(written), len(sites), hours)
	return nil
}
