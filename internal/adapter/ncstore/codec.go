package ncstore

import (
	"fmt"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/ctessum/sparse"
)

// faceDim is the dimension a boundary face runs along.
func faceDim(f domain.Face) string {
	if f == domain.FaceNorth || f == domain.FaceSouth {
		return "lon"
	}
	return "lat"
}

// WriteObservation writes obs to path. Repeatability and variability are
// written only when present.
func WriteObservation(path string, obs *domain.ObservationSeries) error {
	var d dataset
	d.dim("time", len(obs.Times))
	d.attr("site", obs.Site)
	d.attr("species", obs.Species)
	d.attr("inlet", obs.Inlet)
	d.attr("instrument", obs.Instrument)
	d.attr("data_level", obs.DataLevel)
	d.attr("calibration_scale", obs.CalibrationScale)
	d.attr("averaging_period", obs.AveragingPeriod)

	d.addTimes("time", "time", obs.Times)
	d.add(domain.VarMoleFraction, []string{"time"}, obs.MoleFraction, obs.Units)
	if obs.Repeatability != nil {
		d.add(domain.VarRepeatability, []string{"time"}, obs.Repeatability, obs.Units)
	}
	if obs.Variability != nil && len(obs.Variability) == len(obs.Times) {
		d.add(domain.VarVariability, []string{"time"}, obs.Variability, obs.Units)
	}
	if err := d.write(path); err != nil {
		return fmt.Errorf("write observation %s: %w", obs.Site, err)
	}
	return nil
}

func readObservation(r *reader) (*domain.ObservationSeries, error) {
	obs := &domain.ObservationSeries{
		Site:             r.attr("site"),
		Species:          r.attr("species"),
		Inlet:            r.attr("inlet"),
		Instrument:       r.attr("instrument"),
		DataLevel:        r.attr("data_level"),
		CalibrationScale: r.attr("calibration_scale"),
		AveragingPeriod:  r.attr("averaging_period"),
		Units:            r.varUnits(domain.VarMoleFraction),
	}
	var err error
	if obs.Times, err = r.times("time"); err != nil {
		return nil, err
	}
	if obs.MoleFraction, _, err = r.floats(domain.VarMoleFraction); err != nil {
		return nil, err
	}
	if r.has(domain.VarRepeatability) {
		if obs.Repeatability, _, err = r.floats(domain.VarRepeatability); err != nil {
			return nil, err
		}
	}
	if r.has(domain.VarVariability) {
		if obs.Variability, _, err = r.floats(domain.VarVariability); err != nil {
			return nil, err
		}
	}
	return obs, nil
}

// WriteFootprint writes fp to path.
func WriteFootprint(path string, fp *domain.FootprintField) error {
	var d dataset
	d.dim("time", len(fp.Times))
	d.dim("lat", len(fp.Lat))
	d.dim("lon", len(fp.Lon))
	d.dim("height", len(fp.Heights))
	d.attr("site", fp.Site)
	d.attr("domain", fp.Domain)
	d.attr("model", fp.Model)
	d.attr("height", fp.Height)

	d.addTimes("time", "time", fp.Times)
	d.add("lat", []string{"lat"}, fp.Lat, "degrees_north")
	d.add("lon", []string{"lon"}, fp.Lon, "degrees_east")
	d.add("height", []string{"height"}, fp.Heights, "m")
	d.addArray("fp", []string{"time", "lat", "lon"}, fp.Sensitivity, "")
	for _, f := range domain.Faces {
		arr, ok := fp.Boundary[f]
		if !ok {
			continue
		}
		d.addArray("particle_locations_"+string(f), []string{"time", "height", faceDim(f)}, arr, "")
	}
	if err := d.write(path); err != nil {
		return fmt.Errorf("write footprint %s: %w", fp.Site, err)
	}
	return nil
}

func readFootprint(r *reader) (*domain.FootprintField, error) {
	fp := &domain.FootprintField{
		Site:     r.attr("site"),
		Domain:   r.attr("domain"),
		Model:    r.attr("model"),
		Height:   r.attr("height"),
		Boundary: make(map[domain.Face]*sparse.DenseArray, len(domain.Faces)),
	}
	var err error
	if fp.Times, err = r.times("time"); err != nil {
		return nil, err
	}
	if fp.Lat, _, err = r.floats("lat"); err != nil {
		return nil, err
	}
	if fp.Lon, _, err = r.floats("lon"); err != nil {
		return nil, err
	}
	if fp.Heights, _, err = r.floats("height"); err != nil {
		return nil, err
	}
	if fp.Sensitivity, err = r.array("fp"); err != nil {
		return nil, err
	}
	for _, f := range domain.Faces {
		name := "particle_locations_" + string(f)
		if !r.has(name) {
			continue
		}
		if fp.Boundary[f], err = r.array(name); err != nil {
			return nil, err
		}
	}
	return fp, nil
}

// WriteFlux writes flux to path.
func WriteFlux(path string, flux *domain.FluxField) error {
	var d dataset
	d.dim("time", len(flux.Times))
	d.dim("lat", len(flux.Lat))
	d.dim("lon", len(flux.Lon))
	d.attr("species", flux.Species)
	d.attr("domain", flux.Domain)
	d.attr("sector", flux.Sector)

	d.addTimes("time", "time", flux.Times)
	d.add("lat", []string{"lat"}, flux.Lat, "degrees_north")
	d.add("lon", []string{"lon"}, flux.Lon, "degrees_east")
	d.addArray("flux", []string{"time", "lat", "lon"}, flux.Flux, flux.Units)
	if err := d.write(path); err != nil {
		return fmt.Errorf("write flux %s: %w", flux.Sector, err)
	}
	return nil
}

func readFlux(r *reader) (*domain.FluxField, error) {
	flux := &domain.FluxField{
		Species: r.attr("species"),
		Domain:  r.attr("domain"),
		Sector:  r.attr("sector"),
		Units:   r.varUnits("flux"),
	}
	var err error
	if flux.Times, err = r.times("time"); err != nil {
		return nil, err
	}
	if flux.Lat, _, err = r.floats("lat"); err != nil {
		return nil, err
	}
	if flux.Lon, _, err = r.floats("lon"); err != nil {
		return nil, err
	}
	if flux.Flux, err = r.array("flux"); err != nil {
		return nil, err
	}
	return flux, nil
}

// WriteBoundaryCondition writes bc to path. The lateral extents are taken
// from the face arrays.
func WriteBoundaryCondition(path string, bc *domain.BoundaryConditionField) error {
	n, e := bc.Faces[domain.FaceNorth], bc.Faces[domain.FaceEast]
	if n == nil || e == nil {
		return fmt.Errorf("write boundary condition %s: north and east faces are required", bc.Source)
	}

	var d dataset
	d.dim("time", len(bc.Times))
	d.dim("height", len(bc.Heights))
	d.dim("lat", e.Shape[2])
	d.dim("lon", n.Shape[2])
	d.attr("species", bc.Species)
	d.attr("domain", bc.Domain)
	d.attr("bc_input", bc.Source)

	d.addTimes("time", "time", bc.Times)
	d.add("height", []string{"height"}, bc.Heights, "m")
	for _, f := range domain.Faces {
		arr, ok := bc.Faces[f]
		if !ok {
			continue
		}
		d.addArray("vmr_"+string(f), []string{"time", "height", faceDim(f)}, arr, bc.Units)
	}
	if err := d.write(path); err != nil {
		return fmt.Errorf("write boundary condition %s: %w", bc.Source, err)
	}
	return nil
}

func readBoundaryCondition(r *reader) (*domain.BoundaryConditionField, error) {
	bc := &domain.BoundaryConditionField{
		Species: r.attr("species"),
		Domain:  r.attr("domain"),
		Source:  r.attr("bc_input"),
		Faces:   make(map[domain.Face]*sparse.DenseArray, len(domain.Faces)),
	}
	var err error
	if bc.Times, err = r.times("time"); err != nil {
		return nil, err
	}
	if bc.Heights, _, err = r.floats("height"); err != nil {
		return nil, err
	}
	for _, f := range domain.Faces {
		name := "vmr_" + string(f)
		if !r.has(name) {
			continue
		}
		if bc.Faces[f], err = r.array(name); err != nil {
			return nil, err
		}
		bc.Units = r.varUnits(name)
	}
	return bc, nil
}
