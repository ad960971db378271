// Package mockdata generates small deterministic datasets for tests and for
// seeding a local file store with cmd/genmock.
package mockdata

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/ctessum/sparse"
)

// Grid describes the model domain used by the generated fields.
type Grid struct {
	Lat     []float64
	Lon     []float64
	Heights []float64
}

// DefaultGrid is a 3x4 domain with two boundary levels.
func DefaultGrid() Grid {
	return Grid{
		Lat:     []float64{50, 52, 54},
		Lon:     []float64{-12, -8, -4, 0},
		Heights: []float64{500, 1500},
	}
}

// faceLen returns the number of boundary cells along face f.
func (g Grid) faceLen(f domain.Face) int {
	if f == domain.FaceNorth || f == domain.FaceSouth {
		return len(g.Lon)
	}
	return len(g.Lat)
}

// HourlyTimes returns n hourly timestamps from start.
func HourlyTimes(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

// ObservationOptions controls optional parts of a generated series.
type ObservationOptions struct {
	Units            string
	CalibrationScale string
	Inlet            string
	Instrument       string

	// MissingEvery leaves every n-th repeatability value undefined (0 disables).
	MissingEvery  int
	NoUncertainty bool
}

// Observation returns a mole-fraction series around base with small
// deterministic noise.
func Observation(site, species string, times []time.Time, base float64, seed uint64, opts ObservationOptions) *domain.ObservationSeries {
	rng := rand.New(rand.NewPCG(seed, 1))
	units := opts.Units
	if units == "" {
		units = "1e-9"
	}

	obs := &domain.ObservationSeries{
		Site:             site,
		Species:          species,
		Inlet:            opts.Inlet,
		Instrument:       opts.Instrument,
		CalibrationScale: opts.CalibrationScale,
		Units:            units,
		Times:            append([]time.Time(nil), times...),
		MoleFraction:     make([]float64, len(times)),
	}
	if !opts.NoUncertainty {
		obs.Repeatability = make([]float64, len(times))
		obs.Variability = make([]float64, len(times))
	}
	for i := range times {
		obs.MoleFraction[i] = base + rng.NormFloat64()
		if opts.NoUncertainty {
			continue
		}
		obs.Repeatability[i] = 0.2 + 0.1*rng.Float64()
		obs.Variability[i] = 0.5 + 0.5*rng.Float64()
		if opts.MissingEvery > 0 && i%opts.MissingEvery == 0 {
			obs.Repeatability[i] = math.NaN()
		}
	}
	return obs
}

// Footprint returns a footprint whose boundary sensitivities sum to one at
// every time step.
func Footprint(site, domainName string, g Grid, times []time.Time, seed uint64) *domain.FootprintField {
	rng := rand.New(rand.NewPCG(seed, 2))
	nt, ny, nx, nh := len(times), len(g.Lat), len(g.Lon), len(g.Heights)

	sens := sparse.ZerosDense(nt, ny, nx)
	for i := range sens.Elements {
		sens.Elements[i] = 5 * rng.Float64()
	}

	boundary := make(map[domain.Face]*sparse.DenseArray, len(domain.Faces))
	for _, f := range domain.Faces {
		boundary[f] = sparse.ZerosDense(nt, nh, g.faceLen(f))
	}
	for t := 0; t < nt; t++ {
		var total float64
		for _, f := range domain.Faces {
			for h := 0; h < nh; h++ {
				for p := 0; p < g.faceLen(f); p++ {
					v := rng.Float64()
					boundary[f].Set(v, t, h, p)
					total += v
				}
			}
		}
		for _, f := range domain.Faces {
			for h := 0; h < nh; h++ {
				for p := 0; p < g.faceLen(f); p++ {
					boundary[f].Set(boundary[f].Get(t, h, p)/total, t, h, p)
				}
			}
		}
	}

	return &domain.FootprintField{
		Site:        site,
		Domain:      domainName,
		Model:       "NAME",
		Times:       append([]time.Time(nil), times...),
		Lat:         append([]float64(nil), g.Lat...),
		Lon:         append([]float64(nil), g.Lon...),
		Heights:     append([]float64(nil), g.Heights...),
		Sensitivity: sens,
		Boundary:    boundary,
	}
}

// Flux returns a flux field with a west-to-east gradient scaled by magnitude
// (mol/m2/s).
func Flux(species, domainName, sector string, g Grid, times []time.Time, magnitude float64) *domain.FluxField {
	nt, ny, nx := len(times), len(g.Lat), len(g.Lon)
	arr := sparse.ZerosDense(nt, ny, nx)
	for t := 0; t < nt; t++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				arr.Set(magnitude*float64(1+x+y)*(1+0.1*float64(t)), t, y, x)
			}
		}
	}
	return &domain.FluxField{
		Species: species,
		Domain:  domainName,
		Sector:  sector,
		Units:   "mol/m2/s",
		Times:   append([]time.Time(nil), times...),
		Lat:     append([]float64(nil), g.Lat...),
		Lon:     append([]float64(nil), g.Lon...),
		Flux:    arr,
	}
}

// BoundaryCondition returns uniform boundary concentrations (mol/mol) that
// increase slightly by face.
func BoundaryCondition(species, domainName, source string, g Grid, times []time.Time, value float64) *domain.BoundaryConditionField {
	faces := make(map[domain.Face]*sparse.DenseArray, len(domain.Faces))
	for i, f := range domain.Faces {
		arr := sparse.ZerosDense(len(times), len(g.Heights), g.faceLen(f))
		for k := range arr.Elements {
			arr.Elements[k] = value * (1 + 0.01*float64(i))
		}
		faces[f] = arr
	}
	return &domain.BoundaryConditionField{
		Species: species,
		Domain:  domainName,
		Source:  source,
		Units:   "mol/mol",
		Times:   append([]time.Time(nil), times...),
		Heights: append([]float64(nil), g.Heights...),
		Faces:   faces,
	}
}
