// Package scenario is the reference merge kernel: it combines one site's
// footprint with the run's flux sectors and boundary condition to produce a
// modelled mole fraction aligned with the site's observations.
package scenario

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/ctessum/sparse"
)

// ErrUnknownSector is returned when a merge names a sector the scenario has no flux for.
var ErrUnknownSector = errors.New("unknown flux sector")

// Builder implements domain.ScenarioBuilder.
type Builder struct{}

// NewBuilder returns a scenario builder.
func NewBuilder() *Builder { return &Builder{} }

// Build validates the input grids and returns a Scenario.
func (Builder) Build(in domain.ScenarioInput) (domain.Scenario, error) {
	if in.Observation == nil || in.Footprint == nil {
		return nil, errors.New("build scenario: observation and footprint are required")
	}
	unit, err := domain.ParseUnit(in.Observation.Units)
	if err != nil {
		return nil, fmt.Errorf("build scenario for %s: %w", in.Site, err)
	}

	fp := in.Footprint.Sensitivity
	if fp == nil || len(fp.Shape) != 3 || fp.Shape[0] != len(in.Footprint.Times) {
		return nil, fmt.Errorf("build scenario for %s: footprint must be [time, lat, lon]: %w", in.Site, domain.ErrGridMismatch)
	}
	for name, flux := range in.Fluxes {
		if flux.Flux == nil || len(flux.Flux.Shape) != 3 || flux.Flux.Shape[0] == 0 ||
			flux.Flux.Shape[0] != len(flux.Times) ||
			flux.Flux.Shape[1] != fp.Shape[1] || flux.Flux.Shape[2] != fp.Shape[2] {
			return nil, fmt.Errorf("build scenario for %s: flux %q vs footprint: %w", in.Site, name, domain.ErrGridMismatch)
		}
	}
	if bc := in.BoundaryCondition; bc != nil {
		if len(bc.Times) == 0 {
			return nil, fmt.Errorf("build scenario for %s: boundary condition has no times: %w", in.Site, domain.ErrGridMismatch)
		}
		for _, face := range domain.Faces {
			sens, vals := in.Footprint.Boundary[face], bc.Faces[face]
			if sens == nil || vals == nil || len(sens.Shape) != 3 || len(vals.Shape) != 3 ||
				vals.Shape[0] != len(bc.Times) || sens.Shape[0] != fp.Shape[0] ||
				sens.Shape[1] != vals.Shape[1] || sens.Shape[2] != vals.Shape[2] {
				return nil, fmt.Errorf("build scenario for %s: boundary face %s: %w", in.Site, face, domain.ErrGridMismatch)
			}
		}
	}

	return &Scenario{
		in:     in,
		unit:   unit,
		merged: make(map[string]*domain.MergedDataset),
	}, nil
}

// Scenario implements domain.Scenario. Merge results are memoized per sector
// filter until a merge asks for recomputation.
type Scenario struct {
	in   domain.ScenarioInput
	unit float64

	mu     sync.Mutex
	merged map[string]*domain.MergedDataset
}

// Merge returns a dataset holding the observations, the modelled mole fraction
// for the selected sectors and, when a boundary condition is present, bc_mod.
// The returned dataset is a copy and may be modified by the caller.
func (s *Scenario) Merge(opts domain.MergeOptions) (*domain.MergedDataset, error) {
	sectors, err := s.selectSectors(opts.Sectors)
	if err != nil {
		return nil, err
	}
	key := strings.Join(sectors, "|")

	s.mu.Lock()
	defer s.mu.Unlock()

	if ds, ok := s.merged[key]; ok && !opts.Recompute {
		return ds.Copy(), nil
	}
	ds := s.merge(sectors)
	s.merged[key] = ds
	return ds.Copy(), nil
}

func (s *Scenario) selectSectors(filter []string) ([]string, error) {
	if len(filter) == 0 {
		all := make([]string, 0, len(s.in.Fluxes))
		for name := range s.in.Fluxes {
			all = append(all, name)
		}
		sort.Strings(all)
		return all, nil
	}
	out := slices.Clone(filter)
	for _, name := range out {
		if _, ok := s.in.Fluxes[name]; !ok {
			return nil, fmt.Errorf("merge %s: %w: %q", s.in.Site, ErrUnknownSector, name)
		}
	}
	sort.Strings(out)
	return slices.Compact(out), nil
}

func (s *Scenario) merge(sectors []string) *domain.MergedDataset {
	obs, fp := s.in.Observation, s.in.Footprint
	obsIdx, fpIdx := alignTimes(obs.Times, fp.Times)

	times := make([]time.Time, len(obsIdx))
	for i, oi := range obsIdx {
		times[i] = obs.Times[oi]
	}

	ds := domain.NewMergedDataset(s.in.Site, s.in.Species, times)
	ds.Inlet = s.in.Inlet
	ds.Scale = obs.CalibrationScale
	ds.Units = obs.Units

	ds.Set(domain.VarMoleFraction, pick(obs.MoleFraction, obsIdx))
	if obs.Repeatability != nil {
		ds.Set(domain.VarRepeatability, pick(obs.Repeatability, obsIdx))
	}
	if obs.Variability != nil {
		ds.Set(domain.VarVariability, pick(obs.Variability, obsIdx))
	}

	modelled := make([]float64, len(times))
	for _, name := range sectors {
		flux := s.in.Fluxes[name]
		for i, t := range times {
			fi := forwardIndex(flux.Times, t)
			modelled[i] += gridProduct(fp.Sensitivity, fpIdx[i], flux.Flux, fi) / s.unit
		}
	}
	ds.Set(domain.ModelledVariable(s.in.Species), modelled)

	if bc := s.in.BoundaryCondition; bc != nil {
		contribution := make([]float64, len(times))
		for i, t := range times {
			bi := forwardIndex(bc.Times, t)
			for _, face := range domain.Faces {
				contribution[i] += gridProduct(fp.Boundary[face], fpIdx[i], bc.Faces[face], bi)
			}
		}
		ds.Set(domain.VarBoundary, contribution)
	}

	return ds
}

// alignTimes returns index pairs for the timestamps present in both series.
func alignTimes(obs, fp []time.Time) (obsIdx, fpIdx []int) {
	byTime := make(map[int64]int, len(fp))
	for i, t := range fp {
		byTime[t.UnixNano()] = i
	}
	for i, t := range obs {
		if j, ok := byTime[t.UnixNano()]; ok {
			obsIdx = append(obsIdx, i)
			fpIdx = append(fpIdx, j)
		}
	}
	return obsIdx, fpIdx
}

// forwardIndex returns the index of the latest time at or before t, or 0 when
// t precedes every entry.
func forwardIndex(times []time.Time, t time.Time) int {
	i := sort.Search(len(times), func(i int) bool { return times[i].After(t) })
	if i == 0 {
		return 0
	}
	return i - 1
}

// gridProduct sums a[ai, ...] * b[bi, ...] over the trailing two dimensions.
func gridProduct(a *sparse.DenseArray, ai int, b *sparse.DenseArray, bi int) float64 {
	n := a.Shape[1] * a.Shape[2]
	aOff, bOff := ai*n, bi*n
	var sum float64
	for k := 0; k < n; k++ {
		sum += a.Elements[aOff+k] * b.Elements[bOff+k]
	}
	return sum
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
