// Package ncstore implements the dataset stores on a directory tree of netCDF
// files and writes merged run outputs.
//
// Each named store is a directory under the root:
//
//	<root>/<store>/obs/<SITE>_<species>*.nc
//	<root>/<store>/footprints/<SITE>_<DOMAIN>_<model>*.nc
//	<root>/<store>/flux/<species>_<DOMAIN>_<sector>.nc
//	<root>/<store>/bc/<species>_<DOMAIN>*.nc
//
// When several files match a pattern, global attributes narrow the choice.
package ncstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/ctessum/sparse"
)

// DefaultStore is used when a query names no store.
const DefaultStore = "default"

var (
	// ErrAmbiguous means more than one file matched a query.
	ErrAmbiguous = errors.New("more than one dataset matches")

	// ErrScaleConversion means observations are on a different calibration
	// scale than requested. Converting between scales is not supported.
	ErrScaleConversion = errors.New("calibration scale conversion not supported")
)

const (
	dirObs        = "obs"
	dirFootprints = "footprints"
	dirFlux       = "flux"
	dirBC         = "bc"
)

// Store reads datasets from a local directory tree. It implements
// domain.ObservationStore, domain.FootprintStore, domain.FluxStore and
// domain.BoundaryConditionStore.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates a Store rooted at root.
func New(root string, logger *slog.Logger) *Store {
	return &Store{root: root, logger: logger}
}

func (s *Store) dir(store, kind string) string {
	if store == "" {
		store = DefaultStore
	}
	return filepath.Join(s.root, store, kind)
}

// FetchObservation returns the series for one site, restricted to the query
// time range and resampled when an averaging period is requested.
func (s *Store) FetchObservation(ctx context.Context, q domain.ObservationQuery) (*domain.ObservationSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pattern := filepath.Join(s.dir(q.Store, dirObs), fmt.Sprintf("%s_%s*.nc", strings.ToUpper(q.Site), strings.ToLower(q.Species)))
	r, err := s.selectOne(pattern, map[string]string{
		"inlet":      q.Inlet,
		"instrument": q.Instrument,
		"data_level": q.DataLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("observation %s %s: %w", q.Site, q.Species, err)
	}
	defer r.Close()

	obs, err := readObservation(r)
	if err != nil {
		return nil, err
	}
	if q.CalibrationScale != "" && obs.CalibrationScale != "" && !strings.EqualFold(q.CalibrationScale, obs.CalibrationScale) {
		return nil, fmt.Errorf("observation %s: stored on %s, requested %s: %w", q.Site, obs.CalibrationScale, q.CalibrationScale, ErrScaleConversion)
	}

	idx := indexesInRange(obs.Times, q.TimeRange, false)
	if len(idx) == 0 {
		return nil, fmt.Errorf("observation %s %s: no records in range: %w", q.Site, q.Species, domain.ErrNotFound)
	}
	obs.Times = pickTimes(obs.Times, idx)
	obs.MoleFraction = pick(obs.MoleFraction, idx)
	obs.Repeatability = pick(obs.Repeatability, idx)
	obs.Variability = pick(obs.Variability, idx)

	if q.AveragingPeriod != "" {
		period, err := domain.ParseAveragingPeriod(q.AveragingPeriod)
		if err != nil {
			return nil, err
		}
		obs = domain.ResampleObservation(obs, period)
		obs.AveragingPeriod = q.AveragingPeriod
	}
	return obs, nil
}

// FetchFootprint returns the footprint of one site restricted to the query
// time range.
func (s *Store) FetchFootprint(ctx context.Context, q domain.FootprintQuery) (*domain.FootprintField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model := q.Model
	if model == "" {
		model = "*"
	}
	pattern := filepath.Join(s.dir(q.Store, dirFootprints), fmt.Sprintf("%s_%s_%s*.nc", strings.ToUpper(q.Site), strings.ToUpper(q.Domain), model))
	r, err := s.selectOne(pattern, map[string]string{"height": q.Height})
	if err != nil {
		return nil, fmt.Errorf("footprint %s %s: %w", q.Site, q.Domain, err)
	}
	defer r.Close()

	fp, err := readFootprint(r)
	if err != nil {
		return nil, err
	}
	idx := indexesInRange(fp.Times, q.TimeRange, false)
	if len(idx) == 0 {
		return nil, fmt.Errorf("footprint %s: no records in range: %w", q.Site, domain.ErrNotFound)
	}
	fp.Times = pickTimes(fp.Times, idx)
	fp.Sensitivity = pickRecords(fp.Sensitivity, idx)
	for f, arr := range fp.Boundary {
		fp.Boundary[f] = pickRecords(arr, idx)
	}
	return fp, nil
}

// FetchFlux returns one sector's flux field. The latest record at or before
// the start of the range is kept so that annual or monthly fields apply to
// the whole run.
func (s *Store) FetchFlux(ctx context.Context, q domain.FluxQuery) (*domain.FluxField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pattern := filepath.Join(s.dir(q.Store, dirFlux), fmt.Sprintf("%s_%s_%s.nc", strings.ToLower(q.Species), strings.ToUpper(q.Domain), q.Sector))
	r, err := s.selectOne(pattern, nil)
	if err != nil {
		return nil, fmt.Errorf("flux %s %s: %w", q.Species, q.Sector, err)
	}
	defer r.Close()

	flux, err := readFlux(r)
	if err != nil {
		return nil, err
	}
	idx := indexesInRange(flux.Times, q.TimeRange, true)
	if len(idx) == 0 {
		return nil, fmt.Errorf("flux %s: no records in range: %w", q.Sector, domain.ErrNotFound)
	}
	flux.Times = pickTimes(flux.Times, idx)
	flux.Flux = pickRecords(flux.Flux, idx)
	return flux, nil
}

// FetchBoundaryCondition returns the boundary condition from the requested
// source, keeping the latest record at or before the start of the range.
func (s *Store) FetchBoundaryCondition(ctx context.Context, q domain.BoundaryConditionQuery) (*domain.BoundaryConditionField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pattern := filepath.Join(s.dir(q.Store, dirBC), fmt.Sprintf("%s_%s*.nc", strings.ToLower(q.Species), strings.ToUpper(q.Domain)))
	r, err := s.selectOne(pattern, map[string]string{"bc_input": q.Source})
	if err != nil {
		return nil, fmt.Errorf("boundary condition %s %s: %w", q.Species, q.Domain, err)
	}
	defer r.Close()

	bc, err := readBoundaryCondition(r)
	if err != nil {
		return nil, err
	}
	idx := indexesInRange(bc.Times, q.TimeRange, true)
	if len(idx) == 0 {
		return nil, fmt.Errorf("boundary condition %s: no records in range: %w", q.Domain, domain.ErrNotFound)
	}
	bc.Times = pickTimes(bc.Times, idx)
	for f, arr := range bc.Faces {
		bc.Faces[f] = pickRecords(arr, idx)
	}
	return bc, nil
}

// selectOne opens the single file matching pattern whose global attributes
// agree with want. Empty wanted values match anything.
func (s *Store) selectOne(pattern string, want map[string]string) (*reader, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var (
		chosen  *reader
		matched []string
	)
	for _, p := range paths {
		r, err := open(p)
		if err != nil {
			if chosen != nil {
				chosen.Close()
			}
			return nil, err
		}
		if !attrsMatch(r, want) {
			r.Close()
			continue
		}
		matched = append(matched, filepath.Base(p))
		if chosen == nil {
			chosen = r
		} else {
			r.Close()
		}
	}

	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("no file matches %s: %w", filepath.Base(pattern), domain.ErrNotFound)
	case 1:
		s.logger.Debug("dataset selected", "path", chosen.path)
		return chosen, nil
	default:
		chosen.Close()
		return nil, fmt.Errorf("%s: %w", strings.Join(matched, ", "), ErrAmbiguous)
	}
}

func attrsMatch(r *reader, want map[string]string) bool {
	for name, v := range want {
		if v == "" {
			continue
		}
		if !strings.EqualFold(r.attr(name), v) {
			return false
		}
	}
	return true
}

// indexesInRange returns the positions of times inside tr. With carry set,
// the latest time at or before tr.Start is included as well.
func indexesInRange(times []time.Time, tr domain.TimeRange, carry bool) []int {
	var idx []int
	last := -1
	for i, t := range times {
		if !t.After(tr.Start) {
			last = i
		}
		if tr.Contains(t) {
			idx = append(idx, i)
		}
	}
	if carry && last >= 0 && times[last].Before(tr.Start) {
		idx = append([]int{last}, idx...)
	}
	return idx
}

func pickTimes(times []time.Time, idx []int) []time.Time {
	out := make([]time.Time, len(idx))
	for i, k := range idx {
		out[i] = times[k]
	}
	return out
}

func pick(vals []float64, idx []int) []float64 {
	if vals == nil {
		return nil
	}
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = vals[k]
	}
	return out
}

// pickRecords selects records along the leading axis of arr.
func pickRecords(arr *sparse.DenseArray, idx []int) *sparse.DenseArray {
	shape := append([]int{len(idx)}, arr.Shape[1:]...)
	out := sparse.ZerosDense(shape...)
	stride := 1
	for _, n := range arr.Shape[1:] {
		stride *= n
	}
	for i, k := range idx {
		copy(out.Elements[i*stride:(i+1)*stride], arr.Elements[k*stride:(k+1)*stride])
	}
	return out
}

func (s *Store) prepare(store, kind, name string) (string, error) {
	dir := s.dir(store, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// PutObservation writes obs into store and returns the file path.
func (s *Store) PutObservation(store string, obs *domain.ObservationSeries) (string, error) {
	name := fileName(strings.ToUpper(obs.Site), strings.ToLower(obs.Species), obs.Inlet, obs.Instrument)
	path, err := s.prepare(store, dirObs, name)
	if err != nil {
		return "", err
	}
	return path, WriteObservation(path, obs)
}

// PutFootprint writes fp into store and returns the file path.
func (s *Store) PutFootprint(store string, fp *domain.FootprintField) (string, error) {
	name := fileName(strings.ToUpper(fp.Site), strings.ToUpper(fp.Domain), fp.Model, fp.Height)
	path, err := s.prepare(store, dirFootprints, name)
	if err != nil {
		return "", err
	}
	return path, WriteFootprint(path, fp)
}

// PutFlux writes flux into store and returns the file path.
func (s *Store) PutFlux(store string, flux *domain.FluxField) (string, error) {
	name := fileName(strings.ToLower(flux.Species), strings.ToUpper(flux.Domain), flux.Sector)
	path, err := s.prepare(store, dirFlux, name)
	if err != nil {
		return "", err
	}
	return path, WriteFlux(path, flux)
}

// PutBoundaryCondition writes bc into store and returns the file path.
func (s *Store) PutBoundaryCondition(store string, bc *domain.BoundaryConditionField) (string, error) {
	name := fileName(strings.ToLower(bc.Species), strings.ToUpper(bc.Domain), bc.Source)
	path, err := s.prepare(store, dirBC, name)
	if err != nil {
		return "", err
	}
	return path, WriteBoundaryCondition(path, bc)
}

// fileName joins the non-empty parts with underscores.
func fileName(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "_") + ".nc"
}
