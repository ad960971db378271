package ncstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/ctessum/sparse"
	"github.com/spf13/cast"
)

// OutputWriter persists run outputs as a single netCDF file. Every site gets
// its own time dimension since averaging can leave sites with different axes.
type OutputWriter struct{}

// NewOutputWriter creates an OutputWriter.
func NewOutputWriter() *OutputWriter { return &OutputWriter{} }

// WriteRunOutput writes out to path, creating parent directories.
func (w *OutputWriter) WriteRunOutput(ctx context.Context, out *domain.RunOutput, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(out.SiteOrder) == 0 {
		return fmt.Errorf("write run output: %w", domain.ErrNoSites)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var d dataset
	d.attr("species", out.Species)
	d.attr("units", strconv.FormatFloat(out.Units, 'g', -1, 64))
	d.attr("run_id", out.RunID)
	d.attr("code_version", out.CodeVersion)
	d.attr("created_at", formatTime(out.CreatedAt))
	d.attr("start_date", formatTime(out.TimeRange.Start))
	d.attr("end_date", formatTime(out.TimeRange.End))
	d.attr("sites", strings.Join(out.SiteOrder, ","))
	d.attr("flux_sectors", strings.Join(out.Sectors, ","))
	if err := addFluxes(&d, out); err != nil {
		return fmt.Errorf("write run output %s: %w", out.RunID, err)
	}
	if err := addBoundaryCondition(&d, out.BoundaryCondition); err != nil {
		return fmt.Errorf("write run output %s: %w", out.RunID, err)
	}

	for _, site := range out.SiteOrder {
		ds, ok := out.Sites[site]
		if !ok {
			return fmt.Errorf("write run output: site %s missing from output", site)
		}
		dim := "time_" + site
		d.dim(dim, len(ds.Times))
		d.attr(site+"_inlet", ds.Inlet)
		d.attr(site+"_units", ds.Units)
		if rec, ok := out.Scales[site]; ok {
			d.attr(site+"_scale", rec.Scale)
			d.attr(site+"_scale_reference", rec.Reference)
			d.attr(site+"_scale_divergent", strconv.FormatBool(rec.Divergent))
			d.attr(site+"_scales_observed", strings.Join(rec.Observed, ","))
		}

		d.addTimes(site+"_time", dim, ds.Times)
		for _, name := range ds.VarNames() {
			d.add(site+"_"+name, []string{dim}, ds.Var(name), "")
		}
	}

	if err := d.write(path); err != nil {
		return fmt.Errorf("write run output %s: %w", out.RunID, err)
	}
	return nil
}

// ReadRunOutput loads a file written by WriteRunOutput.
func ReadRunOutput(path string) (*domain.RunOutput, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	units, err := cast.ToFloat64E(r.attr("units"))
	if err != nil {
		return nil, fmt.Errorf("%s: units attribute: %w", path, err)
	}
	out := &domain.RunOutput{
		RunID:       r.attr("run_id"),
		Species:     r.attr("species"),
		CodeVersion: r.attr("code_version"),
		Units:       units,
		Sectors:     splitList(r.attr("flux_sectors")),
		SiteOrder:   splitList(r.attr("sites")),
		Sites:       make(map[string]*domain.MergedDataset),
		Scales:      make(map[string]domain.ScaleRecord),
		CreatedAt:   parseTime(r.attr("created_at")),
		TimeRange: domain.TimeRange{
			Start: parseTime(r.attr("start_date")),
			End:   parseTime(r.attr("end_date")),
		},
	}
	if out.Fluxes, err = readFluxes(r, out.Sectors); err != nil {
		return nil, err
	}
	if out.BoundaryCondition, err = readRunBoundaryCondition(r); err != nil {
		return nil, err
	}

	vars := r.nc.Header.Variables()
	sort.Strings(vars)
	for _, site := range out.SiteOrder {
		times, err := r.times(site + "_time")
		if err != nil {
			return nil, err
		}
		ds := domain.NewMergedDataset(site, out.Species, times)
		ds.Inlet = r.attr(site + "_inlet")
		ds.Units = r.attr(site + "_units")

		prefix := site + "_"
		for _, v := range vars {
			name, ok := strings.CutPrefix(v, prefix)
			if !ok || name == "time" {
				continue
			}
			// Skip variables that belong to another site whose name extends this one.
			if !slices.Contains(r.nc.Header.Dimensions(v), "time_"+site) {
				continue
			}
			vals, _, err := r.floats(v)
			if err != nil {
				return nil, err
			}
			ds.Set(name, vals)
		}

		// The divergence flag is always written, so it marks a scale record.
		if div := r.attr(site + "_scale_divergent"); div != "" {
			rec := domain.ScaleRecord{
				Scale:     r.attr(site + "_scale"),
				Reference: r.attr(site + "_scale_reference"),
				Divergent: cast.ToBool(div),
				Observed:  splitList(r.attr(site + "_scales_observed")),
			}
			ds.Scale = rec.Scale
			out.Scales[site] = rec
		}
		out.Sites[site] = ds
	}
	return out, nil
}

// addFluxes writes one flux_<sector> variable per sector. Sectors share the
// lat and lon dimensions; each keeps its own time axis since carried-forward
// records differ in count.
func addFluxes(d *dataset, out *domain.RunOutput) error {
	gridWritten := false
	for _, sector := range out.Sectors {
		flux, ok := out.Fluxes[sector]
		if !ok {
			continue
		}
		if !gridWritten {
			d.dim("lat", len(flux.Lat))
			d.dim("lon", len(flux.Lon))
			d.add("lat", []string{"lat"}, flux.Lat, "degrees_north")
			d.add("lon", []string{"lon"}, flux.Lon, "degrees_east")
			gridWritten = true
		} else if len(flux.Lat) != d.lengthOf("lat") || len(flux.Lon) != d.lengthOf("lon") {
			return fmt.Errorf("flux %s: %w", sector, domain.ErrGridMismatch)
		}

		dim := "flux_time_" + sector
		d.dim(dim, len(flux.Times))
		d.attr("flux_"+sector+"_species", flux.Species)
		d.attr("flux_"+sector+"_domain", flux.Domain)
		d.addTimes(dim, dim, flux.Times)
		d.addArray("flux_"+sector, []string{dim, "lat", "lon"}, flux.Flux, flux.Units)
	}
	return nil
}

func readFluxes(r *reader, sectors []string) (map[string]*domain.FluxField, error) {
	if !r.has("lat") {
		return nil, nil
	}
	lat, _, err := r.floats("lat")
	if err != nil {
		return nil, err
	}
	lon, _, err := r.floats("lon")
	if err != nil {
		return nil, err
	}

	fluxes := make(map[string]*domain.FluxField, len(sectors))
	for _, sector := range sectors {
		name := "flux_" + sector
		if !r.has(name) {
			continue
		}
		flux := &domain.FluxField{
			Species: r.attr(name + "_species"),
			Domain:  r.attr(name + "_domain"),
			Sector:  sector,
			Units:   r.varUnits(name),
			Lat:     lat,
			Lon:     lon,
		}
		if flux.Times, err = r.times("flux_time_" + sector); err != nil {
			return nil, err
		}
		if flux.Flux, err = r.array(name); err != nil {
			return nil, err
		}
		fluxes[sector] = flux
	}
	return fluxes, nil
}

// addBoundaryCondition writes the faces as bc_vmr_<face> on bc_ prefixed
// dimensions so they never clash with the flux grid.
func addBoundaryCondition(d *dataset, bc *domain.BoundaryConditionField) error {
	if bc == nil {
		return nil
	}
	d.attr("bc_source", bc.Source)
	d.attr("bc_species", bc.Species)
	d.attr("bc_domain", bc.Domain)
	if len(bc.Faces) == 0 {
		return nil
	}

	d.dim("bc_time", len(bc.Times))
	d.dim("bc_height", len(bc.Heights))
	d.addTimes("bc_time", "bc_time", bc.Times)
	d.add("bc_height", []string{"bc_height"}, bc.Heights, "m")
	for _, f := range domain.Faces {
		arr, ok := bc.Faces[f]
		if !ok {
			continue
		}
		if len(arr.Shape) != 3 {
			return fmt.Errorf("boundary face %s has %d dimensions, want 3", f, len(arr.Shape))
		}
		dim := "bc_" + faceDim(f)
		switch l := d.lengthOf(dim); {
		case l < 0:
			d.dim(dim, arr.Shape[2])
		case l != arr.Shape[2]:
			return fmt.Errorf("boundary face %s: %w", f, domain.ErrGridMismatch)
		}
		d.addArray("bc_vmr_"+string(f), []string{"bc_time", "bc_height", dim}, arr, bc.Units)
	}
	return nil
}

func readRunBoundaryCondition(r *reader) (*domain.BoundaryConditionField, error) {
	src := r.attr("bc_source")
	if src == "" {
		return nil, nil
	}
	bc := &domain.BoundaryConditionField{
		Source:  src,
		Species: r.attr("bc_species"),
		Domain:  r.attr("bc_domain"),
	}
	if !r.has("bc_time") {
		return bc, nil
	}

	var err error
	if bc.Times, err = r.times("bc_time"); err != nil {
		return nil, err
	}
	if bc.Heights, _, err = r.floats("bc_height"); err != nil {
		return nil, err
	}
	bc.Faces = make(map[domain.Face]*sparse.DenseArray, len(domain.Faces))
	for _, f := range domain.Faces {
		name := "bc_vmr_" + string(f)
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

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
