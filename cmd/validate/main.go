// Command validate checks the integrity of a merged-data file written by
// cmd/assemble: run metadata, per-site variables, the variability backfill,
// per-sector sums and calibration-scale records. When a run file is given the
// file is also checked against the requested species, sites and sectors.
//
// Usage:
//
//	go run ./cmd/validate -file out/ch4_2019-01-01_run_merged-data.nc -run-file run.yaml
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/ghg-merge/internal/adapter/ncstore"
	"github.com/couchcryptid/ghg-merge/internal/config"
	"github.com/couchcryptid/ghg-merge/internal/domain"
)

// sumTolerance is the relative difference allowed between the combined
// modelled mole fraction and the sum of its sectors.
const sumTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", "", "merged-data netCDF file to validate")
	runFile := flag.String("run-file", "", "optional run file the output was produced from")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*file, *runFile); code != 0 {
		os.Exit(code)
	}
}

func run(path, runFile string) int {
	fmt.Println("=== Merged Data Validation ===")
	fmt.Println()

	out, err := ncstore.ReadRunOutput(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load merged data: %v\n", err)
		return 1
	}

	var req *domain.RunRequest
	if runFile != "" {
		rf, err := config.LoadRunFile(runFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load run file: %v\n", err)
			return 1
		}
		r, err := rf.ToRequest()
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: run file: %v\n", err)
			return 1
		}
		req = &r
	}

	phases := validate(out, req)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Run %s: %s, %d sites, %d sectors\n", out.RunID, out.Species, len(out.SiteOrder), len(out.Sectors))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validate(out *domain.RunOutput, req *domain.RunRequest) []*phase {
	return []*phase{
		validateMetadata(out, req),
		validateSiteVariables(out),
		validateVariabilityDropped(out),
		validateSectorSums(out),
		validateScaleRecords(out),
	}
}

// ── Phase 1: Metadata ──

func validateMetadata(out *domain.RunOutput, req *domain.RunRequest) *phase {
	p := &phase{name: "Phase 1: Run Metadata"}

	if out.RunID == "" {
		p.errorf("run_id is missing")
	}
	if out.Species == "" {
		p.errorf("species is missing")
	} else if out.Species != strings.ToUpper(out.Species) {
		p.errorf("species %q is not upper-case", out.Species)
	}
	if out.CodeVersion == "" {
		p.errorf("code_version is missing")
	}
	if !(out.Units > 0) {
		p.errorf("units %v is not a positive scale", out.Units)
	}
	if len(out.SiteOrder) == 0 {
		p.errorf("no sites in file")
	}
	if len(out.Sectors) == 0 {
		p.errorf("no flux sectors in file")
	}
	if !out.TimeRange.End.After(out.TimeRange.Start) {
		p.errorf("time range %s to %s is empty", out.TimeRange.Start, out.TimeRange.End)
	}

	if req == nil {
		return p
	}
	if !strings.EqualFold(out.Species, req.Species) {
		p.errorf("species: run file %q, output %q", req.Species, out.Species)
	}
	wantSites := make([]string, len(req.Sites))
	for i, s := range req.Sites {
		wantSites[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if !slices.Equal(wantSites, out.SiteOrder) {
		p.errorf("sites: run file %v, output %v", wantSites, out.SiteOrder)
	}
	if !slices.Equal(req.Sectors, out.Sectors) {
		p.errorf("sectors: run file %v, output %v", req.Sectors, out.Sectors)
	}
	if req.UseBC && out.BoundaryCondition == nil {
		p.errorf("boundary conditions requested but bc_source is missing")
	}
	if !req.UseBC && out.BoundaryCondition != nil {
		p.errorf("boundary conditions disabled but bc_source is %q", out.BoundaryCondition.Source)
	}
	return p
}

// ── Phase 2: Per-site variables ──

func validateSiteVariables(out *domain.RunOutput) *phase {
	p := &phase{name: "Phase 2: Per-site Variables"}
	modelled := domain.ModelledVariable(out.Species)

	for _, site := range out.SiteOrder {
		ds, ok := out.Sites[site]
		if !ok {
			p.errorf("%s: listed but has no variables", site)
			continue
		}
		required := []string{domain.VarMoleFraction, modelled}
		if out.BoundaryCondition != nil {
			required = append(required, domain.VarBoundary)
		}
		for _, name := range required {
			if !ds.Has(name) {
				p.errorf("%s: missing %s", site, name)
			}
		}
		for _, name := range ds.VarNames() {
			if n := len(ds.Var(name)); n != len(ds.Times) {
				p.errorf("%s: %s has %d values for %d times", site, name, n, len(ds.Times))
			}
		}
		for i := 1; i < len(ds.Times); i++ {
			if !ds.Times[i].After(ds.Times[i-1]) {
				p.errorf("%s: time %d (%s) does not increase", site, i, ds.Times[i])
				break
			}
		}
		for i, t := range ds.Times {
			if !out.TimeRange.Contains(t) {
				p.errorf("%s: time %d (%s) outside the run range", site, i, t)
				break
			}
		}
	}
	return p
}

// ── Phase 3: Variability dropped ──

func validateVariabilityDropped(out *domain.RunOutput) *phase {
	p := &phase{name: "Phase 3: Variability Backfill"}
	for _, site := range out.SiteOrder {
		ds, ok := out.Sites[site]
		if !ok {
			continue
		}
		if ds.Has(domain.VarVariability) {
			p.errorf("%s: %s still present after backfill", site, domain.VarVariability)
		}
		for i, r := range ds.Var(domain.VarRepeatability) {
			if r < 0 {
				p.errorf("%s: negative repeatability %v at %d", site, r, i)
				break
			}
		}
	}
	return p
}

// ── Phase 4: Sector sums ──

func validateSectorSums(out *domain.RunOutput) *phase {
	p := &phase{name: "Phase 4: Sector Sums"}
	modelled := domain.ModelledVariable(out.Species)

	for _, site := range out.SiteOrder {
		ds, ok := out.Sites[site]
		if !ok {
			continue
		}
		if len(out.Sectors) < 2 {
			for _, sector := range out.Sectors {
				if name := domain.SectorVariable(out.Species, sector); ds.Has(name) {
					p.errorf("%s: single-sector run carries %s", site, name)
				}
			}
			continue
		}

		total := ds.Var(modelled)
		sum := make([]float64, len(total))
		complete := true
		for _, sector := range out.Sectors {
			name := domain.SectorVariable(out.Species, sector)
			vals := ds.Var(name)
			if vals == nil {
				p.errorf("%s: missing %s", site, name)
				complete = false
				continue
			}
			for i := range sum {
				if i < len(vals) {
					sum[i] += vals[i]
				}
			}
		}
		if !complete {
			continue
		}
		for i := range total {
			if !closeEnough(total[i], sum[i]) {
				p.errorf("%s: %s[%d] = %v, sectors sum to %v", site, modelled, i, total[i], sum[i])
				break
			}
		}
	}
	return p
}

func closeEnough(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= sumTolerance*math.Max(scale, 1)
}

// ── Phase 5: Scale records ──

func validateScaleRecords(out *domain.RunOutput) *phase {
	p := &phase{name: "Phase 5: Calibration Scales"}

	var reference string
	first, diverged := true, false
	for _, site := range out.SiteOrder {
		rec, ok := out.Scales[site]
		if !ok {
			p.errorf("%s: no scale record", site)
			continue
		}
		if first {
			reference, first = rec.Reference, false
		}
		if rec.Reference != reference {
			p.errorf("%s: reference %q differs from %q", site, rec.Reference, reference)
		}
		if want := rec.Scale != rec.Reference; rec.Divergent != want {
			p.errorf("%s: divergent=%t but scale %q vs reference %q", site, rec.Divergent, rec.Scale, rec.Reference)
		}
		diverged = diverged || rec.Divergent
		if diverged && !slices.Contains(rec.Observed, rec.Scale) {
			p.errorf("%s: observed scales %v do not include %q", site, rec.Observed, rec.Scale)
		}
	}
	return p
}
