package domain

import (
	"sort"
	"time"
)

// Variable names shared by the merge kernel, the assembler and the writers.
const (
	VarMoleFraction    = "mf"
	VarRepeatability   = "mf_repeatability"
	VarVariability     = "mf_variability"
	VarModelled        = "mf_mod"
	VarModelledHighRes = "mf_mod_high_res"
	VarBoundary        = "bc_mod"
)

// MergedDataset is the per-site result of a merge: named float variables on a
// shared time axis plus descriptive attributes.
type MergedDataset struct {
	Site    string
	Species string
	Inlet   string
	Scale   string
	Units   string
	Times   []time.Time
	Vars    map[string][]float64
}

// NewMergedDataset returns an empty dataset on the given time axis.
func NewMergedDataset(site, species string, times []time.Time) *MergedDataset {
	return &MergedDataset{
		Site:    site,
		Species: species,
		Times:   times,
		Vars:    make(map[string][]float64),
	}
}

// Has reports whether the dataset carries variable name.
func (d *MergedDataset) Has(name string) bool {
	_, ok := d.Vars[name]
	return ok
}

// Var returns the values of variable name, or nil.
func (d *MergedDataset) Var(name string) []float64 {
	return d.Vars[name]
}

// Set stores values under name, replacing any existing variable.
func (d *MergedDataset) Set(name string, values []float64) {
	if d.Vars == nil {
		d.Vars = make(map[string][]float64)
	}
	d.Vars[name] = values
}

// Drop removes variable name if present.
func (d *MergedDataset) Drop(name string) {
	delete(d.Vars, name)
}

// VarNames returns the variable names in lexical order.
func (d *MergedDataset) VarNames() []string {
	names := make([]string, 0, len(d.Vars))
	for n := range d.Vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Copy returns a deep copy of the dataset.
func (d *MergedDataset) Copy() *MergedDataset {
	out := *d
	out.Times = append([]time.Time(nil), d.Times...)
	out.Vars = make(map[string][]float64, len(d.Vars))
	for n, v := range d.Vars {
		out.Vars[n] = append([]float64(nil), v...)
	}
	return &out
}
