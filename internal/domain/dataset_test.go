package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergedDataset_Copy(t *testing.T) {
	ds := NewMergedDataset("MHD", "ch4", []time.Time{time.Unix(0, 0)})
	ds.Set(VarModelled, []float64{1})

	cp := ds.Copy()
	cp.Var(VarModelled)[0] = 2
	cp.Drop(VarModelled)

	assert.Equal(t, []float64{1}, ds.Var(VarModelled))
	assert.False(t, cp.Has(VarModelled))
}

func TestMergedDataset_VarNames(t *testing.T) {
	ds := NewMergedDataset("MHD", "ch4", nil)
	ds.Set(VarModelled, nil)
	ds.Set(VarBoundary, nil)
	ds.Set(VarMoleFraction, nil)

	assert.Equal(t, []string{"bc_mod", "mf", "mf_mod"}, ds.VarNames())
}

func TestVariableNaming(t *testing.T) {
	assert.Equal(t, "mf_mod_high_res", ModelledVariable("CO2"))
	assert.Equal(t, "mf_mod", ModelledVariable("ch4"))
	assert.Equal(t, "mf_mod_high_res_ff", SectorVariable("co2", "ff"))
	assert.Equal(t, "mf_mod_anthropogenic", SectorVariable("ch4", "anthropogenic"))

	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "ch4_2019-01-01_test_merged-data.nc", MergedDataFilename("ch4", start, "test"))
}
