package scenario

import (
	"testing"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/couchcryptid/ghg-merge/internal/mockdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

func testInput(t *testing.T, sectors map[string]float64, withBC bool) domain.ScenarioInput {
	t.Helper()
	g := mockdata.DefaultGrid()
	times := mockdata.HourlyTimes(testStart, 6)

	fluxes := make(map[string]*domain.FluxField, len(sectors))
	for name, mag := range sectors {
		fluxes[name] = mockdata.Flux("ch4", "EUROPE", name, g, times[:1], mag)
	}
	in := domain.ScenarioInput{
		Site:        "MHD",
		Species:     "ch4",
		Observation: mockdata.Observation("MHD", "ch4", times, 1900, 1, mockdata.ObservationOptions{CalibrationScale: "WMO-CH4-X2004A"}),
		Footprint:   mockdata.Footprint("MHD", "EUROPE", g, times, 7),
		Fluxes:      fluxes,
	}
	if withBC {
		bc := mockdata.BoundaryCondition("ch4", "EUROPE", "CAMS", g, times[:1], 1.85e-6)
		in.BoundaryCondition = domain.NormalizeBoundaryCondition(bc, 1e-9)
	}
	return in
}

func TestMerge_ModelledMoleFraction(t *testing.T) {
	in := testInput(t, map[string]float64{"anthropogenic": 1e-8}, false)
	sc, err := NewBuilder().Build(in)
	require.NoError(t, err)

	ds, err := sc.Merge(domain.MergeOptions{})
	require.NoError(t, err)

	require.Len(t, ds.Times, 6)
	mod := ds.Var(domain.VarModelled)
	require.Len(t, mod, 6)

	fp, flux := in.Footprint.Sensitivity, in.Fluxes["anthropogenic"].Flux
	var want float64
	for y := 0; y < fp.Shape[1]; y++ {
		for x := 0; x < fp.Shape[2]; x++ {
			want += fp.Get(2, y, x) * flux.Get(0, y, x)
		}
	}
	assert.InEpsilon(t, want/1e-9, mod[2], 1e-12, "flux is forward-filled from its only time step")
	assert.False(t, ds.Has(domain.VarBoundary))
	assert.Equal(t, "WMO-CH4-X2004A", ds.Scale)
	assert.Equal(t, "1e-9", ds.Units)
	assert.True(t, ds.Has(domain.VarRepeatability))
	assert.True(t, ds.Has(domain.VarVariability))
}

func TestMerge_SectorsSumToCombined(t *testing.T) {
	in := testInput(t, map[string]float64{"anthropogenic": 1e-8, "natural": 3e-9}, true)
	sc, err := NewBuilder().Build(in)
	require.NoError(t, err)

	a, err := sc.Merge(domain.MergeOptions{Sectors: []string{"anthropogenic"}, Recompute: true})
	require.NoError(t, err)
	b, err := sc.Merge(domain.MergeOptions{Sectors: []string{"natural"}, Recompute: true})
	require.NoError(t, err)
	all, err := sc.Merge(domain.MergeOptions{Recompute: true})
	require.NoError(t, err)

	for i := range all.Times {
		sum := a.Var(domain.VarModelled)[i] + b.Var(domain.VarModelled)[i]
		assert.InEpsilon(t, all.Var(domain.VarModelled)[i], sum, 1e-12)
	}
	assert.Equal(t, a.Var(domain.VarBoundary), all.Var(domain.VarBoundary), "bc_mod does not depend on sectors")
}

func TestMerge_BoundaryContribution(t *testing.T) {
	in := testInput(t, map[string]float64{"anthropogenic": 1e-8}, true)
	sc, err := NewBuilder().Build(in)
	require.NoError(t, err)

	ds, err := sc.Merge(domain.MergeOptions{})
	require.NoError(t, err)

	bc := ds.Var(domain.VarBoundary)
	require.Len(t, bc, 6)
	for _, v := range bc {
		// Sensitivities sum to one, so the contribution is a weighted mean of
		// the face values 1850..1905.5 ppb.
		assert.GreaterOrEqual(t, v, 1850.0-1e-6)
		assert.LessOrEqual(t, v, 1905.5+1e-6)
	}
}

func TestMerge_HighResolutionNameForCO2(t *testing.T) {
	in := testInput(t, map[string]float64{"ff": 1e-8}, false)
	in.Species = "co2"
	sc, err := NewBuilder().Build(in)
	require.NoError(t, err)

	ds, err := sc.Merge(domain.MergeOptions{})
	require.NoError(t, err)
	assert.True(t, ds.Has(domain.VarModelledHighRes))
	assert.False(t, ds.Has(domain.VarModelled))
}

func TestMerge_MemoizedResultIsCopied(t *testing.T) {
	in := testInput(t, map[string]float64{"anthropogenic": 1e-8}, false)
	sc, err := NewBuilder().Build(in)
	require.NoError(t, err)

	first, err := sc.Merge(domain.MergeOptions{})
	require.NoError(t, err)
	want := first.Var(domain.VarModelled)[0]
	first.Var(domain.VarModelled)[0] = -1
	first.Drop(domain.VarVariability)

	second, err := sc.Merge(domain.MergeOptions{})
	require.NoError(t, err)
	assert.InDelta(t, want, second.Var(domain.VarModelled)[0], 1e-12)
	assert.True(t, second.Has(domain.VarVariability))
}

func TestMerge_AlignsOnSharedTimes(t *testing.T) {
	in := testInput(t, map[string]float64{"anthropogenic": 1e-8}, false)
	in.Observation.Times[1] = in.Observation.Times[1].Add(30 * time.Minute)

	sc, err := NewBuilder().Build(in)
	require.NoError(t, err)
	ds, err := sc.Merge(domain.MergeOptions{})
	require.NoError(t, err)

	assert.Len(t, ds.Times, 5)
	assert.Equal(t, in.Observation.MoleFraction[2], ds.Var(domain.VarMoleFraction)[1])
}

func TestMerge_UnknownSector(t *testing.T) {
	in := testInput(t, map[string]float64{"anthropogenic": 1e-8}, false)
	sc, err := NewBuilder().Build(in)
	require.NoError(t, err)

	_, err = sc.Merge(domain.MergeOptions{Sectors: []string{"waste"}})
	assert.ErrorIs(t, err, ErrUnknownSector)
}

func TestBuild_GridMismatch(t *testing.T) {
	in := testInput(t, map[string]float64{"anthropogenic": 1e-8}, false)
	small := mockdata.Grid{Lat: []float64{50}, Lon: []float64{0}, Heights: []float64{500}}
	in.Fluxes["anthropogenic"] = mockdata.Flux("ch4", "EUROPE", "anthropogenic", small, in.Footprint.Times[:1], 1e-8)

	_, err := NewBuilder().Build(in)
	assert.ErrorIs(t, err, domain.ErrGridMismatch)
}

func TestBuild_BadUnit(t *testing.T) {
	in := testInput(t, map[string]float64{"anthropogenic": 1e-8}, false)
	in.Observation.Units = "ppb"

	_, err := NewBuilder().Build(in)
	assert.ErrorIs(t, err, domain.ErrUnitParse)
}

func TestForwardIndex(t *testing.T) {
	times := mockdata.HourlyTimes(testStart, 3)
	assert.Equal(t, 0, forwardIndex(times, testStart.Add(-time.Hour)))
	assert.Equal(t, 0, forwardIndex(times, testStart))
	assert.Equal(t, 1, forwardIndex(times, testStart.Add(90*time.Minute)))
	assert.Equal(t, 2, forwardIndex(times, testStart.Add(10*time.Hour)))
}
