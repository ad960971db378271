package averaging

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

func minutes(ms ...int) []time.Time {
	out := make([]time.Time, len(ms))
	for i, m := range ms {
		out[i] = t0.Add(time.Duration(m) * time.Minute)
	}
	return out
}

type stubObsStore struct {
	series  *domain.ObservationSeries
	err     error
	queries []domain.ObservationQuery
}

func (s *stubObsStore) FetchObservation(_ context.Context, q domain.ObservationQuery) (*domain.ObservationSeries, error) {
	s.queries = append(s.queries, q)
	return s.series, s.err
}

func TestWindowStdDev(t *testing.T) {
	times := minutes(0, 20, 40, 60, 80, 120)
	values := []float64{1, 2, 3, 10, math.NaN(), 7}

	sigma := WindowStdDev(times, values, minutes(0, 60, 120, 180), time.Hour)

	require.Len(t, sigma, 4)
	assert.InDelta(t, 1.0, sigma[0], 1e-12, "sample std-dev of 1,2,3")
	assert.Zero(t, sigma[1], "one finite value in window")
	assert.Zero(t, sigma[2], "single value")
	assert.Zero(t, sigma[3], "empty window")
}

func TestCombine(t *testing.T) {
	ds := domain.NewMergedDataset("MHD", "ch4", minutes(0, 60))
	ds.Set(domain.VarRepeatability, []float64{3, math.NaN()})

	Combine(ds, []float64{4, 1})

	rep := ds.Var(domain.VarRepeatability)
	assert.InDelta(t, 5.0, rep[0], 1e-12)
	assert.True(t, math.IsNaN(rep[1]))
}

func TestCombine_MissingRepeatability(t *testing.T) {
	ds := domain.NewMergedDataset("MHD", "ch4", minutes(0, 60))
	sigma := []float64{0.5, 0}

	Combine(ds, sigma)
	sigma[0] = 99

	assert.Equal(t, []float64{0.5, 0}, ds.Var(domain.VarRepeatability))
}

func testOutput() *domain.RunOutput {
	mhd := domain.NewMergedDataset("MHD", "ch4", minutes(0, 60))
	mhd.Units = "1e-9"
	mhd.Set(domain.VarRepeatability, []float64{0.3, 0.4})
	tac := domain.NewMergedDataset("TAC", "ch4", minutes(0, 60))
	tac.Units = "1e-9"
	tac.Set(domain.VarRepeatability, []float64{0.3, 0.4})
	return &domain.RunOutput{
		Sites:     map[string]*domain.MergedDataset{"MHD": mhd, "TAC": tac},
		SiteOrder: []string{"MHD", "TAC"},
	}
}

func TestAugmenter_Augment(t *testing.T) {
	store := &stubObsStore{series: &domain.ObservationSeries{
		Units:        "1e-9",
		Times:        minutes(0, 30, 60, 90),
		MoleFraction: []float64{1900, 1900.4, 1910, 1910},
	}}
	a := NewAugmenter(store, slog.Default())
	out := testOutput()
	tr := domain.TimeRange{Start: t0, End: t0.Add(2 * time.Hour)}

	err := a.Augment(context.Background(), out, domain.AugmentRequest{
		Species:   "ch4",
		TimeRange: tr,
		Store:     "shared",
		Sites: []domain.SiteConfig{
			{Site: "MHD", Inlet: "10m", Instrument: "picarro", DataLevel: "2", AveragingPeriod: "1H"},
			{Site: "TAC"},
		},
	})
	require.NoError(t, err)

	require.Len(t, store.queries, 1, "sites without an averaging period are skipped")
	assert.Equal(t, domain.ObservationQuery{
		Site: "MHD", Species: "ch4", Inlet: "10m", Instrument: "picarro", DataLevel: "2",
		TimeRange: tr, Store: "shared",
	}, store.queries[0])

	sigma := math.Sqrt(0.08) // std-dev of {1900, 1900.4}
	rep := out.Sites["MHD"].Var(domain.VarRepeatability)
	assert.InDelta(t, math.Sqrt(0.09+sigma*sigma), rep[0], 1e-9)
	assert.InDelta(t, 0.4, rep[1], 1e-12, "identical values add nothing")
	assert.Equal(t, []float64{0.3, 0.4}, out.Sites["TAC"].Var(domain.VarRepeatability))
}

func TestAugmenter_FetchError(t *testing.T) {
	a := NewAugmenter(&stubObsStore{err: domain.ErrNotFound}, slog.Default())
	err := a.Augment(context.Background(), testOutput(), domain.AugmentRequest{
		Sites: []domain.SiteConfig{{Site: "MHD", AveragingPeriod: "1H"}},
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAugmenter_UnitMismatch(t *testing.T) {
	store := &stubObsStore{series: &domain.ObservationSeries{Units: "1e-6"}}
	a := NewAugmenter(store, slog.Default())
	err := a.Augment(context.Background(), testOutput(), domain.AugmentRequest{
		Sites: []domain.SiteConfig{{Site: "MHD", AveragingPeriod: "1H"}},
	})
	require.ErrorIs(t, err, domain.ErrUnitMismatch)
}

func TestAugmenter_BadPeriod(t *testing.T) {
	a := NewAugmenter(&stubObsStore{}, slog.Default())
	err := a.Augment(context.Background(), testOutput(), domain.AugmentRequest{
		Sites: []domain.SiteConfig{{Site: "MHD", AveragingPeriod: "hourly"}},
	})
	require.ErrorIs(t, err, domain.ErrAveragingPeriod)
}
