// Package averaging folds the variability inside each averaging window into
// the repeatability uncertainty of merged site datasets.
package averaging

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// Augmenter implements domain.AveragingErrorAugmenter by re-reading each
// site's observations at native resolution.
type Augmenter struct {
	obs    domain.ObservationStore
	logger *slog.Logger
}

// NewAugmenter creates an Augmenter backed by store.
func NewAugmenter(store domain.ObservationStore, logger *slog.Logger) *Augmenter {
	return &Augmenter{obs: store, logger: logger}
}

// Augment updates mf_repeatability of every site in out that was averaged.
// Sites without an averaging period are left untouched.
func (a *Augmenter) Augment(ctx context.Context, out *domain.RunOutput, req domain.AugmentRequest) error {
	for _, cfg := range req.Sites {
		ds, ok := out.Sites[cfg.Site]
		if !ok || cfg.AveragingPeriod == "" {
			continue
		}
		period, err := domain.ParseAveragingPeriod(cfg.AveragingPeriod)
		if err != nil {
			return fmt.Errorf("site %s: %w", cfg.Site, err)
		}

		raw, err := a.obs.FetchObservation(ctx, domain.ObservationQuery{
			Site:       cfg.Site,
			Species:    req.Species,
			Inlet:      cfg.Inlet,
			Instrument: cfg.Instrument,
			DataLevel:  cfg.DataLevel,
			TimeRange:  req.TimeRange,
			Store:      req.Store,
		})
		if err != nil {
			return fmt.Errorf("fetch native observation %s: %w", cfg.Site, err)
		}
		if ds.Units != "" && raw.Units != ds.Units {
			return fmt.Errorf("site %s: native series in %q, merged in %q: %w", cfg.Site, raw.Units, ds.Units, domain.ErrUnitMismatch)
		}

		sigma := WindowStdDev(raw.Times, raw.MoleFraction, ds.Times, period)
		Combine(ds, sigma)
		a.logger.Debug("averaging error added", "site", cfg.Site, "period", period, "raw_points", len(raw.Times))
	}
	return nil
}

// WindowStdDev returns, for each window start, the sample standard deviation
// of the finite values in [start, start+period). Windows with fewer than two
// values yield zero. times must be sorted.
func WindowStdDev(times []time.Time, values []float64, starts []time.Time, period time.Duration) []float64 {
	out := make([]float64, len(starts))
	window := make([]float64, 0, 16)
	for i, start := range starts {
		end := start.Add(period)
		lo := sort.Search(len(times), func(k int) bool { return !times[k].Before(start) })

		window = window[:0]
		for k := lo; k < len(times) && times[k].Before(end); k++ {
			if v := values[k]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				window = append(window, v)
			}
		}
		if len(window) >= 2 {
			out[i] = stat.StdDev(window, nil)
		}
	}
	return out
}

// Combine adds sigma in quadrature to the repeatability of ds, creating the
// variable from sigma when the dataset has none.
func Combine(ds *domain.MergedDataset, sigma []float64) {
	rep := ds.Var(domain.VarRepeatability)
	if rep == nil {
		ds.Set(domain.VarRepeatability, append([]float64(nil), sigma...))
		return
	}
	for i := range rep {
		if i < len(sigma) {
			rep[i] = math.Hypot(rep[i], sigma[i])
		}
	}
}
