package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"github.com/google/uuid"
)

// finalize walks the assembled sites in request order: it asserts a single
// unit, records calibration scales, backfills repeatability, runs the
// averaging-error augmenter and builds the output.
func (a *Assembler) finalize(ctx context.Context, req domain.RunRequest, sites []domain.SiteConfig, sectors []string, fluxes map[string]*domain.FluxField, results []siteResult) (*domain.RunOutput, error) {
	out := &domain.RunOutput{
		RunID:       uuid.NewString(),
		Species:     strings.ToUpper(req.Species),
		Fluxes:      fluxes,
		Sectors:     sectors,
		Sites:       make(map[string]*domain.MergedDataset, len(results)),
		SiteOrder:   make([]string, 0, len(results)),
		Scales:      make(map[string]domain.ScaleRecord, len(results)),
		CodeVersion: a.opts.CodeVersion,
		CreatedAt:   domain.Now(),
		TimeRange:   req.TimeRange,
	}

	var scales domain.ScaleChecker
	first := results[0]
	for _, r := range results {
		if r.unit != first.unit {
			return nil, fmt.Errorf("site %s reports %q but %s reports %q: %w",
				r.site, r.units, first.site, first.units, domain.ErrUnitMismatch)
		}

		rec := scales.Observe(r.scale)
		if rec.Divergent {
			a.metrics.ScaleDivergences.Inc()
			a.logger.Warn("calibration scale differs from reference",
				"site", r.site, "scale", rec.Scale, "reference", rec.Reference)
		}
		out.Scales[r.site] = rec

		if n := domain.BackfillRepeatability(r.dataset); n > 0 {
			a.metrics.BackfilledValues.Add(float64(n))
			a.logger.Debug("repeatability backfilled from variability", "site", r.site, "values", n)
		}

		out.Sites[r.site] = r.dataset
		out.SiteOrder = append(out.SiteOrder, r.site)
		out.BoundaryCondition = r.boundary
	}
	out.Units = first.unit

	if req.AveragingError {
		if a.opts.Augmenter == nil {
			return nil, errors.New("averaging error requested but no augmenter is configured")
		}
		err := a.opts.Augmenter.Augment(ctx, out, domain.AugmentRequest{
			Species:   strings.ToLower(req.Species),
			Sites:     sites,
			TimeRange: req.TimeRange,
			Store:     req.ObsStore,
		})
		if err != nil {
			return nil, fmt.Errorf("augment averaging error: %w", err)
		}
	}
	return out, nil
}
