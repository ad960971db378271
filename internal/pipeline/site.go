package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"golang.org/x/sync/errgroup"
)

// SiteMerge is the merge result for one site. Breakdown maps sector variable
// names to their modelled mole fraction and is nil for single-sector runs.
type SiteMerge struct {
	Combined  *domain.MergedDataset
	Breakdown map[string][]float64
}

// Dataset returns the combined dataset with every sector variable attached.
func (m SiteMerge) Dataset() *domain.MergedDataset {
	for name, values := range m.Breakdown {
		m.Combined.Set(name, values)
	}
	return m.Combined
}

// siteResult carries what the final pass needs from one assembled site.
type siteResult struct {
	site     string
	dataset  *domain.MergedDataset
	units    string
	unit     float64
	scale    string
	boundary *domain.BoundaryConditionField
}

// assembleSites assembles every site, in parallel when configured. Results are
// returned in site order regardless of completion order.
func (a *Assembler) assembleSites(ctx context.Context, req domain.RunRequest, sites []domain.SiteConfig, fluxes map[string]*domain.FluxField, sectors []string) ([]siteResult, error) {
	results := make([]siteResult, len(sites))

	if a.opts.SiteConcurrency < 2 {
		for i, cfg := range sites {
			r, err := a.assembleSite(ctx, req, cfg, fluxes, sectors)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.SiteConcurrency)
	for i, cfg := range sites {
		g.Go(func() error {
			r, err := a.assembleSite(gctx, req, cfg, fluxes, sectors)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Assembler) assembleSite(ctx context.Context, req domain.RunRequest, cfg domain.SiteConfig, fluxes map[string]*domain.FluxField, sectors []string) (siteResult, error) {
	if err := ctx.Err(); err != nil {
		return siteResult{}, err
	}

	obs, err := fetch(a, kindObservation, func() (*domain.ObservationSeries, error) {
		return a.stores.Observations.FetchObservation(ctx, domain.ObservationQuery{
			Site:             cfg.Site,
			Species:          strings.ToLower(req.Species),
			Inlet:            cfg.Inlet,
			Instrument:       cfg.Instrument,
			DataLevel:        cfg.DataLevel,
			AveragingPeriod:  cfg.AveragingPeriod,
			CalibrationScale: req.CalibrationScale,
			TimeRange:        req.TimeRange,
			Store:            req.ObsStore,
		})
	})
	if err != nil {
		return siteResult{}, fmt.Errorf("fetch observation %s: %w", cfg.Site, err)
	}
	unit, err := domain.ParseUnit(obs.Units)
	if err != nil {
		return siteResult{}, fmt.Errorf("site %s: %w", cfg.Site, err)
	}

	fp, err := fetch(a, kindFootprint, func() (*domain.FootprintField, error) {
		return a.stores.Footprints.FetchFootprint(ctx, domain.FootprintQuery{
			Site:      cfg.Site,
			Height:    cfg.FootprintHeight,
			Domain:    req.Domain,
			Model:     req.FootprintModel,
			MetModel:  req.MetModel,
			TimeRange: req.TimeRange,
			Store:     req.FootprintStore,
		})
	})
	if err != nil {
		return siteResult{}, fmt.Errorf("fetch footprint %s: %w", cfg.Site, err)
	}

	var bc *domain.BoundaryConditionField
	if req.UseBC {
		native, err := fetch(a, kindBoundaryCondition, func() (*domain.BoundaryConditionField, error) {
			return a.stores.BoundaryConditions.FetchBoundaryCondition(ctx, domain.BoundaryConditionQuery{
				Species:   req.Species,
				Domain:    req.Domain,
				Source:    req.BCInput,
				TimeRange: req.TimeRange,
				Store:     req.BCStore,
			})
		})
		if err != nil {
			return siteResult{}, fmt.Errorf("fetch boundary condition for %s: %w", cfg.Site, err)
		}
		bc = domain.NormalizeBoundaryCondition(native, unit)
	}

	sc, err := a.builder.Build(domain.ScenarioInput{
		Site:              cfg.Site,
		Species:           req.Species,
		Inlet:             cfg.Inlet,
		TimeRange:         req.TimeRange,
		Observation:       obs,
		Footprint:         fp,
		Fluxes:            fluxes,
		BoundaryCondition: bc,
	})
	if err != nil {
		return siteResult{}, err
	}

	merged, err := mergeSectors(sc, req.Species, sectors)
	if err != nil {
		return siteResult{}, fmt.Errorf("merge %s: %w", cfg.Site, err)
	}
	ds := merged.Dataset()
	if bc != nil {
		domain.RestoreBoundaryContribution(ds, unit)
	}

	a.metrics.SitesAssembled.Inc()
	a.logger.Debug("site assembled",
		"site", cfg.Site,
		"times", len(ds.Times),
		"units", obs.Units,
		"scale", obs.CalibrationScale,
	)
	return siteResult{
		site:     cfg.Site,
		dataset:  ds,
		units:    obs.Units,
		unit:     unit,
		scale:    obs.CalibrationScale,
		boundary: bc,
	}, nil
}

// mergeSectors runs the one merge algorithm for any sector set. With more
// than one sector every sector is also merged on its own and recomputation is
// forced so no memoized result is reused.
func mergeSectors(sc domain.Scenario, species string, sectors []string) (SiteMerge, error) {
	recompute := len(sectors) > 1
	var breakdown map[string][]float64
	if recompute {
		breakdown = make(map[string][]float64, len(sectors))
		name := domain.ModelledVariable(species)
		for _, sector := range sectors {
			ds, err := sc.Merge(domain.MergeOptions{Sectors: []string{sector}, Recompute: true})
			if err != nil {
				return SiteMerge{}, err
			}
			breakdown[domain.SectorVariable(species, sector)] = ds.Var(name)
		}
	}

	combined, err := sc.Merge(domain.MergeOptions{Recompute: recompute})
	if err != nil {
		return SiteMerge{}, err
	}
	return SiteMerge{Combined: combined, Breakdown: breakdown}, nil
}

// fetch times one store call and records failures by dataset kind.
func fetch[T any](a *Assembler, kind string, call func() (T, error)) (T, error) {
	start := time.Now()
	v, err := call()
	a.metrics.FetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		a.metrics.FetchErrors.WithLabelValues(kind).Inc()
	}
	return v, err
}
