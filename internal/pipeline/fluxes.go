package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/ghg-merge/internal/domain"
)

// Dataset kinds used as metric labels.
const (
	kindObservation       = "observation"
	kindFootprint         = "footprint"
	kindFlux              = "flux"
	kindBoundaryCondition = "boundary_condition"
)

// validateSectors trims the requested sectors and rejects empty or repeated names.
func validateSectors(sectors []string) ([]string, error) {
	if len(sectors) == 0 {
		return nil, domain.ErrNoSectors
	}
	seen := make(map[string]bool, len(sectors))
	out := make([]string, 0, len(sectors))
	for _, s := range sectors {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("empty sector name: %w", domain.ErrNoSectors)
		}
		if seen[s] {
			return nil, fmt.Errorf("sector %q: %w", s, domain.ErrDuplicateSector)
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

// collectFluxes fetches every sector exactly once. The returned map is shared
// read-only by all sites of the run.
func (a *Assembler) collectFluxes(ctx context.Context, req domain.RunRequest, sectors []string) (map[string]*domain.FluxField, error) {
	fluxes := make(map[string]*domain.FluxField, len(sectors))
	for _, sector := range sectors {
		flux, err := fetch(a, kindFlux, func() (*domain.FluxField, error) {
			return a.stores.Fluxes.FetchFlux(ctx, domain.FluxQuery{
				Species:   req.Species,
				Domain:    req.Domain,
				Sector:    sector,
				TimeRange: req.TimeRange,
				Store:     req.FluxStore,
			})
		})
		if err != nil {
			return nil, fmt.Errorf("fetch flux %s: %w", sector, err)
		}
		fluxes[sector] = flux
	}
	return fluxes, nil
}
