package domain

import "context"

// ObservationQuery selects one observation series.
type ObservationQuery struct {
	Site             string
	Species          string
	Inlet            string
	Instrument       string
	DataLevel        string
	AveragingPeriod  string
	CalibrationScale string
	TimeRange        TimeRange
	Store            string
}

// FootprintQuery selects one site's footprint.
type FootprintQuery struct {
	Site      string
	Height    string
	Domain    string
	Model     string
	MetModel  string
	TimeRange TimeRange
	Store     string
}

// FluxQuery selects the flux field for one emission sector.
type FluxQuery struct {
	Species   string
	Domain    string
	Sector    string
	TimeRange TimeRange
	Store     string
}

// BoundaryConditionQuery selects a boundary-condition field.
type BoundaryConditionQuery struct {
	Species   string
	Domain    string
	Source    string
	TimeRange TimeRange
	Store     string
}

// ObservationStore retrieves measured mole-fraction series.
type ObservationStore interface {
	FetchObservation(ctx context.Context, q ObservationQuery) (*ObservationSeries, error)
}

// FootprintStore retrieves site footprints.
type FootprintStore interface {
	FetchFootprint(ctx context.Context, q FootprintQuery) (*FootprintField, error)
}

// FluxStore retrieves prior emission fields.
type FluxStore interface {
	FetchFlux(ctx context.Context, q FluxQuery) (*FluxField, error)
}

// BoundaryConditionStore retrieves domain boundary concentrations.
type BoundaryConditionStore interface {
	FetchBoundaryCondition(ctx context.Context, q BoundaryConditionQuery) (*BoundaryConditionField, error)
}

// ScenarioInput is everything needed to model one site.
// BoundaryCondition is nil when boundary conditions are disabled for the run,
// otherwise its values are already in observation units.
type ScenarioInput struct {
	Site              string
	Species           string
	Inlet             string
	TimeRange         TimeRange
	Observation       *ObservationSeries
	Footprint         *FootprintField
	Fluxes            map[string]*FluxField
	BoundaryCondition *BoundaryConditionField
}

// MergeOptions restricts a merge to a subset of flux sectors. An empty Sectors
// slice means every sector. Recompute bypasses any previously merged result.
type MergeOptions struct {
	Sectors   []string
	Recompute bool
}

// Scenario combines footprint, fluxes and boundary condition with the
// observations of one site.
type Scenario interface {
	Merge(opts MergeOptions) (*MergedDataset, error)
}

// ScenarioBuilder creates scenarios.
type ScenarioBuilder interface {
	Build(in ScenarioInput) (Scenario, error)
}

// AugmentRequest carries the parameters used for observation retrieval so the
// augmenter can re-read the same series at native resolution.
type AugmentRequest struct {
	Species   string
	Sites     []SiteConfig
	TimeRange TimeRange
	Store     string
}

// AveragingErrorAugmenter folds the variability inside each averaging window
// into the repeatability uncertainty of every site in out.
type AveragingErrorAugmenter interface {
	Augment(ctx context.Context, out *RunOutput, req AugmentRequest) error
}
