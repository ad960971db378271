package domain

import "errors"

var (
	// ErrNotFound is returned by stores when no dataset matches a query.
	ErrNotFound = errors.New("dataset not found")

	// ErrParamLength means a per-site parameter list does not match the site count.
	ErrParamLength = errors.New("per-site parameter length does not match site count")

	// ErrUnitParse means an observation unit is not a usable numeric scale.
	ErrUnitParse = errors.New("observation unit is not a numeric scale")

	// ErrUnitMismatch means two sites in one run report different units.
	ErrUnitMismatch = errors.New("observation units differ between sites")

	// ErrNoSites means a run named no measurement sites.
	ErrNoSites = errors.New("no sites requested")

	// ErrDuplicateSite means a site was named more than once after upper-casing.
	ErrDuplicateSite = errors.New("duplicate site")

	// ErrNoSectors means a run named no emission sectors.
	ErrNoSectors = errors.New("no emission sectors requested")

	// ErrDuplicateSector means a sector was named more than once.
	ErrDuplicateSector = errors.New("duplicate emission sector")

	// ErrGridMismatch means two gridded fields do not share a grid.
	ErrGridMismatch = errors.New("grid shapes do not match")

	// ErrAveragingPeriod means an averaging period string could not be parsed.
	ErrAveragingPeriod = errors.New("invalid averaging period")
)
