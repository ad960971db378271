// Package domain models the datasets that feed an atmospheric trace-gas inversion
// and the pure operations used to assemble them into one per-site structure.
//
// # Datasets
//
// Four kinds of data are combined for every run:
//
//	Observations      time series of measured mole fraction at one site/inlet,
//	                  optionally with repeatability and variability uncertainties.
//	Footprints        source-receptor sensitivity on the model domain grid, one per
//	                  site, plus per-face sensitivities to the domain boundary.
//	Fluxes            prior emission fields keyed by sector name ("anthropogenic",
//	                  "biogenic", ...). Fluxes belong to the domain, not a site.
//	Boundary values   concentrations on the four lateral faces (n/e/s/w) of the
//	                  domain, stored in the flux-model native unit (mol/mol).
//
// # Units
//
// Observation files carry their mole-fraction unit as a numeric scale, e.g.
// "1e-9" for ppb. Boundary values are divided by that scale before they reach the
// merge kernel and the resulting boundary contribution (bc_mod) is multiplied back,
// so consumers always see bc_mod in the native unit.
//
// # Variable naming
//
//	mf                  observed mole fraction
//	mf_repeatability    instrument precision; backfilled from variability
//	mf_variability      within-window variability; dropped after backfill
//	mf_mod              modelled mole fraction ("mf_mod_high_res" for co2)
//	mf_mod_<sector>     per-sector modelled mole fraction (multi-sector runs)
//	bc_mod              boundary contribution
//
// # Calibration scales
//
// Every site reports the calibration scale its measurements are on (e.g. "WMO-X2004A").
// Sites in one run are expected to share a scale; divergence is recorded per site in
// the run output rather than treated as an error.
package domain
