package domain

import (
	"fmt"
	"strings"
	"time"
)

// ModelledVariable returns the name the merge kernel gives the modelled mole
// fraction for species. CO2 is modelled at high temporal resolution.
func ModelledVariable(species string) string {
	if strings.EqualFold(species, "co2") {
		return VarModelledHighRes
	}
	return VarModelled
}

// SectorVariable returns the per-sector modelled mole-fraction name,
// e.g. "mf_mod_anthropogenic" or "mf_mod_high_res_ff" for co2.
func SectorVariable(species, sector string) string {
	return ModelledVariable(species) + "_" + sector
}

// MergedDataFilename builds the file name used to persist a run output.
func MergedDataFilename(species string, start time.Time, label string) string {
	return fmt.Sprintf("%s_%s_%s_merged-data.nc", species, start.Format(time.DateOnly), label)
}
