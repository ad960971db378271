package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/floats"
)

// ParseUnit interprets an observation unit attribute such as "1e-9" as the
// numeric scale of the mole fraction.
func ParseUnit(units string) (float64, error) {
	v, err := cast.ToFloat64E(strings.TrimSpace(units))
	if err != nil {
		return 0, fmt.Errorf("parse unit %q: %w", units, ErrUnitParse)
	}
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse unit %q: %w", units, ErrUnitParse)
	}
	return v, nil
}

// NormalizeBoundaryCondition returns a copy of bc with every face divided by
// unit, putting boundary values in observation units. bc is not modified.
func NormalizeBoundaryCondition(bc *BoundaryConditionField, unit float64) *BoundaryConditionField {
	out := bc.Copy()
	for _, arr := range out.Faces {
		floats.Scale(1/unit, arr.Elements)
	}
	out.Units = cast.ToString(unit)
	return out
}

// RestoreBoundaryContribution multiplies the boundary contribution of ds by
// unit, undoing NormalizeBoundaryCondition for user-facing output.
func RestoreBoundaryContribution(ds *MergedDataset, unit float64) {
	if bc := ds.Var(VarBoundary); bc != nil {
		floats.Scale(unit, bc)
	}
}
