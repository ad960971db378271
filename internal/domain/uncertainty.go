package domain

import "math"

// BackfillRepeatability fills undefined repeatability values from finite
// variability values at the same position, then drops the variability variable.
// Datasets lacking either variable are left untouched. It returns the number of
// positions filled.
func BackfillRepeatability(ds *MergedDataset) int {
	if !ds.Has(VarRepeatability) || !ds.Has(VarVariability) {
		return 0
	}
	rep, variab := ds.Var(VarRepeatability), ds.Var(VarVariability)

	filled := 0
	for i := range rep {
		if i >= len(variab) {
			break
		}
		if math.IsNaN(rep[i]) && !math.IsNaN(variab[i]) && !math.IsInf(variab[i], 0) {
			rep[i] = variab[i]
			filled++
		}
	}
	ds.Drop(VarVariability)
	return filled
}
