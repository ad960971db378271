package domain

import "slices"

// ScaleChecker tracks calibration scales across the sites of one run in
// processing order. The first observed scale is the reference.
type ScaleChecker struct {
	reference string
	distinct  []string
	observed  int
	diverged  bool
}

// Observe records the next site's scale and returns that site's record.
// Once any site has diverged from the reference, every later record also lists
// the distinct scales seen so far.
func (c *ScaleChecker) Observe(scale string) ScaleRecord {
	if c.observed == 0 {
		c.reference = scale
	}
	c.observed++
	if !slices.Contains(c.distinct, scale) {
		c.distinct = append(c.distinct, scale)
	}

	rec := ScaleRecord{
		Scale:     scale,
		Reference: c.reference,
		Divergent: scale != c.reference,
	}
	if rec.Divergent {
		c.diverged = true
	}
	if c.diverged {
		rec.Observed = slices.Clone(c.distinct)
	}
	return rec
}

// Diverged reports whether any observed scale differed from the reference.
func (c *ScaleChecker) Diverged() bool { return c.diverged }

// Distinct returns the distinct scales in first-seen order.
func (c *ScaleChecker) Distinct() []string { return slices.Clone(c.distinct) }
