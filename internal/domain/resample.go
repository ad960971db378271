package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// periodRe matches averaging periods such as "1H", "30min", "4h" or "1D".
var periodRe = regexp.MustCompile(`^(\d+)\s*([a-zA-Z]+)$`)

// ParseAveragingPeriod converts an averaging period string to a duration.
// An empty string means no averaging and returns zero.
func ParseAveragingPeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := periodRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("parse %q: %w", s, ErrAveragingPeriod)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("parse %q: %w", s, ErrAveragingPeriod)
	}

	var unit time.Duration
	switch strings.ToLower(m[2]) {
	case "s", "sec":
		unit = time.Second
	case "t", "min":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("parse %q: unknown unit %q: %w", s, m[2], ErrAveragingPeriod)
	}
	return time.Duration(n) * unit, nil
}

// ResampleObservation averages obs into consecutive windows of the given period,
// aligned to multiples of the period in UTC. Each window reports the mean mole
// fraction, the sample standard deviation as variability and the combined
// repeatability sqrt(sum r^2)/n. Windows without any defined mole fraction are
// dropped. The input is assumed sorted by time.
func ResampleObservation(obs *ObservationSeries, period time.Duration) *ObservationSeries {
	out := *obs
	out.Times = nil
	out.MoleFraction = nil
	out.Variability = nil
	out.Repeatability = nil
	hasRep := obs.Repeatability != nil

	var (
		binStart time.Time
		mf, rep  []float64
	)
	flush := func() {
		if len(mf) == 0 {
			return
		}
		out.Times = append(out.Times, binStart)
		out.MoleFraction = append(out.MoleFraction, stat.Mean(mf, nil))
		if len(mf) > 1 {
			out.Variability = append(out.Variability, stat.StdDev(mf, nil))
		} else {
			out.Variability = append(out.Variability, math.NaN())
		}
		if hasRep {
			out.Repeatability = append(out.Repeatability, combineRepeatability(rep))
		}
	}

	for i, t := range obs.Times {
		start := t.UTC().Truncate(period)
		if i == 0 || !start.Equal(binStart) {
			flush()
			binStart = start
			mf, rep = mf[:0], rep[:0]
		}
		if math.IsNaN(obs.MoleFraction[i]) {
			continue
		}
		mf = append(mf, obs.MoleFraction[i])
		if hasRep && !math.IsNaN(obs.Repeatability[i]) {
			rep = append(rep, obs.Repeatability[i])
		}
	}
	flush()

	if out.Variability == nil {
		out.Variability = []float64{}
	}
	return &out
}

func combineRepeatability(rep []float64) float64 {
	if len(rep) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, r := range rep {
		sum += r * r
	}
	return math.Sqrt(sum) / float64(len(rep))
}
