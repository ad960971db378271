package domain

import (
	"fmt"
	"strings"
)

// NormalizeSites upper-cases the requested sites in place and builds one
// SiteConfig per site. Each per-site parameter may be nil (every site gets ""),
// a single value (repeated for every site) or exactly one value per site.
// A site named twice is rejected with ErrDuplicateSite.
func NormalizeSites(req *RunRequest) ([]SiteConfig, error) {
	seen := make(map[string]bool, len(req.Sites))
	for i, s := range req.Sites {
		site := strings.ToUpper(strings.TrimSpace(s))
		if seen[site] {
			return nil, fmt.Errorf("site %q: %w", site, ErrDuplicateSite)
		}
		seen[site] = true
		req.Sites[i] = site
	}
	n := len(req.Sites)

	inlet, err := expand("inlet", req.Inlet, n)
	if err != nil {
		return nil, err
	}
	instrument, err := expand("instrument", req.Instrument, n)
	if err != nil {
		return nil, err
	}
	fpHeight, err := expand("fp_height", req.FootprintHeight, n)
	if err != nil {
		return nil, err
	}
	dataLevel, err := expand("obs_data_level", req.DataLevel, n)
	if err != nil {
		return nil, err
	}
	period, err := expand("averaging_period", req.AveragingPeriod, n)
	if err != nil {
		return nil, err
	}

	out := make([]SiteConfig, n)
	for i, site := range req.Sites {
		out[i] = SiteConfig{
			Site:            site,
			Inlet:           inlet[i],
			Instrument:      instrument[i],
			FootprintHeight: fpHeight[i],
			DataLevel:       dataLevel[i],
			AveragingPeriod: period[i],
		}
	}
	return out, nil
}

func expand(name string, values []string, n int) ([]string, error) {
	switch len(values) {
	case 0:
		return make([]string, n), nil
	case 1:
		out := make([]string, n)
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	case n:
		return values, nil
	default:
		return nil, fmt.Errorf("%s has %d values for %d sites: %w", name, len(values), n, ErrParamLength)
	}
}
