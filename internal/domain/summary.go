package domain

import "time"

// RunSummary is the compact, serializable description of a completed run that
// is published to downstream consumers.
type RunSummary struct {
	RunID       string                 `json:"run_id"`
	Species     string                 `json:"species"`
	Sites       []string               `json:"sites"`
	Sectors     []string               `json:"sectors"`
	Units       float64                `json:"units"`
	Scales      map[string]ScaleRecord `json:"scales"`
	BCSource    string                 `json:"bc_source,omitempty"`
	OutputPath  string                 `json:"output_path,omitempty"`
	CodeVersion string                 `json:"code_version"`
	Start       time.Time              `json:"start"`
	End         time.Time              `json:"end"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Summarize builds the summary of out. outputPath is empty when the run was
// not persisted.
func Summarize(out *RunOutput, outputPath string) RunSummary {
	s := RunSummary{
		RunID:       out.RunID,
		Species:     out.Species,
		Sites:       append([]string(nil), out.SiteOrder...),
		Sectors:     append([]string(nil), out.Sectors...),
		Units:       out.Units,
		Scales:      out.Scales,
		OutputPath:  outputPath,
		CodeVersion: out.CodeVersion,
		Start:       out.TimeRange.Start,
		End:         out.TimeRange.End,
		CreatedAt:   out.CreatedAt,
	}
	if out.BoundaryCondition != nil {
		s.BCSource = out.BoundaryCondition.Source
	}
	return s
}
