package domain

import (
	"time"

	"github.com/ctessum/sparse"
)

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// SiteConfig is the per-site parameter record produced by NormalizeSites.
// Empty strings mean "not specified" and let the store pick its default.
type SiteConfig struct {
	Site            string
	Inlet           string
	Instrument      string
	FootprintHeight string
	DataLevel       string
	AveragingPeriod string
}

// ObservationSeries is a measured mole-fraction series for one site and species.
// Repeatability and Variability are nil when the source has no such estimate;
// when present they share the Times axis with MoleFraction.
type ObservationSeries struct {
	Site             string
	Species          string
	Inlet            string
	Instrument       string
	DataLevel        string
	CalibrationScale string
	Units            string
	AveragingPeriod  string

	Times         []time.Time
	MoleFraction  []float64
	Repeatability []float64
	Variability   []float64
}

// Face names a lateral boundary of the model domain.
type Face string

const (
	FaceNorth Face = "n"
	FaceEast  Face = "e"
	FaceSouth Face = "s"
	FaceWest  Face = "w"
)

// Faces lists the four boundary faces in the order they are stored.
var Faces = []Face{FaceNorth, FaceEast, FaceSouth, FaceWest}

// FootprintField holds sensitivities for one site. Sensitivity is shaped
// [time, lat, lon]; each Boundary face is shaped [time, height, position] where
// position runs along lon for n/s faces and along lat for e/w faces.
type FootprintField struct {
	Site        string
	Domain      string
	Model       string
	Height      string
	Times       []time.Time
	Lat         []float64
	Lon         []float64
	Heights     []float64
	Sensitivity *sparse.DenseArray
	Boundary    map[Face]*sparse.DenseArray
}

// FluxField is a prior emission field for one sector, shaped [time, lat, lon].
type FluxField struct {
	Species string
	Domain  string
	Sector  string
	Units   string
	Times   []time.Time
	Lat     []float64
	Lon     []float64
	Flux    *sparse.DenseArray
}

// BoundaryConditionField holds concentrations on the four domain faces, each
// shaped [time, height, position].
type BoundaryConditionField struct {
	Species string
	Domain  string
	Source  string
	Units   string
	Times   []time.Time
	Heights []float64
	Faces   map[Face]*sparse.DenseArray
}

// Copy returns a deep copy of the boundary condition.
func (b *BoundaryConditionField) Copy() *BoundaryConditionField {
	if b == nil {
		return nil
	}
	out := *b
	out.Times = append([]time.Time(nil), b.Times...)
	out.Heights = append([]float64(nil), b.Heights...)
	out.Faces = make(map[Face]*sparse.DenseArray, len(b.Faces))
	for f, arr := range b.Faces {
		out.Faces[f] = arr.Copy()
	}
	return &out
}

// RunRequest carries every input the assembly pipeline needs. Per-site fields
// accept nil (absent), a single value (applies to every site) or one value per site.
type RunRequest struct {
	Species          string
	Sites            []string
	Domain           string
	TimeRange        TimeRange
	AveragingPeriod  []string
	DataLevel        []string
	Inlet            []string
	Instrument       []string
	FootprintHeight  []string
	CalibrationScale string
	MetModel         string
	FootprintModel   string
	Sectors          []string

	UseBC   bool
	BCInput string

	ObsStore       string
	FootprintStore string
	FluxStore      string
	BCStore        string

	AveragingError bool

	SaveMergedData bool
	MergedDataName string
	MergedDataDir  string
}

// ScaleRecord is the calibration-scale outcome for one site.
// Observed lists the distinct scales seen up to and including this site, in
// first-seen order, and is only populated once a divergence has occurred.
type ScaleRecord struct {
	Scale     string   `json:"scale"`
	Reference string   `json:"reference"`
	Divergent bool     `json:"divergent"`
	Observed  []string `json:"observed,omitempty"`
}

// RunOutput is the assembled result of one run. Metadata lives in named fields;
// Sites is keyed by upper-case site identifier and SiteOrder preserves request order.
type RunOutput struct {
	RunID             string
	Species           string
	Fluxes            map[string]*FluxField
	Sectors           []string
	BoundaryCondition *BoundaryConditionField
	Sites             map[string]*MergedDataset
	SiteOrder         []string
	Scales            map[string]ScaleRecord
	Units             float64
	CodeVersion       string
	CreatedAt         time.Time
	TimeRange         TimeRange
}
