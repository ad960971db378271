package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/ghg-merge/internal/domain"
	"gopkg.in/yaml.v3"
)

// StringList accepts either a single YAML scalar or a sequence of scalars.
// Null entries and the literal "None" decode to the empty string.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if isNone(node) {
			*l = nil
			return nil
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, len(node.Content))
		for i, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list entries must be scalars", item.Line)
			}
			if !isNone(item) {
				out[i] = item.Value
			}
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a value or a list", node.Line)
	}
}

func isNone(node *yaml.Node) bool {
	return node.Tag == "!!null" || node.Value == "None"
}

// RunFile is the YAML description of one assembly run.
type RunFile struct {
	Species          string     `yaml:"species"`
	Sites            StringList `yaml:"sites"`
	Domain           string     `yaml:"domain"`
	StartDate        string     `yaml:"start_date"`
	EndDate          string     `yaml:"end_date"`
	AveragingPeriod  StringList `yaml:"averaging_period"`
	ObsDataLevel     StringList `yaml:"obs_data_level"`
	Inlet            StringList `yaml:"inlet"`
	Instrument       StringList `yaml:"instrument"`
	FPHeight         StringList `yaml:"fp_height"`
	CalibrationScale string     `yaml:"calibration_scale"`
	MetModel         string     `yaml:"met_model"`
	FPModel          string     `yaml:"fp_model"`
	EmissionsName    StringList `yaml:"emissions_name"`

	UseBC   *bool  `yaml:"use_bc"`
	BCInput string `yaml:"bc_input"`

	BCStore        string `yaml:"bc_store"`
	ObsStore       string `yaml:"obs_store"`
	FootprintStore string `yaml:"footprint_store"`
	EmissionsStore string `yaml:"emissions_store"`

	AveragingError *bool  `yaml:"averagingerror"`
	SaveMergedData bool   `yaml:"save_merged_data"`
	MergedDataName string `yaml:"merged_data_name"`
	MergedDataDir  string `yaml:"merged_data_dir"`
}

// LoadRunFile reads and decodes the run file at path.
func LoadRunFile(path string) (*RunFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run file: %w", err)
	}
	defer f.Close()

	rf, err := ParseRunFile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rf, nil
}

// ParseRunFile decodes a run file, rejecting unknown keys.
func ParseRunFile(r io.Reader) (*RunFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rf RunFile
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("decode run file: %w", err)
	}
	return &rf, nil
}

// ToRequest validates the run file and converts it to a pipeline request.
// fp_model defaults to NAME; use_bc and averagingerror default to true.
func (rf *RunFile) ToRequest() (domain.RunRequest, error) {
	if rf.Species == "" {
		return domain.RunRequest{}, errors.New("species is required")
	}
	if len(rf.Sites) == 0 {
		return domain.RunRequest{}, errors.New("sites is required")
	}
	if rf.Domain == "" {
		return domain.RunRequest{}, errors.New("domain is required")
	}
	if len(rf.EmissionsName) == 0 {
		return domain.RunRequest{}, errors.New("emissions_name is required")
	}

	start, err := time.Parse(time.DateOnly, rf.StartDate)
	if err != nil {
		return domain.RunRequest{}, fmt.Errorf("invalid start_date %q: %w", rf.StartDate, err)
	}
	end, err := time.Parse(time.DateOnly, rf.EndDate)
	if err != nil {
		return domain.RunRequest{}, fmt.Errorf("invalid end_date %q: %w", rf.EndDate, err)
	}
	if !end.After(start) {
		return domain.RunRequest{}, errors.New("end_date must be after start_date")
	}
	for _, p := range rf.AveragingPeriod {
		if _, err := domain.ParseAveragingPeriod(p); err != nil {
			return domain.RunRequest{}, fmt.Errorf("averaging_period: %w", err)
		}
	}

	fpModel := rf.FPModel
	if fpModel == "" {
		fpModel = "NAME"
	}

	return domain.RunRequest{
		Species:          rf.Species,
		Sites:            append([]string(nil), rf.Sites...),
		Domain:           rf.Domain,
		TimeRange:        domain.TimeRange{Start: start, End: end},
		AveragingPeriod:  rf.AveragingPeriod,
		DataLevel:        rf.ObsDataLevel,
		Inlet:            rf.Inlet,
		Instrument:       rf.Instrument,
		FootprintHeight:  rf.FPHeight,
		CalibrationScale: rf.CalibrationScale,
		MetModel:         rf.MetModel,
		FootprintModel:   fpModel,
		Sectors:          rf.EmissionsName,
		UseBC:            boolOrDefault(rf.UseBC, true),
		BCInput:          rf.BCInput,
		ObsStore:         rf.ObsStore,
		FootprintStore:   rf.FootprintStore,
		FluxStore:        rf.EmissionsStore,
		BCStore:          rf.BCStore,
		AveragingError:   boolOrDefault(rf.AveragingError, true),
		SaveMergedData:   rf.SaveMergedData,
		MergedDataName:   rf.MergedDataName,
		MergedDataDir:    rf.MergedDataDir,
	}, nil
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
