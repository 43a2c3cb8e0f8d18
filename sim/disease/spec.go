package disease

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelSpec is the top-level disease model configuration.
// Loaded from YAML via LoadModel(path); Build turns it into a Model.
type ModelSpec struct {
	Name          string             `yaml:"name"`
	TicksPerYear  float64            `yaml:"ticks_per_year"`
	Mortality     MortalitySpec      `yaml:"mortality"`
	Complications []ComplicationSpec `yaml:"complications"`
	Acute         []AcuteSpec        `yaml:"acute_complications,omitempty"`
	Interventions []InterventionSpec `yaml:"interventions"`
	Population    PopulationSpec     `yaml:"population"`
}

// MortalitySpec parameterizes Gompertz background mortality,
// hazard(age) = alpha * exp(beta * age).
type MortalitySpec struct {
	Alpha *Param `yaml:"gompertz_alpha"`
	Beta  *Param `yaml:"gompertz_beta"`
}

// ComplicationSpec declares a chronic complication, its stages in increasing
// severity, and the transitions between them.
type ComplicationSpec struct {
	Name        string           `yaml:"name"`
	Stages      []StageSpec      `yaml:"stages"`
	Transitions []TransitionSpec `yaml:"transitions"`
}

// StageSpec declares a stage. IMR is the increased mortality ratio applied to
// background mortality while the stage is present (default 1).
type StageSpec struct {
	Name string `yaml:"name"`
	IMR  *Param `yaml:"imr,omitempty"`
}

// TransitionSpec declares an annual-probability transition. An empty From
// means the patient has no stage of the complication yet.
type TransitionSpec struct {
	Name             string `yaml:"name,omitempty"`
	From             string `yaml:"from,omitempty"`
	To               string `yaml:"to"`
	Probability      *Param `yaml:"probability"`
	DeathProbability *Param `yaml:"death_probability,omitempty"`
}

// AcuteSpec declares a recurrent acute complication.
type AcuteSpec struct {
	Name             string `yaml:"name"`
	Probability      *Param `yaml:"probability"`
	DeathProbability *Param `yaml:"death_probability,omitempty"`
}

// InterventionSpec declares an intervention. EffectYears = 0 means the
// effect lasts for the patient's lifetime. RelativeRisks are keyed by
// transition or acute complication name.
type InterventionSpec struct {
	Name          string            `yaml:"name"`
	EffectYears   float64           `yaml:"effect_years,omitempty"`
	RelativeRisks map[string]*Param `yaml:"relative_risks,omitempty"`
}

// PopulationSpec describes the cohort patients are drawn from.
type PopulationSpec struct {
	Age               DistSpec           `yaml:"age"`
	MaleProportion    float64            `yaml:"male_proportion"`
	InitialPrevalence map[string]float64 `yaml:"initial_prevalence,omitempty"`
}

// LoadModel reads, parses and builds a YAML model file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	return ParseModel(data)
}

// ParseModel parses and builds a model from YAML bytes.
func ParseModel(data []byte) (*Model, error) {
	var spec ModelSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	return Build(&spec)
}
