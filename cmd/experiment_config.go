package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ull-isaatc/sighos-sub008/sim/experiment"
)

// ExperimentFile is the optional YAML file passed with --config.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type ExperimentFile struct {
	Model      string            `yaml:"model"`
	Experiment experiment.Config `yaml:"experiment"`
	Output     OutputConfig      `yaml:"output"`
}

// OutputConfig names the files written after a run. Empty paths are skipped.
type OutputConfig struct {
	Results string `yaml:"results"`
	Trace   string `yaml:"trace"`
	Metrics string `yaml:"metrics"`
}

// LoadExperimentFile reads path, starting from the default experiment
// settings so that omitted keys keep their defaults.
func LoadExperimentFile(path string) (*ExperimentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment file: %w", err)
	}

	// Typos must cause errors, not silently fall back to defaults.
	f := &ExperimentFile{Experiment: experiment.DefaultConfig()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(f); err != nil {
		return nil, fmt.Errorf("parsing experiment file %s: %w", path, err)
	}
	return f, nil
}
