package experiment

import (
	"errors"
	"fmt"

	"github.com/ull-isaatc/sighos-sub008/sim/trace"
)

// Config controls an experiment run.
type Config struct {
	Patients int   `yaml:"patients"`
	Runs     int   `yaml:"runs"` // probabilistic replications after the base case
	Threads  int   `yaml:"threads"`
	Parallel bool  `yaml:"parallel"`
	Seed     int64 `yaml:"seed"`
	// HorizonYears bounds every arm; 0 simulates whole lifetimes.
	HorizonYears float64 `yaml:"horizon_years"`
	// Interventions names the arms in order; empty runs every intervention of the model.
	Interventions []string `yaml:"interventions"`
	// Trace records the patient events of the base case arms.
	Trace trace.TraceLevel `yaml:"trace"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Patients: 1000,
		Runs:     100,
		Threads:  1,
		Seed:     42,
		Trace:    trace.TraceLevelNone,
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Patients <= 0 {
		errs = append(errs, fmt.Errorf("patients must be > 0, got %d", c.Patients))
	}
	if c.Runs < 0 {
		errs = append(errs, fmt.Errorf("runs must be >= 0, got %d", c.Runs))
	}
	if c.Parallel && c.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be >= 1 for parallel runs, got %d", c.Threads))
	}
	if c.HorizonYears < 0 {
		errs = append(errs, fmt.Errorf("horizon_years must be >= 0, got %g", c.HorizonYears))
	}
	if !trace.IsValidTraceLevel(string(c.Trace)) {
		errs = append(errs, fmt.Errorf("unknown trace level %q", c.Trace))
	}
	return errors.Join(errs...)
}
