// Package disease holds the model context: chronic complications and their
// stages, acute complications, interventions and mortality parameters.
//
// A Model is built once from a ModelSpec and is read-only afterwards, so it
// can be shared by every replication and worker goroutine. Per-replication
// parameter values live in sim/risk, indexed by Param.ID.
package disease

import (
	"fmt"
	"math"
)

// Model is the explicit model context passed to every component.
type Model struct {
	Name         string
	TicksPerYear float64

	Complications []*Complication
	// Stages lists every stage of every complication in rank order.
	Stages        []*Stage
	Acute         []*AcuteComplication
	Interventions []*Intervention
	Mortality     Mortality
	Population    PopulationSpec

	// Params lists every uncertain parameter, indexed by Param.ID.
	Params []*Param

	stages        map[string]*Stage
	transitions   map[string]*Transition
	acute         map[string]*AcuteComplication
	interventions map[string]*Intervention
}

// Mortality holds the Gompertz background mortality parameters.
type Mortality struct {
	Alpha *Param
	Beta  *Param
}

// Complication is a coarse-grained chronic complication category.
type Complication struct {
	Name        string
	Index       int
	Stages      []*Stage
	Transitions []*Transition
}

func (c *Complication) String() string { return c.Name }

// Stage is a fine-grained disease state nested under a Complication.
// Rank is unique across the whole model and orders stages deterministically;
// within a complication a higher rank means a more advanced stage.
type Stage struct {
	Name         string
	Rank         int
	Complication *Complication
	IMR          *Param
}

func (s *Stage) String() string { return s.Name }

// Transition moves a patient of Complication from From (nil: no stage yet) to To.
type Transition struct {
	Name             string
	Index            int
	From             *Stage
	To               *Stage
	Probability      *Param
	DeathProbability *Param
}

func (t *Transition) String() string { return t.Name }

// AcuteComplication is a recurrent acute episode.
type AcuteComplication struct {
	Name             string
	Index            int
	Probability      *Param
	DeathProbability *Param
}

func (a *AcuteComplication) String() string { return a.Name }

// Intervention modifies transition and acute-episode risks while its effect lasts.
type Intervention struct {
	Name          string
	Index         int
	EffectYears   float64
	RelativeRisks map[string]*Param
}

func (i *Intervention) String() string { return i.Name }

// RelativeRisk returns the relative risk the intervention applies to the
// named transition or acute complication, or nil when it has none.
func (i *Intervention) RelativeRisk(name string) *Param {
	return i.RelativeRisks[name]
}

// HasFiniteEffect reports whether the intervention effect is lost at some point.
func (i *Intervention) HasFiniteEffect() bool {
	return i.EffectYears > 0
}

// Stage returns the stage with the given name, or nil.
func (m *Model) Stage(name string) *Stage { return m.stages[name] }

// Transition returns the transition with the given name, or nil.
func (m *Model) Transition(name string) *Transition { return m.transitions[name] }

// AcuteComplication returns the acute complication with the given name, or nil.
func (m *Model) AcuteComplication(name string) *AcuteComplication { return m.acute[name] }

// Intervention returns the intervention with the given name, or nil.
func (m *Model) Intervention(name string) *Intervention { return m.interventions[name] }

// InterventionsByName resolves names in order. An empty list selects every
// intervention in declaration order.
func (m *Model) InterventionsByName(names []string) ([]*Intervention, error) {
	if len(names) == 0 {
		return m.Interventions, nil
	}
	out := make([]*Intervention, 0, len(names))
	for _, n := range names {
		i := m.interventions[n]
		if i == nil {
			return nil, fmt.Errorf("unknown intervention %q", n)
		}
		out = append(out, i)
	}
	return out, nil
}

// ToTicks converts a duration in years to simulation ticks, truncating.
// Non-finite or overflowing durations map to Never.
func (m *Model) ToTicks(years float64) int64 {
	t := years * m.TicksPerYear
	if math.IsNaN(t) || math.IsInf(t, 0) || t >= math.MaxInt64/2 {
		return math.MaxInt64
	}
	if t < 0 {
		return 0
	}
	return int64(t)
}

// ToYears converts simulation ticks to years.
func (m *Model) ToYears(ticks int64) float64 {
	return float64(ticks) / m.TicksPerYear
}
