// Package listener collects arm outcomes and aggregates them across
// replications.
//
// A Collector observes one arm and is touched only by that arm's goroutine.
// An Aggregate is shared by every worker and synchronizes its own state.
package listener

import (
	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/arm"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/patient"
)

// ArmSummary is the outcome of one arm of one replication. Counts are cohort
// totals; time and life-year figures are in years.
type ArmSummary struct {
	Intervention string
	Patients     int

	// Prevalence counts stages present at start; Incidence counts stages
	// acquired during the simulation.
	Prevalence map[string]int
	Incidence  map[string]int
	Acute      map[string]int
	Deaths     map[string]int

	LifeYears float64
	// TimeToIncidence is the mean time from start to the first stage of
	// each complication, over patients who developed it.
	TimeToIncidence map[string]float64
}

// MeanLifeYears returns life-years per patient.
func (s ArmSummary) MeanLifeYears() float64 {
	if s.Patients == 0 {
		return 0
	}
	return s.LifeYears / float64(s.Patients)
}

// Collector accumulates the outcomes of one arm.
type Collector struct {
	model        *disease.Model
	horizon      int64
	intervention string

	started    int
	alive      int
	prevalence map[string]int
	incidence  map[string]int
	acute      map[string]int
	deaths     map[string]int
	lifeTicks  float64

	// first incidence per complication: sum of ticks and count
	firstSum   map[string]float64
	firstCount map[string]int
}

// NewCollector creates a collector for s and registers it as a listener.
func NewCollector(s *arm.Simulation) *Collector {
	c := newCollector(s.Model(), s.Kernel.Horizon, s.Intervention.Name)
	s.AddListener(c)
	return c
}

func newCollector(model *disease.Model, horizon int64, intervention string) *Collector {
	return &Collector{
		model:        model,
		horizon:      horizon,
		intervention: intervention,
		prevalence:   make(map[string]int),
		incidence:    make(map[string]int),
		acute:        make(map[string]int),
		deaths:       make(map[string]int),
		firstSum:     make(map[string]float64),
		firstCount:   make(map[string]int),
	}
}

// OnPatientEvent implements patient.Observer.
func (c *Collector) OnPatientEvent(ev patient.EventInfo) {
	switch ev.Kind {
	case patient.KindStart:
		c.started++
		c.alive++
		for _, s := range ev.Patient.Stages() {
			c.prevalence[s.Name]++
		}
	case patient.KindChronic:
		c.incidence[ev.Stage.Name]++
		if c.isFirstOfComplication(ev.Patient, ev.Stage) {
			name := ev.Stage.Complication.Name
			c.firstSum[name] += float64(ev.Time)
			c.firstCount[name]++
		}
	case patient.KindAcute:
		c.acute[ev.Acute.Name]++
	case patient.KindDeath:
		c.alive--
		c.deaths[ev.Cause.String()]++
		c.lifeTicks += float64(ev.Time)
	}
}

// isFirstOfComplication reports whether s is the only stage of its
// complication the patient has, so it was just acquired as the first one.
func (c *Collector) isFirstOfComplication(p *patient.Patient, s *disease.Stage) bool {
	for _, other := range s.Complication.Stages {
		if other != s && p.HasStage(other) {
			return false
		}
	}
	return true
}

// Finalize returns the arm's summary. Patients alive at the horizon
// contribute life-years up to it.
func (c *Collector) Finalize() ArmSummary {
	lifeTicks := c.lifeTicks
	if c.alive > 0 && c.horizon != sim.Never {
		lifeTicks += float64(c.alive) * float64(c.horizon)
	}
	summary := ArmSummary{
		Intervention:    c.intervention,
		Patients:        c.started,
		Prevalence:      copyCounts(c.prevalence),
		Incidence:       copyCounts(c.incidence),
		Acute:           copyCounts(c.acute),
		Deaths:          copyCounts(c.deaths),
		LifeYears:       lifeTicks / c.model.TicksPerYear,
		TimeToIncidence: make(map[string]float64, len(c.firstCount)),
	}
	for name, n := range c.firstCount {
		summary.TimeToIncidence[name] = c.firstSum[name] / float64(n) / c.model.TicksPerYear
	}
	return summary
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
