package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/arm"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/internal/testutil"
	"github.com/ull-isaatc/sighos-sub008/sim/patient"
	"github.com/ull-isaatc/sighos-sub008/sim/population"
	"github.com/ull-isaatc/sighos-sub008/sim/risk"
)

const testModelYAML = `
name: listener
ticks_per_year: 1
mortality: {gompertz_alpha: {value: 0.0001}, gompertz_beta: {value: 0.08}}
complications:
  - name: A
    stages: [{name: A1}, {name: A2}]
    transitions:
      - {to: A1, probability: {value: 0.1}}
      - {from: A1, to: A2, probability: {value: 0.1}}
acute_complications:
  - {name: H, probability: {value: 0.1}}
interventions:
  - {name: STD}
population: {age: {type: constant, params: {value: 40}}}
`

func newTestModel(t *testing.T) *disease.Model {
	t.Helper()
	m, err := disease.ParseModel([]byte(testModelYAML))
	require.NoError(t, err)
	return m
}

func TestCollector_CountsEventsAndLifeYears(t *testing.T) {
	// GIVEN a collector over a 100-year horizon and three patients
	m := newTestModel(t)
	c := newCollector(m, 100, "STD")
	env := &patient.Environment{Kernel: sim.NewKernel(100), Model: m}
	p := []*patient.Patient{
		patient.New(0, &patient.Profile{Age: 40}, m.Intervention("STD"), env),
		patient.New(1, &patient.Profile{Age: 40}, m.Intervention("STD"), env),
		patient.New(2, &patient.Profile{Age: 40}, m.Intervention("STD"), env),
	}

	// WHEN they start, one gets A1 and two episodes of H, two die
	for _, pt := range p {
		c.OnPatientEvent(patient.EventInfo{Patient: pt, Kind: patient.KindStart})
	}
	c.OnPatientEvent(patient.EventInfo{Patient: p[0], Kind: patient.KindChronic, Time: 10, Stage: m.Stage("A1")})
	c.OnPatientEvent(patient.EventInfo{Patient: p[1], Kind: patient.KindAcute, Time: 5, Acute: m.Acute[0]})
	c.OnPatientEvent(patient.EventInfo{Patient: p[1], Kind: patient.KindAcute, Time: 7, Acute: m.Acute[0]})
	c.OnPatientEvent(patient.EventInfo{Patient: p[0], Kind: patient.KindDeath, Time: 30, Cause: patient.Cause{Stage: m.Stage("A1")}})
	c.OnPatientEvent(patient.EventInfo{Patient: p[1], Kind: patient.KindDeath, Time: 50})

	// THEN
	s := c.Finalize()
	assert.Equal(t, "STD", s.Intervention)
	assert.Equal(t, 3, s.Patients)
	assert.Equal(t, map[string]int{"A1": 1}, s.Incidence)
	assert.Equal(t, map[string]int{"H": 2}, s.Acute)
	assert.Equal(t, map[string]int{"A1": 1, "background": 1}, s.Deaths)
	assert.InDelta(t, 30+50+100, s.LifeYears, 1e-9, "survivor counts up to the horizon")
	assert.InDelta(t, 60, s.MeanLifeYears(), 1e-9)
	assert.InDelta(t, 10, s.TimeToIncidence["A"], 1e-9)
}

func TestCollector_LifetimeHorizonCountsOnlyDeaths(t *testing.T) {
	m := newTestModel(t)
	c := newCollector(m, sim.Never, "STD")
	env := &patient.Environment{Kernel: sim.NewKernel(sim.Never), Model: m}
	pt := patient.New(0, &patient.Profile{Age: 40}, m.Intervention("STD"), env)

	c.OnPatientEvent(patient.EventInfo{Patient: pt, Kind: patient.KindStart})
	s := c.Finalize()

	assert.Equal(t, 1, s.Patients)
	assert.Zero(t, s.LifeYears)
}

func TestNewCollector_ObservesWholeArm(t *testing.T) {
	// GIVEN an arm of the full test model with a collector attached
	m := testutil.LoadModel(t)
	inst := risk.NewRepository(m).ForReplication(3, 0)
	pop, err := population.New(m, inst.CRN())
	require.NoError(t, err)
	cfg := arm.Config{Model: m, Horizon: m.ToTicks(60), InitialState: pop}
	a := arm.New(cfg, 0, m.Intervention("CONV"), inst, arm.Fresh(100, pop, inst.RNG().ForSubsystem(sim.SubsystemPopulation)))
	c := NewCollector(a)

	// WHEN the arm runs
	require.NoError(t, a.Run())
	s := c.Finalize()

	// THEN the summary agrees with the patients' final state
	assert.Equal(t, 100, s.Patients)
	dead := 0
	for _, p := range a.Patients {
		if p.IsDead() {
			dead++
		}
	}
	total := 0
	for _, n := range s.Deaths {
		total += n
	}
	assert.Equal(t, dead, total)
	assert.LessOrEqual(t, s.LifeYears, 100*m.ToYears(cfg.Horizon)+1e-9)
	assert.Greater(t, s.LifeYears, 0.0)
}
