package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/internal/testutil"
	"github.com/ull-isaatc/sighos-sub008/sim/patient"
)

func loadModel(t *testing.T) *disease.Model {
	return testutil.LoadModel(t)
}

// trajectory is what one patient went through.
type trajectory struct {
	death  int64
	cause  string
	stages []string
	acute  int
}

// runCohort simulates n patients of age 30 under intervention with inst.
func runCohort(t *testing.T, m *disease.Model, inst *Instance, intervention string, n int) []trajectory {
	t.Helper()
	k := sim.NewKernel(m.ToTicks(100))
	env := &patient.Environment{Kernel: k, Model: m, Risk: inst}
	patients := make([]*patient.Patient, n)
	for i := range patients {
		patients[i] = patient.New(i, &patient.Profile{Age: 30}, m.Intervention(intervention), env)
		patients[i].Schedule()
	}
	require.NoError(t, k.Run())

	out := make([]trajectory, n)
	for i, p := range patients {
		tr := trajectory{death: p.DeathTime(), cause: p.CauseOfDeath().String(), acute: p.AcuteCount(m.Acute[0])}
		for _, s := range p.Stages() {
			tr.stages = append(tr.stages, s.Name)
		}
		out[i] = tr
	}
	return out
}

func TestRepository_BaseCase_UsesPointEstimates(t *testing.T) {
	m := loadModel(t)
	inst := NewRepository(m).BaseCase(sim.NewSimulationKey(42))

	for _, p := range m.Params {
		assert.Equal(t, p.Value, inst.Value(p), p.Name)
	}
	assert.Equal(t, 0, inst.Replication)
}

func TestRepository_Draw_SamplesUncertainParametersDeterministically(t *testing.T) {
	m := loadModel(t)
	repo := NewRepository(m)

	a := repo.ForReplication(42, 3)
	b := repo.ForReplication(42, 3)
	c := repo.ForReplication(42, 4)

	uncertain := m.Transition("NONE_NEU").Probability
	fixed := m.Transition("NEU_LEA").Probability
	assert.Equal(t, a.Value(uncertain), b.Value(uncertain), "same replication must draw the same values")
	assert.NotEqual(t, a.Value(uncertain), c.Value(uncertain))
	assert.NotEqual(t, uncertain.Value, a.Value(uncertain))
	assert.Equal(t, fixed.Value, a.Value(fixed))
	assert.Equal(t, 3, a.Replication)
}

func TestForReplication_ZeroIsBaseCase(t *testing.T) {
	m := loadModel(t)
	inst := NewRepository(m).ForReplication(42, 0)
	assert.Equal(t, m.Transition("NONE_NEU").Probability.Value, inst.Value(m.Transition("NONE_NEU").Probability))
	assert.Equal(t, sim.SimulationKey(42), inst.Key())
}

func TestInstance_CohortRunsWithoutConsistencyErrors(t *testing.T) {
	m := loadModel(t)
	inst := NewRepository(m).ForReplication(1, 2)

	trajectories := runCohort(t, m, inst, "INTENSIVE", 300)

	withStages := 0
	for _, tr := range trajectories {
		if len(tr.stages) > 0 {
			withStages++
		}
	}
	assert.Greater(t, withStages, 0, "some patients must develop complications")
}

func TestInstance_ResetThenReplay_ReproducesTrajectories(t *testing.T) {
	// GIVEN an arm simulated once
	m := loadModel(t)
	inst := NewRepository(m).ForReplication(7, 1)
	first := runCohort(t, m, inst, "CONV", 150)
	keys := inst.CRN().Keys()

	// WHEN the instance is reset and the same cohort replayed
	inst.Reset()
	second := runCohort(t, m, inst, "CONV", 150)

	// THEN every trajectory is identical and no new random keys were needed
	assert.Equal(t, first, second)
	assert.Equal(t, keys, inst.CRN().Keys())
}

func TestInstance_EffectLost_RescalesPendingAcuteEpisodes(t *testing.T) {
	// GIVEN an INTENSIVE cohort (SHE relative risk 0.5) run up to the tick
	// before its 5-year effect ends
	m := loadModel(t)
	inst := NewRepository(m).BaseCase(sim.NewSimulationKey(3))
	she := m.Acute[0]
	loss := m.ToTicks(m.Intervention("INTENSIVE").EffectYears)
	k := sim.NewKernel(loss - 1)
	env := &patient.Environment{Kernel: k, Model: m, Risk: inst}
	patients := make([]*patient.Patient, 300)
	for i := range patients {
		patients[i] = patient.New(i, &patient.Profile{Age: 30}, m.Intervention("INTENSIVE"), env)
		patients[i].Schedule()
	}
	require.NoError(t, k.Run())

	before := make(map[int]int64)
	for _, p := range patients {
		if ts, ok := p.NextAcuteTime(she); ok && !p.IsDead() && ts > loss {
			before[p.ID] = ts
		}
	}
	require.NotEmpty(t, before)

	// WHEN the effect is lost
	k.Horizon = loss
	require.NoError(t, k.Run())

	// THEN every surviving pending episode spends the remaining hazard at
	// twice the rate, so the wait from the loss is halved
	rescaled := 0
	for id, ts := range before {
		p := patients[id]
		if p.IsDead() || !p.EffectLost() {
			continue
		}
		after, ok := p.NextAcuteTime(she)
		if !ok {
			continue // fell after death and was dropped
		}
		assert.InDelta(t, float64(loss)+float64(ts-loss)*0.5, float64(after), 1, "patient %d", id)
		assert.Less(t, after, ts, "patient %d", id)
		rescaled++
	}
	assert.Greater(t, rescaled, 0)
}

func TestInstance_TimeToDeath_IncreasedMortalityIsEarlier(t *testing.T) {
	// GIVEN two patients with the same ordinal, hence the same random number
	m := loadModel(t)
	inst := NewRepository(m).BaseCase(sim.NewSimulationKey(11))
	healthyEnv := &patient.Environment{Kernel: sim.NewKernel(0), Model: m, Risk: inst}
	sickEnv := &patient.Environment{Kernel: sim.NewKernel(0), Model: m, Risk: inst,
		InitialState: fixedStages{m.Stage("LEA")}}

	healthy := patient.New(0, &patient.Profile{Age: 50}, m.Intervention("CONV"), healthyEnv)
	base := inst.TimeToDeath(healthy)
	require.NotEqual(t, sim.Never, base)
	assert.Greater(t, base, int64(0))

	// WHEN one of them starts with LEA (IMR 3)
	inst.Reset()
	sick := patient.New(0, &patient.Profile{Age: 50}, m.Intervention("CONV"), sickEnv)
	sick.Schedule()
	require.NoError(t, sickEnv.Kernel.Run())

	// THEN death comes earlier
	assert.Less(t, inst.TimeToDeath(sick), base)
}

func TestInstance_Progression_FreshPatientSchedulesEntryTransitions(t *testing.T) {
	m := loadModel(t)
	inst := NewRepository(m).BaseCase(sim.NewSimulationKey(5))
	k := sim.NewKernel(0)
	env := &patient.Environment{Kernel: k, Model: m, Risk: inst}

	// Run only the start event so the death time is known.
	p := patient.New(0, &patient.Profile{Age: 30}, m.Intervention("CONV"), env)
	p.Schedule()
	require.NoError(t, k.Run())

	for _, s := range []string{"NEU", "LEA", "BGRET", "PRET"} {
		ts, pending := p.PendingStageTime(m.Stage(s))
		if pending {
			assert.Less(t, ts, p.DeathTime(), "stage %s scheduled after death", s)
		}
	}
	_, pretPending := p.PendingStageTime(m.Stage("PRET"))
	assert.False(t, pretPending, "PRET is only reachable from BGRET")

	// Recomputing without any change must neither cancel nor add anything.
	for _, c := range m.Complications {
		prog := inst.Progression(p, c)
		assert.Empty(t, prog.Cancel, c.Name)
		assert.Empty(t, prog.New, c.Name)
	}
}

func TestRescale_KeepsRemainingHazard(t *testing.T) {
	// Effect lost at 10, episode pending at 15 under RR 0.5: doubling the
	// rate halves the remaining 5 ticks.
	assert.Equal(t, int64(12), rescale(10, 15, 0.5, 1))
	assert.Equal(t, int64(15), rescale(10, 15, 1, 1))
	assert.Equal(t, sim.Never, rescale(10, 15, 1, 0))
}

func TestRateFromProbability(t *testing.T) {
	assert.Equal(t, 0.0, rateFromProbability(0))
	testutil.AssertFloat64Equal(t, "rate", 0.1053605, rateFromProbability(0.1), 1e-6)
}

type fixedStages []*disease.Stage

func (f fixedStages) InitialStages(*patient.Patient) []*disease.Stage { return f }
