package population

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/internal/testutil"
	"github.com/ull-isaatc/sighos-sub008/sim/patient"
)

func setup(t *testing.T, seed int64) (*disease.Model, *Population, *patient.Environment) {
	t.Helper()
	m := testutil.LoadModel(t)
	crn := sim.NewCommonRandomNumbers(sim.NewPartitionedRNG(sim.NewSimulationKey(seed)).ForSubsystem(sim.SubsystemCRN))
	pop, err := New(m, crn)
	require.NoError(t, err)
	env := &patient.Environment{Kernel: sim.NewKernel(sim.Never), Model: m}
	return m, pop, env
}

func TestSampleProfile_RespectsAgeBoundsAndSexMix(t *testing.T) {
	_, pop, _ := setup(t, 42)
	rng := rand.New(rand.NewPCG(1, 0))

	males := 0
	const n = 2000
	for i := 0; i < n; i++ {
		prof := pop.SampleProfile(rng)
		require.GreaterOrEqual(t, prof.Age, 18.0)
		require.LessOrEqual(t, prof.Age, 70.0)
		if prof.Sex == patient.Male {
			males++
		}
	}
	assert.InDelta(t, 0.5, float64(males)/n, 0.05)
}

func TestInitialStages_ReplayedForClones(t *testing.T) {
	// GIVEN two patients with the same ordinal in different arms
	m, pop, env := setup(t, 42)
	for id := 0; id < 50; id++ {
		orig := patient.New(id, &patient.Profile{Age: 30}, m.Intervention("CONV"), env)
		clone := patient.NewClone(orig, m.Intervention("INTENSIVE"), env)

		// THEN both draw identical initial stages
		assert.Equal(t, pop.InitialStages(orig), pop.InitialStages(clone), "patient %d", id)
	}
}

func TestInitialStages_PrevalenceApproximatelyMatches(t *testing.T) {
	m, pop, env := setup(t, 7)
	neu, bgret := 0, 0
	const n = 3000
	for id := 0; id < n; id++ {
		p := patient.New(id, &patient.Profile{Age: 30}, m.Intervention("CONV"), env)
		for _, s := range pop.InitialStages(p) {
			switch s.Name {
			case "NEU":
				neu++
			case "BGRET":
				bgret++
			case "LEA", "PRET":
				t.Fatalf("stage %s has no prevalence", s.Name)
			}
		}
	}
	assert.InDelta(t, 0.1, float64(neu)/n, 0.02)
	assert.InDelta(t, 0.2, float64(bgret)/n, 0.025)
}

func TestInitialStages_RankOrder(t *testing.T) {
	m, pop, env := setup(t, 3)
	for id := 0; id < 200; id++ {
		p := patient.New(id, &patient.Profile{Age: 30}, m.Intervention("CONV"), env)
		stages := pop.InitialStages(p)
		for i := 1; i < len(stages); i++ {
			assert.Less(t, stages[i-1].Rank, stages[i].Rank)
		}
	}
}
