package listener

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summary(arm string, lifeYears float64) ArmSummary {
	return ArmSummary{
		Intervention: arm,
		Patients:     10,
		Incidence:    map[string]int{"A1": 2},
		Deaths:       map[string]int{"background": 5},
		LifeYears:    lifeYears,
	}
}

func TestAggregate_BaseCaseKeptApart(t *testing.T) {
	agg := NewAggregate("run", []string{"STD", "NEW"}, []string{"A1", "A2"}, []string{"H"})
	agg.Add(0, summary("STD", 100))
	agg.Add(1, summary("STD", 200))

	s := agg.Finalize()

	require.Len(t, s.Arms, 2)
	assert.Equal(t, "STD", s.Arms[0].Intervention)
	require.NotNil(t, s.Arms[0].BaseCase)
	assert.Equal(t, 100.0, s.Arms[0].BaseCase.LifeYears)
	assert.Equal(t, 1, s.Arms[0].Outcomes[OutcomeLifeYears].Count)
	assert.Equal(t, 20.0, s.Arms[0].Outcomes[OutcomeLifeYears].Mean)
	assert.Nil(t, s.Arms[1].BaseCase)
	assert.Empty(t, s.Arms[1].Outcomes)
	assert.Equal(t, 1, s.Replications)
}

func TestAggregate_MissingCountsAreZero(t *testing.T) {
	agg := NewAggregate("run", []string{"STD"}, []string{"A1", "A2"}, []string{"H"})
	agg.Add(1, summary("STD", 100))

	out := agg.Finalize().Arms[0].Outcomes
	assert.Equal(t, 0.2, out["incidence.A1"].Mean)
	assert.Equal(t, 0.0, out["incidence.A2"].Mean)
	assert.Equal(t, 0.0, out["acute.H"].Mean)
	assert.Equal(t, 0.5, out["deaths.background"].Mean)
	assert.Equal(t, 0.0, out["deaths.A1"].Mean)
	assert.Equal(t, 1, out["deaths.A1"].Count)
}

func TestAggregate_ConcurrentAdd(t *testing.T) {
	// GIVEN many workers adding replications at once
	agg := NewAggregate("run", []string{"STD"}, nil, nil)
	var wg sync.WaitGroup
	for r := 1; r <= 200; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			agg.Add(r, summary("STD", float64(r*10)))
		}(r)
	}
	wg.Wait()

	// THEN nothing is lost and the result does not depend on arrival order
	s := agg.Finalize()
	d := s.Arms[0].Outcomes[OutcomeLifeYears]
	assert.Equal(t, 200, d.Count)
	assert.InDelta(t, 100.5, d.Mean, 1e-9)
	assert.Equal(t, 200, s.Replications)
}

func TestNewDistribution(t *testing.T) {
	d := NewDistribution([]float64{4, 1, 3, 2, 5})
	assert.Equal(t, 5, d.Count)
	assert.InDelta(t, 3, d.Mean, 1e-9)
	assert.InDelta(t, 1.5811, d.SD, 1e-4)
	assert.GreaterOrEqual(t, d.Lower, 1.0)
	assert.LessOrEqual(t, d.Upper, 5.0)
	assert.Less(t, d.Lower, d.Upper)

	assert.Equal(t, Distribution{}, NewDistribution(nil))
	single := NewDistribution([]float64{7})
	assert.Equal(t, 7.0, single.Mean)
	assert.Zero(t, single.SD)
}
