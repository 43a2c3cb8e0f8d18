package experiment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/internal/testutil"
	"github.com/ull-isaatc/sighos-sub008/sim/trace"
)

func loadModel(t *testing.T) *disease.Model {
	return testutil.LoadModel(t)
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Patients = 30
	cfg.Runs = 6
	cfg.HorizonYears = 40
	return cfg
}

func TestStripe_PartitionsReplications(t *testing.T) {
	assert.Equal(t, []int{1, 4, 7, 10}, Stripe(1, 3, 10))
	assert.Equal(t, []int{2, 5, 8}, Stripe(2, 3, 10))
	assert.Equal(t, []int{3, 6, 9}, Stripe(3, 3, 10))
	assert.Empty(t, Stripe(4, 4, 3))

	for _, tc := range []struct{ threads, runs int }{{1, 5}, {3, 10}, {4, 3}, {8, 100}, {5, 0}} {
		seen := make(map[int]int)
		for w := 1; w <= tc.threads; w++ {
			for _, r := range Stripe(w, tc.threads, tc.runs) {
				seen[r]++
			}
		}
		assert.Len(t, seen, tc.runs, "threads=%d runs=%d", tc.threads, tc.runs)
		for r := 1; r <= tc.runs; r++ {
			assert.Equal(t, 1, seen[r], "replication %d", r)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := Config{Patients: 0, Runs: -1, Parallel: true, Threads: 0, HorizonYears: -1, Trace: "verbose"}
	err := bad.Validate()
	require.Error(t, err)
	for _, fragment := range []string{"patients", "runs", "threads", "horizon_years", "trace"} {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestNew_UnknownIntervention(t *testing.T) {
	cfg := smallConfig()
	cfg.Interventions = []string{"CONV", "MISSING"}
	_, err := New(loadModel(t), cfg)
	assert.ErrorContains(t, err, "MISSING")
}

func TestRun_BaseCaseAndReplications(t *testing.T) {
	// GIVEN a small experiment over both interventions
	e, err := New(loadModel(t), smallConfig())
	require.NoError(t, err)

	// WHEN it runs sequentially
	summary, err := e.Run(context.Background())

	// THEN every replication finished and each arm has a base case
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.Progress())
	assert.Equal(t, 6, summary.Replications)
	assert.Equal(t, e.ID.String(), summary.RunID)
	require.Len(t, summary.Arms, 2)
	assert.Equal(t, "CONV", summary.Arms[0].Intervention)
	assert.Equal(t, "INTENSIVE", summary.Arms[1].Intervention)
	for _, a := range summary.Arms {
		require.NotNil(t, a.BaseCase)
		assert.Equal(t, 30, a.BaseCase.Patients)
		assert.Equal(t, 6, a.Outcomes["life_years"].Count)
	}
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	// GIVEN the same experiment run sequentially and on three workers
	m := loadModel(t)
	seqCfg := smallConfig()
	parCfg := smallConfig()
	parCfg.Parallel = true
	parCfg.Threads = 3

	seq, err := New(m, seqCfg)
	require.NoError(t, err)
	par, err := New(m, parCfg)
	require.NoError(t, err)

	// WHEN both run
	seqSummary, err := seq.Run(context.Background())
	require.NoError(t, err)
	parSummary, err := par.Run(context.Background())
	require.NoError(t, err)

	// THEN the results are identical: replications are independent of the worker that ran them
	assert.Equal(t, seqSummary.Arms, parSummary.Arms)
}

func TestRun_FailedReplicationIsIsolated(t *testing.T) {
	// GIVEN an experiment where replication 4 fails and replication 5 panics
	cfg := smallConfig()
	cfg.Parallel = true
	cfg.Threads = 3
	e, err := New(loadModel(t), cfg)
	require.NoError(t, err)

	boom := errors.New("boom")
	var mu sync.Mutex
	var ran []int
	e.replicate = func(r int) error {
		mu.Lock()
		ran = append(ran, r)
		mu.Unlock()
		switch r {
		case 4:
			return boom
		case 5:
			panic("broken model")
		}
		return e.runReplication(r)
	}

	// WHEN it runs
	summary, err := e.Run(context.Background())

	// THEN both failures are reported and every other replication completed
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var repErr *ReplicationError
	require.True(t, errors.As(err, &repErr))
	assert.Contains(t, err.Error(), "replication 5: panic: broken model")

	sort.Ints(ran)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, ran)
	assert.Equal(t, int64(7), e.Progress())
	assert.Equal(t, 4, summary.Replications)
}

func TestRun_CancelledContextStartsNothing(t *testing.T) {
	e, err := New(loadModel(t), smallConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), e.Progress())
}

func TestRun_TracesBaseCaseArms(t *testing.T) {
	cfg := smallConfig()
	cfg.Runs = 1
	cfg.Trace = trace.TraceLevelEvents
	e, err := New(loadModel(t), cfg)
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	require.NoError(t, err)

	traces := e.Traces()
	require.Len(t, traces, 2)
	for _, pt := range traces {
		assert.Equal(t, 0, pt.Replication)
		assert.Equal(t, 30, trace.Summarize(pt).KindCounts["start"])
	}
}
