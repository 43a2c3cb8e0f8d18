// Package experiment runs the base case and the probabilistic replications
// of a model, each replication simulating the full chain of intervention
// arms, and aggregates the results.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/arm"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/listener"
	"github.com/ull-isaatc/sighos-sub008/sim/metrics"
	"github.com/ull-isaatc/sighos-sub008/sim/population"
	"github.com/ull-isaatc/sighos-sub008/sim/risk"
	"github.com/ull-isaatc/sighos-sub008/sim/trace"
)

// ReplicationError reports the failure of one replication.
type ReplicationError struct {
	Replication int
	Err         error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replication %d: %v", e.Replication, e.Err)
}

func (e *ReplicationError) Unwrap() error { return e.Err }

// Experiment owns everything shared by replications: the model, the
// parameter repository and the aggregate results. Replication state is
// created per replication and never shared.
type Experiment struct {
	ID uuid.UUID

	cfg           Config
	model         *disease.Model
	repo          *risk.Repository
	interventions []*disease.Intervention
	arms          []string
	horizon       int64
	aggregate     *listener.Aggregate

	progress atomic.Int64

	mu       sync.Mutex
	failures []error
	traces   []*trace.PatientTrace

	// replicate runs one replication; replaced in tests.
	replicate func(r int) error
}

// New validates cfg against model and prepares an experiment.
func New(model *disease.Model, cfg Config) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment config: %w", err)
	}
	interventions, err := model.InterventionsByName(cfg.Interventions)
	if err != nil {
		return nil, err
	}
	if len(interventions) == 0 {
		return nil, errors.New("model has no interventions")
	}
	if !cfg.Parallel || cfg.Threads < 1 {
		cfg.Threads = 1
	}

	horizon := sim.Never
	if cfg.HorizonYears > 0 {
		horizon = model.ToTicks(cfg.HorizonYears)
	}

	arms := make([]string, len(interventions))
	for i, iv := range interventions {
		arms[i] = iv.Name
	}
	stages := make([]string, len(model.Stages))
	for i, s := range model.Stages {
		stages[i] = s.Name
	}
	acute := make([]string, len(model.Acute))
	for i, a := range model.Acute {
		acute[i] = a.Name
	}

	id := uuid.New()
	e := &Experiment{
		ID:            id,
		cfg:           cfg,
		model:         model,
		repo:          risk.NewRepository(model),
		interventions: interventions,
		arms:          arms,
		horizon:       horizon,
		aggregate:     listener.NewAggregate(id.String(), arms, stages, acute),
	}
	e.replicate = e.runReplication
	return e, nil
}

// Progress returns the number of replications finished so far, failed ones
// included. Safe to call while Run is in progress.
func (e *Experiment) Progress() int64 { return e.progress.Load() }

// Traces returns the recorded base case traces, one per arm.
func (e *Experiment) Traces() []*trace.PatientTrace {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*trace.PatientTrace(nil), e.traces...)
}

// Run simulates the base case and then replications 1..Runs, striped across
// Threads workers when parallel. A failed replication does not stop its
// siblings; every failure is returned joined, alongside the summary of the
// replications that succeeded. Cancelling ctx stops starting replications.
func (e *Experiment) Run(ctx context.Context) (listener.Summary, error) {
	logrus.Infof("experiment %s: %d patients, %d runs, %d thread(s), arms %v",
		e.ID, e.cfg.Patients, e.cfg.Runs, e.cfg.Threads, e.arms)

	var ctxErr error
	if err := ctx.Err(); err != nil {
		ctxErr = err
	} else {
		e.execute(0)
		var g errgroup.Group
		for t := 1; t <= e.cfg.Threads; t++ {
			ids := Stripe(t, e.cfg.Threads, e.cfg.Runs)
			g.Go(func() error {
				for _, r := range ids {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					e.execute(r)
				}
				return nil
			})
		}
		ctxErr = g.Wait()
	}

	summary := e.aggregate.Finalize()
	e.mu.Lock()
	errs := append([]error(nil), e.failures...)
	e.mu.Unlock()
	if ctxErr != nil {
		errs = append(errs, ctxErr)
	}
	if len(errs) > 0 {
		logrus.Errorf("experiment %s: %d replication failure(s)", e.ID, len(e.failures))
	}
	return summary, errors.Join(errs...)
}

// execute runs replication r, recording its failure and progress.
func (e *Experiment) execute(r int) {
	start := time.Now()
	metrics.ReplicationsInFlight.Inc()
	err := e.safeReplicate(r)
	metrics.ReplicationsInFlight.Dec()
	metrics.ReplicationDuration.Observe(time.Since(start).Seconds())

	done := e.progress.Add(1)
	if err != nil {
		metrics.ReplicationsTotal.WithLabelValues(metrics.StatusFailed).Inc()
		logrus.Errorf("replication %d failed: %v", r, err)
		e.mu.Lock()
		e.failures = append(e.failures, &ReplicationError{Replication: r, Err: err})
		e.mu.Unlock()
		return
	}
	metrics.ReplicationsTotal.WithLabelValues(metrics.StatusOK).Inc()
	logrus.Infof("replication %d done (%d/%d)", r, done, e.cfg.Runs+1)
}

// safeReplicate turns a panic inside a replication into its error, so one
// broken replication cannot take down the workers running the others.
func (e *Experiment) safeReplicate(r int) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return e.replicate(r)
}

// runReplication simulates every arm of replication r. The first arm draws a
// fresh cohort; each further arm replays the previous one. Results reach the
// aggregate only when the whole chain succeeds.
func (e *Experiment) runReplication(r int) error {
	inst := e.repo.ForReplication(e.cfg.Seed, r)
	pop, err := population.New(e.model, inst.CRN())
	if err != nil {
		return err
	}
	cfg := arm.Config{Model: e.model, Horizon: e.horizon, InitialState: pop}

	summaries := make([]listener.ArmSummary, 0, len(e.interventions))
	var traces []*trace.PatientTrace
	var a *arm.Simulation
	for i, iv := range e.interventions {
		if i == 0 {
			gen := arm.Fresh(e.cfg.Patients, pop, inst.RNG().ForSubsystem(sim.SubsystemPopulation))
			a = arm.New(cfg, r, iv, inst, gen)
		} else if a, err = a.Clone(iv); err != nil {
			return err
		}

		collector := listener.NewCollector(a)
		counter := metrics.NewEventCounter()
		a.AddListener(counter)
		if r == 0 && e.cfg.Trace == trace.TraceLevelEvents {
			pt := trace.NewPatientTrace(e.cfg.Trace, r, iv.Name)
			a.AddListener(pt)
			traces = append(traces, pt)
		}

		err := a.Run()
		counter.Flush()
		if err != nil {
			return err
		}
		summaries = append(summaries, collector.Finalize())
	}

	for _, s := range summaries {
		e.aggregate.Add(r, s)
	}
	if len(traces) > 0 {
		e.mu.Lock()
		e.traces = append(e.traces, traces...)
		e.mu.Unlock()
	}
	return nil
}

// Stripe returns the replication ids worker t (1-indexed) of threads
// processes: t, t+threads, t+2*threads, ... up to runs.
func Stripe(t, threads, runs int) []int {
	var ids []int
	for r := t; r <= runs; r += threads {
		ids = append(ids, r)
	}
	return ids
}
