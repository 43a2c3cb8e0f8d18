// Package arm runs one intervention arm of one replication: a cohort of
// patients simulated on its own event kernel.
//
// The first arm of a replication samples a fresh cohort. Every further arm
// is a Clone of the previous one: same profiles by ordinal, same risk
// instance and common random numbers, different intervention.
package arm

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/patient"
)

// RepositoryInstance is the per-replication risk model shared by all arms.
// Reset clears per-arm memos and keeps the common random numbers.
type RepositoryInstance interface {
	patient.RiskModel
	Reset()
}

// ErrAlreadyRun is returned when Run is called a second time.
var ErrAlreadyRun = errors.New("arm simulation already run")

// ErrNotRun is returned by Clone when the source arm has no cohort yet.
var ErrNotRun = errors.New("arm simulation not run")

// Config holds what every arm of a replication shares.
type Config struct {
	Model        *disease.Model
	Horizon      int64 // ticks; sim.Never for a lifetime horizon
	InitialState patient.InitialStateModel
}

// Simulation is one intervention arm.
//
// Thread-safety: NOT thread-safe. An arm and its patients belong to the
// goroutine that runs its replication.
type Simulation struct {
	ID           int // position in the intervention chain
	Replication  int
	Intervention *disease.Intervention
	Instance     RepositoryInstance
	Patients     []*patient.Patient
	Cloned       bool
	Kernel       *sim.Kernel

	cfg       Config
	generator *Generator
	observers fanOut
	ran       bool
}

// New creates the first arm of a replication with a fresh cohort.
func New(cfg Config, replication int, intervention *disease.Intervention, inst RepositoryInstance, gen *Generator) *Simulation {
	return &Simulation{
		Replication:  replication,
		Intervention: intervention,
		Instance:     inst,
		Cloned:       gen.IsReplay(),
		Kernel:       sim.NewKernel(cfg.Horizon),
		cfg:          cfg,
		generator:    gen,
	}
}

// Clone returns the next arm: the same cohort replayed under intervention.
// It fails with ErrNotRun until the receiver has run.
func (s *Simulation) Clone(intervention *disease.Intervention) (*Simulation, error) {
	if !s.ran {
		return nil, fmt.Errorf("clone arm %d of replication %d: %w", s.ID, s.Replication, ErrNotRun)
	}
	next := New(s.cfg, s.Replication, intervention, s.Instance, Replay(s))
	next.ID = s.ID + 1
	return next, nil
}

// AddListener registers an observer for every patient event of the arm.
func (s *Simulation) AddListener(o patient.Observer) {
	s.observers = append(s.observers, o)
}

// Model returns the model the arm simulates.
func (s *Simulation) Model() *disease.Model { return s.cfg.Model }

// Run generates the cohort, schedules every patient's start event at time
// zero and drains the kernel. A consistency violation aborts the arm.
func (s *Simulation) Run() error {
	if s.ran {
		return ErrAlreadyRun
	}
	s.ran = true

	env := &patient.Environment{
		Kernel:       s.Kernel,
		Model:        s.cfg.Model,
		Risk:         s.Instance,
		InitialState: s.cfg.InitialState,
	}
	if len(s.observers) > 0 {
		env.Observer = s.observers
	}
	s.Patients = s.generator.generate(s.Intervention, s.Instance, env)
	for _, p := range s.Patients {
		p.Schedule()
	}

	logrus.Debugf("replication %d arm %d (%s): %d patients, cloned=%v",
		s.Replication, s.ID, s.Intervention.Name, len(s.Patients), s.Cloned)
	if err := s.Kernel.Run(); err != nil {
		return fmt.Errorf("replication %d arm %s: %w", s.Replication, s.Intervention.Name, err)
	}
	logrus.Debugf("replication %d arm %d done: %d events, clock %d",
		s.Replication, s.ID, s.Kernel.Executed(), s.Kernel.Now())
	return nil
}

// fanOut forwards patient events to several observers in registration order.
type fanOut []patient.Observer

func (f fanOut) OnPatientEvent(ev patient.EventInfo) {
	for _, o := range f {
		o.OnPatientEvent(ev)
	}
}
