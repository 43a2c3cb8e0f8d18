// Package patient implements the per-patient competing-risk state machine.
//
// A Patient owns its health state and every pending event. Each time the
// state changes, the risk model is queried again and superseded events are
// cancelled before newly enabled ones are scheduled, so the event queue
// always reflects the latest risk assessment.
//
// Invariants:
//   - a stage is acquired at most once;
//   - at most one pending event per stage, one pending death, one pending effect loss;
//   - a non-fatal complication only ever moves the death time earlier.
package patient

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
)

// pendingEvent is a scheduled patient event tracked by its kernel handle.
type pendingEvent struct {
	id      sim.EventID
	time    int64
	outcome Outcome
	cause   Cause
}

// acuteRecord is one past or pending episode of an acute complication.
type acuteRecord struct {
	pendingEvent
	fired bool
}

// Patient is one simulated individual under one intervention.
type Patient struct {
	ID           int
	Profile      *Profile
	Intervention *disease.Intervention
	// ClonedFrom is the patient this one was replayed from, or nil.
	ClonedFrom *Patient

	env *Environment

	// state and detailedState are indexed by Complication.Index and Stage.Rank.
	state         []bool
	detailedState []bool
	stageSince    []int64

	chronic    map[*disease.Stage]*pendingEvent
	acute      [][]*acuteRecord
	effectLoss *pendingEvent
	death      *pendingEvent

	started    bool
	effectLost bool
	dead       bool
	deathTime  int64
	cause      Cause
}

// New creates a patient bound to intervention.
func New(id int, profile *Profile, intervention *disease.Intervention, env *Environment) *Patient {
	m := env.Model
	p := &Patient{
		ID:            id,
		Profile:       profile,
		Intervention:  intervention,
		env:           env,
		state:         make([]bool, len(m.Complications)),
		detailedState: make([]bool, len(m.Stages)),
		stageSince:    make([]int64, len(m.Stages)),
		chronic:       make(map[*disease.Stage]*pendingEvent),
		acute:         make([][]*acuteRecord, len(m.Acute)),
		deathTime:     sim.Never,
	}
	for i := range p.stageSince {
		p.stageSince[i] = sim.Never
	}
	return p
}

// NewClone creates a patient that replays orig's profile under a different intervention.
func NewClone(orig *Patient, intervention *disease.Intervention, env *Environment) *Patient {
	p := New(orig.ID, orig.Profile, intervention, env)
	p.ClonedFrom = orig
	return p
}

// Schedule queues the patient's start event at the current simulation time.
func (p *Patient) Schedule() sim.EventID {
	k := p.env.Kernel
	return k.Schedule(&StartEvent{time: k.Now(), patient: p})
}

// === Accessors ===

// Now returns the current simulation time.
func (p *Patient) Now() int64 { return p.env.Kernel.Now() }

// Model returns the model context the patient was created with.
func (p *Patient) Model() *disease.Model { return p.env.Model }

// AgeAt returns the patient's age in years at timestamp ts.
func (p *Patient) AgeAt(ts int64) float64 {
	return p.Profile.Age + p.env.Model.ToYears(ts)
}

// Age returns the patient's current age in years.
func (p *Patient) Age() float64 { return p.AgeAt(p.Now()) }

// HasStage reports whether s is in the patient's detailed state.
func (p *Patient) HasStage(s *disease.Stage) bool { return p.detailedState[s.Rank] }

// HasComplication reports whether any stage of c is present.
func (p *Patient) HasComplication(c *disease.Complication) bool { return p.state[c.Index] }

// StageSince returns when s was acquired, or sim.Never.
func (p *Patient) StageSince(s *disease.Stage) int64 { return p.stageSince[s.Rank] }

// Stages returns the present stages in rank order.
func (p *Patient) Stages() []*disease.Stage {
	var out []*disease.Stage
	for _, s := range p.env.Model.Stages {
		if p.detailedState[s.Rank] {
			out = append(out, s)
		}
	}
	return out
}

// PendingStageTime returns the time of the pending event leading to s.
func (p *Patient) PendingStageTime(s *disease.Stage) (int64, bool) {
	ev, ok := p.chronic[s]
	if !ok {
		return 0, false
	}
	return ev.time, true
}

// PendingStages returns the number of pending chronic events.
func (p *Patient) PendingStages() int { return len(p.chronic) }

// DeathTime returns the scheduled death time while alive, the actual death
// time once dead, or sim.Never before the patient starts.
func (p *Patient) DeathTime() int64 {
	if p.death != nil {
		return p.death.time
	}
	return p.deathTime
}

// IsDead reports whether the death event has fired.
func (p *Patient) IsDead() bool { return p.dead }

// CauseOfDeath returns the cause attributed to the fired death event.
func (p *Patient) CauseOfDeath() Cause { return p.cause }

// EffectLost reports whether the intervention's effect has been lost.
func (p *Patient) EffectLost() bool { return p.effectLost }

// AcuteCount returns the number of episodes of a that already happened.
func (p *Patient) AcuteCount(a *disease.AcuteComplication) int {
	n := 0
	for _, r := range p.acute[a.Index] {
		if r.fired {
			n++
		}
	}
	return n
}

// NextAcuteTime returns the time of the pending episode of a, if any.
func (p *Patient) NextAcuteTime(a *disease.AcuteComplication) (int64, bool) {
	if r := p.latestAcute(a.Index); r != nil && !r.fired {
		return r.time, true
	}
	return 0, false
}

// EffectLossTime returns the time of the pending effect-lost event, if any.
func (p *Patient) EffectLossTime() (int64, bool) {
	if p.effectLoss == nil {
		return 0, false
	}
	return p.effectLoss.time, true
}

func (p *Patient) String() string {
	return fmt.Sprintf("patient %d (%s, %.1fy, %s)", p.ID, p.Intervention.Name, p.Profile.Age, p.Profile.Sex)
}

// === Transitions ===

// start applies the initial state and schedules every first event.
func (p *Patient) start() error {
	if p.started {
		return &ConsistencyError{PatientID: p.ID, Stage: "-", Reason: "patient started twice"}
	}
	p.started = true
	now := p.Now()

	p.scheduleDeath(p.env.Risk.TimeToDeath(p), Cause{})

	if p.env.InitialState != nil {
		for _, s := range p.env.InitialState.InitialStages(p) {
			if err := p.acquire(s, now); err != nil {
				return err
			}
			p.recomputeDeath(Cause{Stage: s})
		}
	}

	for _, c := range p.env.Model.Complications {
		prog := p.env.Risk.Progression(p, c)
		if len(prog.Cancel) > 0 {
			return &ConsistencyError{PatientID: p.ID, Stage: prog.Cancel[0].Name,
				Reason: "initial progression of " + c.Name + " requested a cancellation"}
		}
		for _, o := range prog.New {
			if err := p.scheduleChronic(o); err != nil {
				return err
			}
		}
	}

	for _, a := range p.env.Model.Acute {
		o := p.env.Risk.TimeToAcuteEvent(p, a, false)
		if o.Time < p.death.time {
			p.scheduleAcute(a, o)
		}
	}

	if p.Intervention.HasFiniteEffect() {
		ts := now + p.env.Model.ToTicks(p.Intervention.EffectYears)
		if ts < p.death.time {
			ev := &EffectLostEvent{time: ts, patient: p}
			p.effectLoss = &pendingEvent{id: p.env.Kernel.Schedule(ev), time: ts}
		}
	}

	p.notify(EventInfo{Kind: KindStart})
	logrus.Tracef("%s started: death@%d, %d chronic pending", p, p.death.time, len(p.chronic))
	return nil
}

// onChronic handles the firing of the pending event for outcome.Stage.
func (p *Patient) onChronic(o Outcome) error {
	s := o.Stage
	delete(p.chronic, s)
	if err := p.acquire(s, p.Now()); err != nil {
		return err
	}
	p.notify(EventInfo{Kind: KindChronic, Stage: s})

	if o.CausesDeath {
		p.dieNow(Cause{Stage: s})
		return nil
	}
	p.recomputeDeath(Cause{Stage: s})
	return p.updateProgression()
}

// onAcute handles an episode of an acute complication.
func (p *Patient) onAcute(r *acuteRecord) error {
	r.fired = true
	a := r.outcome.Acute
	p.notify(EventInfo{Kind: KindAcute, Acute: a})

	if r.outcome.CausesDeath {
		p.dieNow(Cause{Acute: a})
		return nil
	}
	next := p.env.Risk.TimeToAcuteEvent(p, a, false)
	if next.Time < p.death.time {
		p.scheduleAcute(a, next)
	}
	return nil
}

// onEffectLost reschedules pending risks without the intervention's protection.
func (p *Patient) onEffectLost() error {
	p.effectLoss = nil
	p.effectLost = true
	p.notify(EventInfo{Kind: KindEffectLost})

	k := p.env.Kernel
	for _, a := range p.env.Model.Acute {
		last := p.latestAcute(a.Index)
		if last == nil || last.fired || last.time <= p.Now() {
			continue
		}
		// The risk model reads the pending episode to rescale it, so ask before cancelling.
		next := p.env.Risk.TimeToAcuteEvent(p, a, true)
		k.Cancel(last.id)
		p.acute[a.Index] = p.acute[a.Index][:len(p.acute[a.Index])-1]
		if next.Time < p.death.time {
			p.scheduleAcute(a, next)
		}
	}
	return p.updateProgression()
}

// onDeath cancels everything still pending and finalizes the patient.
func (p *Patient) onDeath(cause Cause) error {
	if p.dead {
		return &ConsistencyError{PatientID: p.ID, Stage: cause.String(), Reason: "patient died twice"}
	}
	k := p.env.Kernel
	now := p.Now()

	for _, s := range p.env.Model.Stages {
		if ev, ok := p.chronic[s]; ok {
			k.Cancel(ev.id)
			delete(p.chronic, s)
		}
	}
	// Only the latest episodes can be pending: once one fired, every earlier one did too.
	for i, records := range p.acute {
		j := len(records) - 1
		for ; j >= 0; j-- {
			if records[j].fired || !k.Cancel(records[j].id) {
				break
			}
		}
		p.acute[i] = records[:j+1]
	}
	if p.effectLoss != nil {
		k.Cancel(p.effectLoss.id)
		p.effectLoss = nil
	}

	p.death = nil
	p.dead = true
	p.deathTime = now
	p.cause = cause
	p.notify(EventInfo{Kind: KindDeath, Cause: cause})
	logrus.Tracef("%s died at %d (%s)", p, now, cause)
	return nil
}

// === Internal helpers ===

func (p *Patient) acquire(s *disease.Stage, now int64) error {
	if p.detailedState[s.Rank] {
		return &ConsistencyError{PatientID: p.ID, Stage: s.Name, Reason: "stage assigned twice"}
	}
	p.detailedState[s.Rank] = true
	p.stageSince[s.Rank] = now
	p.state[s.Complication.Index] = true
	return nil
}

func (p *Patient) scheduleDeath(ts int64, cause Cause) {
	ev := &DeathEvent{time: ts, patient: p, cause: cause}
	p.death = &pendingEvent{id: p.env.Kernel.Schedule(ev), time: ts, cause: cause}
}

// recomputeDeath moves the death event earlier if the risk model says so.
// A later time is ignored.
func (p *Patient) recomputeDeath(cause Cause) {
	ts := p.env.Risk.TimeToDeath(p)
	if ts >= p.death.time {
		return
	}
	p.env.Kernel.Cancel(p.death.id)
	p.scheduleDeath(ts, cause)
}

// dieNow replaces the pending death with an immediate one.
func (p *Patient) dieNow(cause Cause) {
	p.env.Kernel.Cancel(p.death.id)
	p.scheduleDeath(p.Now(), cause)
}

// updateProgression re-queries every chronic complication, cancelling
// superseded transitions before scheduling newly enabled ones.
func (p *Patient) updateProgression() error {
	for _, c := range p.env.Model.Complications {
		prog := p.env.Risk.Progression(p, c)
		for _, s := range prog.Cancel {
			if err := p.cancelChronic(s); err != nil {
				return err
			}
		}
		for _, o := range prog.New {
			if err := p.scheduleChronic(o); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Patient) scheduleChronic(o Outcome) error {
	if o.Stage == nil {
		return &ConsistencyError{PatientID: p.ID, Stage: "-", Reason: "chronic outcome without a target stage"}
	}
	if _, dup := p.chronic[o.Stage]; dup {
		return &ConsistencyError{PatientID: p.ID, Stage: o.Stage.Name, Reason: "stage already has a pending event"}
	}
	if p.detailedState[o.Stage.Rank] {
		return &ConsistencyError{PatientID: p.ID, Stage: o.Stage.Name, Reason: "transition scheduled to a stage already present"}
	}
	ev := &ChronicEvent{time: o.Time, patient: p, outcome: o}
	p.chronic[o.Stage] = &pendingEvent{id: p.env.Kernel.Schedule(ev), time: o.Time, outcome: o}
	return nil
}

func (p *Patient) cancelChronic(s *disease.Stage) error {
	ev, ok := p.chronic[s]
	if !ok {
		return &ConsistencyError{PatientID: p.ID, Stage: s.Name, Reason: "cancellation of a stage with no pending event"}
	}
	p.env.Kernel.Cancel(ev.id)
	delete(p.chronic, s)
	return nil
}

func (p *Patient) scheduleAcute(a *disease.AcuteComplication, o Outcome) {
	o.Acute = a
	r := &acuteRecord{pendingEvent: pendingEvent{time: o.Time, outcome: o}}
	r.id = p.env.Kernel.Schedule(&AcuteEvent{time: o.Time, patient: p, record: r})
	p.acute[a.Index] = append(p.acute[a.Index], r)
}

func (p *Patient) latestAcute(idx int) *acuteRecord {
	records := p.acute[idx]
	if len(records) == 0 {
		return nil
	}
	return records[len(records)-1]
}

func (p *Patient) notify(info EventInfo) {
	if p.env.Observer == nil {
		return
	}
	info.Patient = p
	info.Time = p.Now()
	p.env.Observer.OnPatientEvent(info)
}
