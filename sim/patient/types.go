package patient

import (
	"errors"
	"fmt"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
)

// Sex of a patient.
type Sex int

const (
	Male Sex = iota
	Female
)

func (s Sex) String() string {
	if s == Female {
		return "female"
	}
	return "male"
}

// Profile is the immutable demographic description of a patient.
// Cloned patients share the profile of the patient they were cloned from.
type Profile struct {
	Age float64 // years at simulation start
	Sex Sex
}

// Outcome is a risk-model prediction: the target (a chronic stage or an
// acute complication), the absolute time it happens, and whether it kills.
type Outcome struct {
	Stage       *disease.Stage
	Acute       *disease.AcuteComplication
	Time        int64
	CausesDeath bool
}

// Happens reports whether the outcome has a finite time.
func (o Outcome) Happens() bool {
	return o.Time != sim.Never
}

func (o Outcome) String() string {
	target := "none"
	switch {
	case o.Stage != nil:
		target = o.Stage.Name
	case o.Acute != nil:
		target = o.Acute.Name
	}
	return fmt.Sprintf("%s@%d(death=%t)", target, o.Time, o.CausesDeath)
}

// Progression is the risk model's answer to "what changes for this
// complication now": stages whose pending events are superseded and must be
// cancelled, and newly enabled transitions to schedule.
type Progression struct {
	New    []Outcome
	Cancel []*disease.Stage
}

// Cause attributes a death to a stage, an acute complication, or (both nil)
// background mortality.
type Cause struct {
	Stage *disease.Stage
	Acute *disease.AcuteComplication
}

func (c Cause) String() string {
	switch {
	case c.Stage != nil:
		return c.Stage.Name
	case c.Acute != nil:
		return c.Acute.Name
	default:
		return "background"
	}
}

// RiskModel computes event times for a patient. All returned times are
// absolute simulation timestamps; sim.Never means the event does not happen.
type RiskModel interface {
	TimeToDeath(p *Patient) int64
	Progression(p *Patient, c *disease.Complication) Progression
	TimeToAcuteEvent(p *Patient, a *disease.AcuteComplication, effectLost bool) Outcome
}

// InitialStateModel returns the stages a patient has at simulation start.
type InitialStateModel interface {
	InitialStages(p *Patient) []*disease.Stage
}

// EventKind identifies what happened to a patient.
type EventKind int

const (
	KindStart EventKind = iota
	KindChronic
	KindAcute
	KindEffectLost
	KindDeath
)

var eventKindNames = map[EventKind]string{
	KindStart:      "start",
	KindChronic:    "chronic",
	KindAcute:      "acute",
	KindEffectLost: "effect_lost",
	KindDeath:      "death",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// EventInfo is what observers receive for every patient event.
type EventInfo struct {
	Patient *Patient
	Kind    EventKind
	Time    int64
	Stage   *disease.Stage             // KindChronic
	Acute   *disease.AcuteComplication // KindAcute
	Cause   Cause                      // KindDeath
}

// Observer receives patient events. Implementations are called from the
// arm's single simulation goroutine.
type Observer interface {
	OnPatientEvent(ev EventInfo)
}

// Environment bundles the collaborators a patient needs.
// InitialState and Observer may be nil.
type Environment struct {
	Kernel       *sim.Kernel
	Model        *disease.Model
	Risk         RiskModel
	InitialState InitialStateModel
	Observer     Observer
}

// ErrConsistency marks violations of the patient state invariants. They
// indicate a broken risk model or model data and abort the replication.
var ErrConsistency = errors.New("patient state consistency violation")

// ConsistencyError identifies the patient and stage involved in a violation.
type ConsistencyError struct {
	PatientID int
	Stage     string
	Reason    string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("patient %d: stage %s: %s", e.PatientID, e.Stage, e.Reason)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }
