package patient

import "github.com/ull-isaatc/sighos-sub008/sim"

// Type priorities for events sharing a timestamp (lower runs first).
// Death runs before any other same-tick event of the patient so that an
// immediate death supersedes transitions scheduled for the same instant.
const (
	PriorityStart = iota
	PriorityDeath
	PriorityChronic
	PriorityAcute
	PriorityEffectLost
)

// StartEvent initializes the patient's state and schedules its first events.
type StartEvent struct {
	time    int64
	patient *Patient
}

func (e *StartEvent) Timestamp() int64 { return e.time }
func (e *StartEvent) Priority() int    { return PriorityStart }
func (e *StartEvent) Execute(*sim.Kernel) error {
	return e.patient.start()
}

// ChronicEvent moves the patient into a new stage of a chronic complication.
type ChronicEvent struct {
	time    int64
	patient *Patient
	outcome Outcome
}

func (e *ChronicEvent) Timestamp() int64 { return e.time }
func (e *ChronicEvent) Priority() int    { return PriorityChronic }
func (e *ChronicEvent) Execute(*sim.Kernel) error {
	return e.patient.onChronic(e.outcome)
}

// AcuteEvent is one episode of an acute complication.
type AcuteEvent struct {
	time    int64
	patient *Patient
	record  *acuteRecord
}

func (e *AcuteEvent) Timestamp() int64 { return e.time }
func (e *AcuteEvent) Priority() int    { return PriorityAcute }
func (e *AcuteEvent) Execute(*sim.Kernel) error {
	return e.patient.onAcute(e.record)
}

// EffectLostEvent marks the end of the intervention's protective effect.
type EffectLostEvent struct {
	time    int64
	patient *Patient
}

func (e *EffectLostEvent) Timestamp() int64 { return e.time }
func (e *EffectLostEvent) Priority() int    { return PriorityEffectLost }
func (e *EffectLostEvent) Execute(*sim.Kernel) error {
	return e.patient.onEffectLost()
}

// DeathEvent ends the patient's simulation.
type DeathEvent struct {
	time    int64
	patient *Patient
	cause   Cause
}

func (e *DeathEvent) Timestamp() int64 { return e.time }
func (e *DeathEvent) Priority() int    { return PriorityDeath }
func (e *DeathEvent) Execute(*sim.Kernel) error {
	return e.patient.onDeath(e.cause)
}
