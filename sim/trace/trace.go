package trace

import "github.com/ull-isaatc/sighos-sub008/sim/patient"

// TraceLevel controls the verbosity of patient tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures every patient event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// PatientTrace collects event records of one arm simulation.
type PatientTrace struct {
	Level        TraceLevel
	Replication  int
	Intervention string
	Events       []EventRecord
}

// NewPatientTrace creates a PatientTrace ready for recording.
func NewPatientTrace(level TraceLevel, replication int, intervention string) *PatientTrace {
	return &PatientTrace{
		Level:        level,
		Replication:  replication,
		Intervention: intervention,
		Events:       make([]EventRecord, 0),
	}
}

// Record appends an event record.
func (pt *PatientTrace) Record(record EventRecord) {
	if pt.Level != TraceLevelEvents {
		return
	}
	pt.Events = append(pt.Events, record)
}

// OnPatientEvent implements patient.Observer.
func (pt *PatientTrace) OnPatientEvent(ev patient.EventInfo) {
	rec := EventRecord{Patient: ev.Patient.ID, Clock: ev.Time, Kind: ev.Kind.String()}
	switch ev.Kind {
	case patient.KindChronic:
		rec.Target = ev.Stage.Name
	case patient.KindAcute:
		rec.Target = ev.Acute.Name
	case patient.KindDeath:
		rec.Cause = ev.Cause.String()
	}
	pt.Record(rec)
}
