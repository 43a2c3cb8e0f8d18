package trace

// TraceSummary aggregates statistics from a PatientTrace.
type TraceSummary struct {
	TotalEvents    int
	UniquePatients int
	KindCounts     map[string]int // event kind → count
	TargetCounts   map[string]int // stage or acute complication → count
	CauseCounts    map[string]int // death cause → count
	LastClock      int64
}

// Summarize computes aggregate statistics from a PatientTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(pt *PatientTrace) *TraceSummary {
	summary := &TraceSummary{
		KindCounts:   make(map[string]int),
		TargetCounts: make(map[string]int),
		CauseCounts:  make(map[string]int),
	}
	if pt == nil {
		return summary
	}

	patients := make(map[int]struct{})
	summary.TotalEvents = len(pt.Events)
	for _, e := range pt.Events {
		patients[e.Patient] = struct{}{}
		summary.KindCounts[e.Kind]++
		if e.Target != "" {
			summary.TargetCounts[e.Target]++
		}
		if e.Cause != "" {
			summary.CauseCounts[e.Cause]++
		}
		if e.Clock > summary.LastClock {
			summary.LastClock = e.Clock
		}
	}
	summary.UniquePatients = len(patients)

	return summary
}
