package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ull-isaatc/sighos-sub008/sim/listener"
	"github.com/ull-isaatc/sighos-sub008/sim/trace"
)

// PrintSummary writes a readable report of summary to w.
func PrintSummary(w io.Writer, summary listener.Summary) {
	fmt.Fprintln(w, "=== Experiment Results ===")
	fmt.Fprintf(w, "Run ID               : %s\n", summary.RunID)
	fmt.Fprintf(w, "Replications         : %d\n", summary.Replications)
	for _, arm := range summary.Arms {
		fmt.Fprintf(w, "\n--- %s ---\n", arm.Intervention)
		if base := arm.BaseCase; base != nil {
			fmt.Fprintf(w, "Base case life-years : %.4f per patient (%d patients)\n", base.MeanLifeYears(), base.Patients)
		}
		for _, name := range arm.OutcomeNames() {
			fmt.Fprintf(w, "%-28s : %s\n", name, arm.Outcomes[name])
		}
	}
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// traceReport is the JSON form of the recorded traces.
type traceReport struct {
	Intervention string              `json:"intervention"`
	Summary      *trace.TraceSummary `json:"summary"`
	Events       []trace.EventRecord `json:"events"`
}

func traceReports(traces []*trace.PatientTrace) []traceReport {
	out := make([]traceReport, 0, len(traces))
	for _, pt := range traces {
		out = append(out, traceReport{Intervention: pt.Intervention, Summary: trace.Summarize(pt), Events: pt.Events})
	}
	return out
}
