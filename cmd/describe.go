package cmd

import (
	"fmt"
	"io"

	"github.com/ull-isaatc/sighos-sub008/sim/disease"
)

// describeModel prints what the validate subcommand found in a model.
func describeModel(w io.Writer, m *disease.Model) {
	fmt.Fprintf(w, "Model %q is valid (%g ticks per year)\n", m.Name, m.TicksPerYear)
	for _, c := range m.Complications {
		fmt.Fprintf(w, "  complication %s: %d stage(s), %d transition(s)\n", c.Name, len(c.Stages), len(c.Transitions))
		for _, tr := range c.Transitions {
			fmt.Fprintf(w, "    %s: p=%g\n", tr.Name, tr.Probability.Value)
		}
	}
	for _, a := range m.Acute {
		fmt.Fprintf(w, "  acute %s: p=%g, death=%g\n", a.Name, a.Probability.Value, a.DeathProbability.Value)
	}
	for _, iv := range m.Interventions {
		effect := "lifetime"
		if iv.HasFiniteEffect() {
			effect = fmt.Sprintf("%g years", iv.EffectYears)
		}
		fmt.Fprintf(w, "  intervention %s: effect %s, %d relative risk(s)\n", iv.Name, effect, len(iv.RelativeRisks))
	}
	uncertain := 0
	for _, p := range m.Params {
		if p.IsUncertain() {
			uncertain++
		}
	}
	fmt.Fprintf(w, "  %d parameter(s), %d with second-order uncertainty\n", len(m.Params), uncertain)
}
