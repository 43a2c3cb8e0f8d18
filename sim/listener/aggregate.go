package listener

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Outcome names used as keys of flattened arm summaries.
const (
	OutcomeLifeYears = "life_years"
	prefixIncidence  = "incidence."
	prefixAcute      = "acute."
	prefixDeaths     = "deaths."
	prefixTimeTo     = "time_to."
)

// CauseBackground is the death cause of patients who died of background mortality.
const CauseBackground = "background"

// Values flattens the summary into per-patient outcome values keyed by name.
// Missing counts are reported as zero so every replication has every count
// key; time to incidence is only present when some patient had the complication.
func (s ArmSummary) Values(stages, acute []string) map[string]float64 {
	n := float64(s.Patients)
	if n == 0 {
		n = 1
	}
	out := map[string]float64{OutcomeLifeYears: s.MeanLifeYears()}
	for _, name := range stages {
		out[prefixIncidence+name] = float64(s.Incidence[name]) / n
	}
	for _, name := range acute {
		out[prefixAcute+name] = float64(s.Acute[name]) / n
	}
	out[prefixDeaths+CauseBackground] = float64(s.Deaths[CauseBackground]) / n
	for _, cause := range append(append([]string(nil), stages...), acute...) {
		out[prefixDeaths+cause] = float64(s.Deaths[cause]) / n
	}
	for name, years := range s.TimeToIncidence {
		out[prefixTimeTo+name] = years
	}
	return out
}

// Distribution summarizes one outcome over probabilistic replications.
type Distribution struct {
	Mean  float64
	SD    float64
	Lower float64 // 2.5th percentile
	Upper float64 // 97.5th percentile
	Count int
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	d := Distribution{Count: len(sorted), Mean: stat.Mean(sorted, nil)}
	if len(sorted) > 1 {
		d.SD = stat.StdDev(sorted, nil)
	}
	d.Lower = stat.Quantile(0.025, stat.LinInterp, sorted, nil)
	d.Upper = stat.Quantile(0.975, stat.LinInterp, sorted, nil)
	return d
}

func (d Distribution) String() string {
	return fmt.Sprintf("%.4f (sd %.4f, 95%% %.4f-%.4f, n=%d)", d.Mean, d.SD, d.Lower, d.Upper, d.Count)
}

// ArmResult is the experiment-level result of one arm.
type ArmResult struct {
	Intervention string
	BaseCase     *ArmSummary
	Outcomes     map[string]Distribution
}

// Summary is the experiment-level result, arms in intervention order.
type Summary struct {
	RunID        string
	Replications int
	Arms         []ArmResult
}

// Aggregate merges arm summaries from every replication. It is safe for
// concurrent use by replication workers.
type Aggregate struct {
	runID  string
	arms   []string
	stages []string
	acute  []string

	mu           sync.Mutex
	base         map[string]ArmSummary
	values       map[string]map[string][]float64 // arm -> outcome -> per replication
	replications map[int]struct{}
}

// NewAggregate creates an aggregate for the given arm names, reporting
// incidence for stages and episode counts for acute complications.
func NewAggregate(runID string, arms, stages, acute []string) *Aggregate {
	return &Aggregate{
		runID:        runID,
		arms:         arms,
		stages:       stages,
		acute:        acute,
		base:         make(map[string]ArmSummary),
		values:       make(map[string]map[string][]float64),
		replications: make(map[int]struct{}),
	}
}

// Add records the summary of one arm. Replication 0 is the base case.
func (a *Aggregate) Add(replication int, s ArmSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if replication == 0 {
		a.base[s.Intervention] = s
		return
	}
	a.replications[replication] = struct{}{}
	byOutcome, ok := a.values[s.Intervention]
	if !ok {
		byOutcome = make(map[string][]float64)
		a.values[s.Intervention] = byOutcome
	}
	for name, v := range s.Values(a.stages, a.acute) {
		byOutcome[name] = append(byOutcome[name], v)
	}
}

// Finalize computes the per-arm distributions. Replications arrive in any
// order, but the statistics do not depend on it.
func (a *Aggregate) Finalize() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := Summary{RunID: a.runID, Replications: len(a.replications)}
	for _, name := range a.arms {
		res := ArmResult{Intervention: name, Outcomes: make(map[string]Distribution)}
		if base, ok := a.base[name]; ok {
			res.BaseCase = &base
		}
		for outcome, values := range a.values[name] {
			res.Outcomes[outcome] = NewDistribution(values)
		}
		summary.Arms = append(summary.Arms, res)
	}
	return summary
}

// OutcomeNames returns the outcome keys of r in sorted order.
func (r ArmResult) OutcomeNames() []string {
	names := make([]string, 0, len(r.Outcomes))
	for name := range r.Outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
