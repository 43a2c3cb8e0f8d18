package disease

import (
	"fmt"
	"math"
	"sort"
)

// DefaultTicksPerYear is used when the model file does not set ticks_per_year.
const DefaultTicksPerYear = 365

// Build resolves names, assigns stage ranks and parameter IDs, and validates
// the resulting model.
func Build(spec *ModelSpec) (*Model, error) {
	m := &Model{
		Name:          spec.Name,
		TicksPerYear:  spec.TicksPerYear,
		Population:    spec.Population,
		stages:        make(map[string]*Stage),
		transitions:   make(map[string]*Transition),
		acute:         make(map[string]*AcuteComplication),
		interventions: make(map[string]*Intervention),
	}
	if m.TicksPerYear == 0 {
		m.TicksPerYear = DefaultTicksPerYear
	}
	if m.TicksPerYear < 0 || math.IsNaN(m.TicksPerYear) || math.IsInf(m.TicksPerYear, 0) {
		return nil, fmt.Errorf("ticks_per_year must be a positive finite number, got %f", m.TicksPerYear)
	}

	if spec.Mortality.Alpha == nil || spec.Mortality.Beta == nil {
		return nil, fmt.Errorf("mortality: gompertz_alpha and gompertz_beta are required")
	}
	m.Mortality.Alpha = m.register(spec.Mortality.Alpha, "mortality.gompertz_alpha")
	m.Mortality.Beta = m.register(spec.Mortality.Beta, "mortality.gompertz_beta")
	if err := m.Mortality.Alpha.validate(kindPositive); err != nil {
		return nil, err
	}
	if err := m.Mortality.Beta.validate(kindRatio); err != nil {
		return nil, err
	}

	if len(spec.Complications) == 0 && len(spec.Acute) == 0 {
		return nil, fmt.Errorf("at least one chronic or acute complication is required")
	}
	for i := range spec.Complications {
		if err := m.buildComplication(&spec.Complications[i], i); err != nil {
			return nil, err
		}
	}
	for i := range spec.Acute {
		if err := m.buildAcute(&spec.Acute[i], i); err != nil {
			return nil, err
		}
	}

	if len(spec.Interventions) == 0 {
		return nil, fmt.Errorf("at least one intervention is required")
	}
	for i := range spec.Interventions {
		if err := m.buildIntervention(&spec.Interventions[i], i); err != nil {
			return nil, err
		}
	}

	if err := m.validatePopulation(); err != nil {
		return nil, err
	}
	return m, nil
}

// register assigns the next parameter ID.
func (m *Model) register(p *Param, name string) *Param {
	p.ID = len(m.Params)
	p.Name = name
	m.Params = append(m.Params, p)
	return p
}

func (m *Model) buildComplication(cs *ComplicationSpec, idx int) error {
	prefix := fmt.Sprintf("complications[%d]", idx)
	if cs.Name == "" {
		return fmt.Errorf("%s: name is required", prefix)
	}
	if len(cs.Stages) == 0 {
		return fmt.Errorf("%s (%s): at least one stage is required", prefix, cs.Name)
	}
	c := &Complication{Name: cs.Name, Index: idx}
	for _, ss := range cs.Stages {
		if ss.Name == "" {
			return fmt.Errorf("%s (%s): stage name is required", prefix, cs.Name)
		}
		if _, dup := m.stages[ss.Name]; dup {
			return fmt.Errorf("%s (%s): duplicate stage %q", prefix, cs.Name, ss.Name)
		}
		imr := ss.IMR
		if imr == nil {
			imr = Fixed(1)
		}
		s := &Stage{
			Name:         ss.Name,
			Rank:         len(m.Stages),
			Complication: c,
			IMR:          m.register(imr, ss.Name+".imr"),
		}
		if err := s.IMR.validate(kindRatio); err != nil {
			return err
		}
		m.stages[s.Name] = s
		m.Stages = append(m.Stages, s)
		c.Stages = append(c.Stages, s)
	}

	for j, ts := range cs.Transitions {
		tr, err := m.buildTransition(c, &ts, fmt.Sprintf("%s.transitions[%d]", prefix, j))
		if err != nil {
			return err
		}
		tr.Index = len(m.transitions)
		m.transitions[tr.Name] = tr
		c.Transitions = append(c.Transitions, tr)
	}
	if len(c.Transitions) == 0 {
		return fmt.Errorf("%s (%s): at least one transition is required", prefix, cs.Name)
	}
	m.Complications = append(m.Complications, c)
	return nil
}

func (m *Model) buildTransition(c *Complication, ts *TransitionSpec, prefix string) (*Transition, error) {
	to := m.stages[ts.To]
	if to == nil || to.Complication != c {
		return nil, fmt.Errorf("%s: target stage %q is not a stage of %s", prefix, ts.To, c.Name)
	}
	var from *Stage
	if ts.From != "" {
		from = m.stages[ts.From]
		if from == nil || from.Complication != c {
			return nil, fmt.Errorf("%s: source stage %q is not a stage of %s", prefix, ts.From, c.Name)
		}
		if from.Rank >= to.Rank {
			return nil, fmt.Errorf("%s: %s -> %s must move to a more advanced stage", prefix, from.Name, to.Name)
		}
	}
	name := ts.Name
	if name == "" {
		if from == nil {
			name = "NONE_" + to.Name
		} else {
			name = from.Name + "_" + to.Name
		}
	}
	if _, dup := m.transitions[name]; dup {
		return nil, fmt.Errorf("%s: duplicate transition %q", prefix, name)
	}
	if _, clash := m.acute[name]; clash {
		return nil, fmt.Errorf("%s: transition %q clashes with an acute complication", prefix, name)
	}
	if ts.Probability == nil {
		return nil, fmt.Errorf("%s (%s): probability is required", prefix, name)
	}
	death := ts.DeathProbability
	if death == nil {
		death = Fixed(0)
	}
	tr := &Transition{
		Name:             name,
		From:             from,
		To:               to,
		Probability:      m.register(ts.Probability, name+".probability"),
		DeathProbability: m.register(death, name+".death_probability"),
	}
	if err := tr.Probability.validate(kindProbability); err != nil {
		return nil, err
	}
	if err := tr.DeathProbability.validate(kindProbability); err != nil {
		return nil, err
	}
	return tr, nil
}

func (m *Model) buildAcute(as *AcuteSpec, idx int) error {
	prefix := fmt.Sprintf("acute_complications[%d]", idx)
	if as.Name == "" {
		return fmt.Errorf("%s: name is required", prefix)
	}
	if _, dup := m.acute[as.Name]; dup {
		return fmt.Errorf("%s: duplicate acute complication %q", prefix, as.Name)
	}
	if _, clash := m.transitions[as.Name]; clash {
		return fmt.Errorf("%s: acute complication %q clashes with a transition", prefix, as.Name)
	}
	if as.Probability == nil {
		return fmt.Errorf("%s (%s): probability is required", prefix, as.Name)
	}
	death := as.DeathProbability
	if death == nil {
		death = Fixed(0)
	}
	a := &AcuteComplication{
		Name:             as.Name,
		Index:            idx,
		Probability:      m.register(as.Probability, as.Name+".probability"),
		DeathProbability: m.register(death, as.Name+".death_probability"),
	}
	if err := a.Probability.validate(kindProbability); err != nil {
		return err
	}
	if err := a.DeathProbability.validate(kindProbability); err != nil {
		return err
	}
	m.acute[a.Name] = a
	m.Acute = append(m.Acute, a)
	return nil
}

func (m *Model) buildIntervention(is *InterventionSpec, idx int) error {
	prefix := fmt.Sprintf("interventions[%d]", idx)
	if is.Name == "" {
		return fmt.Errorf("%s: name is required", prefix)
	}
	if _, dup := m.interventions[is.Name]; dup {
		return fmt.Errorf("%s: duplicate intervention %q", prefix, is.Name)
	}
	if is.EffectYears < 0 || math.IsNaN(is.EffectYears) || math.IsInf(is.EffectYears, 0) {
		return fmt.Errorf("%s (%s): effect_years must be a finite non-negative number, got %f", prefix, is.Name, is.EffectYears)
	}
	iv := &Intervention{
		Name:          is.Name,
		Index:         idx,
		EffectYears:   is.EffectYears,
		RelativeRisks: make(map[string]*Param, len(is.RelativeRisks)),
	}
	// Sorted so parameter IDs do not depend on map iteration order.
	targets := make([]string, 0, len(is.RelativeRisks))
	for name := range is.RelativeRisks {
		targets = append(targets, name)
	}
	sort.Strings(targets)
	for _, target := range targets {
		if m.transitions[target] == nil && m.acute[target] == nil {
			return fmt.Errorf("%s (%s): relative risk for unknown transition or acute complication %q", prefix, is.Name, target)
		}
		rr := m.register(is.RelativeRisks[target], is.Name+".rr."+target)
		if err := rr.validate(kindRatio); err != nil {
			return err
		}
		iv.RelativeRisks[target] = rr
	}
	m.interventions[iv.Name] = iv
	m.Interventions = append(m.Interventions, iv)
	return nil
}

func (m *Model) validatePopulation() error {
	p := &m.Population
	if p.MaleProportion < 0 || p.MaleProportion > 1 {
		return fmt.Errorf("population.male_proportion must be in [0, 1], got %f", p.MaleProportion)
	}
	if _, err := NewSampler(p.Age); err != nil {
		return fmt.Errorf("population.age: %w", err)
	}
	for name, prev := range p.InitialPrevalence {
		if m.stages[name] == nil {
			return fmt.Errorf("population.initial_prevalence: unknown stage %q", name)
		}
		if prev < 0 || prev > 1 || math.IsNaN(prev) {
			return fmt.Errorf("population.initial_prevalence.%s must be in [0, 1], got %f", name, prev)
		}
	}
	return nil
}
