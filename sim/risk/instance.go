package risk

import (
	"math"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/patient"
)

// maxProbability keeps -ln(1-p) finite.
const maxProbability = 1 - 1e-12

// transitionKey identifies a transition for one patient.
type transitionKey struct {
	patient    int
	transition int
}

// scheduledTransition remembers the time computed for a transition and the
// rate it was computed with, so a later rate change can rescale the
// remaining time instead of drawing again.
type scheduledTransition struct {
	time int64
	rate float64
}

// imrMemo caches a patient's mortality multiplier for a given stage count.
type imrMemo struct {
	stages int
	imr    float64
}

// Instance is the per-replication draw of every model parameter plus the
// replication's common random numbers. It implements patient.RiskModel.
//
// Per-arm memos are keyed by patient ordinal, which clones share, so Reset
// must run before the instance serves another arm. The common-random-number
// cache survives Reset.
//
// Thread-safety: NOT thread-safe. Owned by one replication.
type Instance struct {
	Replication int

	model  *disease.Model
	key    sim.SimulationKey
	values []float64
	rng    *sim.PartitionedRNG
	crn    *sim.CommonRandomNumbers

	transitions map[transitionKey]scheduledTransition
	imr         map[int]imrMemo
}

func newInstance(model *disease.Model, replication int, key sim.SimulationKey, values []float64) *Instance {
	rng := sim.NewPartitionedRNG(key)
	return &Instance{
		Replication: replication,
		model:       model,
		key:         key,
		values:      values,
		rng:         rng,
		crn:         sim.NewCommonRandomNumbers(rng.ForSubsystem(sim.SubsystemCRN)),
		transitions: make(map[transitionKey]scheduledTransition),
		imr:         make(map[int]imrMemo),
	}
}

// Key returns the replication's simulation key.
func (inst *Instance) Key() sim.SimulationKey { return inst.key }

// RNG returns the replication's partitioned RNG.
func (inst *Instance) RNG() *sim.PartitionedRNG { return inst.rng }

// CRN returns the replication's common-random-number cache.
func (inst *Instance) CRN() *sim.CommonRandomNumbers { return inst.crn }

// Model returns the model the instance was drawn from.
func (inst *Instance) Model() *disease.Model { return inst.model }

// Value returns the replication's value of p.
func (inst *Instance) Value(p *disease.Param) float64 { return inst.values[p.ID] }

// Reset clears per-arm memos. Common random numbers and parameter values are kept.
func (inst *Instance) Reset() {
	clear(inst.transitions)
	clear(inst.imr)
}

// === patient.RiskModel ===

// TimeToDeath draws the time of death from Gompertz background mortality,
// hazard(age) = alpha * imr * exp(beta * age), conditional on being alive at
// the patient's current age. imr is the largest increased mortality ratio
// among the patient's stages.
func (inst *Instance) TimeToDeath(p *patient.Patient) int64 {
	alpha := inst.Value(inst.model.Mortality.Alpha)
	beta := inst.Value(inst.model.Mortality.Beta)
	imr := inst.mortalityRatio(p)
	u := inst.crn.DrawOne(deathKey(p.ID))
	if u <= 0 || alpha <= 0 || imr <= 0 {
		return sim.Never
	}

	var years float64
	if beta == 0 {
		years = -math.Log(u) / (alpha * imr)
	} else {
		years = math.Log(1-beta*math.Log(u)/(alpha*imr*math.Exp(beta*p.Age()))) / beta
	}
	return inst.after(p.Now(), years)
}

// Progression recomputes the competing transitions of complication c.
//
// For each stage of c the patient has not reached, the earliest time among
// its enabled transitions is computed. A transition keeps the time it was
// first given, rescaled by the ratio of old to new rate when its rate
// changes; a newly enabled transition draws from its own common random
// number. A pending event is replaced only by a strictly earlier time, and
// cancelled when its stage is no longer reachable.
func (inst *Instance) Progression(p *patient.Patient, c *disease.Complication) patient.Progression {
	var prog patient.Progression
	now := p.Now()
	death := p.DeathTime()

	var current *disease.Stage
	for _, s := range c.Stages {
		if p.HasStage(s) {
			current = s
		}
	}

	for _, target := range c.Stages {
		if p.HasStage(target) {
			continue
		}
		pendingTime, pending := p.PendingStageTime(target)
		if current != nil && target.Rank <= current.Rank {
			if pending {
				prog.Cancel = append(prog.Cancel, target)
			}
			continue
		}

		best, ok := inst.earliestTransition(p, c, current, target, now)
		switch {
		case !ok:
			if pending {
				prog.Cancel = append(prog.Cancel, target)
			}
		case !pending:
			if best.Time < death {
				prog.New = append(prog.New, best)
			}
		case best.Time < pendingTime:
			prog.Cancel = append(prog.Cancel, target)
			if best.Time < death {
				prog.New = append(prog.New, best)
			}
		}
	}
	return prog
}

// TimeToAcuteEvent draws the next episode of a. With effectLost the pending
// episode is rescaled to the rate without the intervention's relative risk;
// otherwise the n-th episode uses the n-th common random number of the patient.
func (inst *Instance) TimeToAcuteEvent(p *patient.Patient, a *disease.AcuteComplication, effectLost bool) patient.Outcome {
	now := p.Now()
	n := p.AcuteCount(a)
	outcome := patient.Outcome{Acute: a, Time: sim.Never}
	outcome.CausesDeath = inst.crn.DrawAt(acuteDeathKey(a, p.ID), n) < inst.probability(a.DeathProbability)

	base := rateFromProbability(inst.probability(a.Probability))
	rate := base * inst.relativeRisk(p, a.Name, effectLost)
	if rate <= 0 {
		return outcome
	}

	if effectLost {
		// The pending episode was drawn under the intervention's relative risk.
		oldRate := base * inst.interventionRR(p, a.Name)
		if pending, ok := p.NextAcuteTime(a); ok && pending > now && oldRate > 0 {
			outcome.Time = rescale(now, pending, oldRate, rate)
			return outcome
		}
	}
	u := inst.crn.DrawAt(acuteKey(a, p.ID), n)
	outcome.Time = inst.after(now, -math.Log(u)/rate)
	return outcome
}

// === Internal helpers ===

// earliestTransition returns the earliest outcome among the transitions of c
// leading to target that are enabled from current.
func (inst *Instance) earliestTransition(p *patient.Patient, c *disease.Complication, current, target *disease.Stage, now int64) (patient.Outcome, bool) {
	var best patient.Outcome
	found := false
	for _, tr := range c.Transitions {
		if tr.To != target || tr.From != current {
			continue
		}
		rate := rateFromProbability(inst.probability(tr.Probability)) * inst.relativeRisk(p, tr.Name, false)
		if rate <= 0 {
			continue
		}
		key := transitionKey{patient: p.ID, transition: tr.Index}
		var ts int64
		if prev, ok := inst.transitions[key]; ok && prev.time > now {
			ts = rescale(now, prev.time, prev.rate, rate)
		} else {
			ts = inst.after(now, -math.Log(inst.crn.DrawOne(transitionRandKey(tr, p.ID)))/rate)
		}
		inst.transitions[key] = scheduledTransition{time: ts, rate: rate}

		if !found || ts < best.Time {
			best = patient.Outcome{
				Stage:       target,
				Time:        ts,
				CausesDeath: inst.crn.DrawOne(transitionDeathKey(tr, p.ID)) < inst.probability(tr.DeathProbability),
			}
			found = true
		}
	}
	return best, found && best.Time != sim.Never
}

// relativeRisk returns the intervention's relative risk for target, or 1
// once the effect is lost.
func (inst *Instance) relativeRisk(p *patient.Patient, target string, effectLost bool) float64 {
	if effectLost || p.EffectLost() {
		return 1
	}
	return inst.interventionRR(p, target)
}

// interventionRR returns the relative risk the intervention assigns to
// target, whether or not its effect has been lost.
func (inst *Instance) interventionRR(p *patient.Patient, target string) float64 {
	rr := p.Intervention.RelativeRisk(target)
	if rr == nil {
		return 1
	}
	return math.Max(0, inst.Value(rr))
}

func (inst *Instance) mortalityRatio(p *patient.Patient) float64 {
	stages := p.Stages()
	if memo, ok := inst.imr[p.ID]; ok && memo.stages == len(stages) {
		return memo.imr
	}
	imr := 1.0
	for _, s := range stages {
		imr = math.Max(imr, inst.Value(s.IMR))
	}
	inst.imr[p.ID] = imrMemo{stages: len(stages), imr: imr}
	return imr
}

func (inst *Instance) probability(p *disease.Param) float64 {
	return math.Min(maxProbability, math.Max(0, inst.Value(p)))
}

// after converts a duration in years to an absolute timestamp.
func (inst *Instance) after(now int64, years float64) int64 {
	ticks := inst.model.ToTicks(years)
	if ticks == sim.Never || ticks > sim.Never-now {
		return sim.Never
	}
	return now + ticks
}

// rateFromProbability converts an annual probability into a constant rate.
func rateFromProbability(p float64) float64 {
	return -math.Log(1 - p)
}

// rescale keeps the remaining cumulative hazard of an event scheduled at
// pending under oldRate, spending it at newRate from now on.
func rescale(now, pending int64, oldRate, newRate float64) int64 {
	if newRate <= 0 {
		return sim.Never
	}
	remaining := float64(pending-now) * oldRate / newRate
	if remaining >= float64(sim.Never-now) {
		return sim.Never
	}
	return now + int64(remaining)
}
