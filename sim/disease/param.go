package disease

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Param is an uncertain model parameter: a point estimate used by the base
// case and an optional second-order distribution sampled by probabilistic
// replications.
//
// ID indexes the parameter in per-replication value tables; it is assigned
// by Build in a deterministic order.
type Param struct {
	Value       float64   `yaml:"value"`
	Uncertainty *DistSpec `yaml:"uncertainty,omitempty"`

	ID      int    `yaml:"-"`
	Name    string `yaml:"-"`
	sampler Sampler
}

// Fixed returns a Param without uncertainty.
func Fixed(value float64) *Param {
	return &Param{Value: value}
}

// Draw samples the parameter from its second-order distribution, or returns
// the point estimate when it has none.
func (p *Param) Draw(rng *rand.Rand) float64 {
	if p.sampler == nil {
		return p.Value
	}
	return p.sampler.Sample(rng)
}

// IsUncertain reports whether the parameter has a second-order distribution.
func (p *Param) IsUncertain() bool {
	return p.sampler != nil
}

func (p *Param) String() string {
	return fmt.Sprintf("%s=%g", p.Name, p.Value)
}

// paramKind constrains the admissible range of a parameter's point estimate.
type paramKind int

const (
	kindProbability paramKind = iota
	kindRatio
	kindPositive
)

func (p *Param) validate(kind paramKind) error {
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", p.Name, p.Value)
	}
	switch kind {
	case kindProbability:
		if p.Value < 0 || p.Value > 1 {
			return fmt.Errorf("%s must be a probability in [0, 1], got %f", p.Name, p.Value)
		}
	case kindRatio:
		if p.Value < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", p.Name, p.Value)
		}
	case kindPositive:
		if p.Value <= 0 {
			return fmt.Errorf("%s must be positive, got %f", p.Name, p.Value)
		}
	}
	if p.Uncertainty != nil {
		s, err := NewSampler(*p.Uncertainty)
		if err != nil {
			return fmt.Errorf("%s.uncertainty: %w", p.Name, err)
		}
		p.sampler = s
	}
	return nil
}
