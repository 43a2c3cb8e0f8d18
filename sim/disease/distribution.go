package disease

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DistSpec parameterizes a continuous distribution in the model file.
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// Sampler draws real values from a distribution.
type Sampler interface {
	Sample(rng *rand.Rand) float64
}

// ConstantSampler always returns the same value.
type ConstantSampler struct {
	value float64
}

func (s *ConstantSampler) Sample(_ *rand.Rand) float64 { return s.value }

// GaussianSampler produces Gaussian values clamped to [min, max].
type GaussianSampler struct {
	dist     distuv.Normal
	min, max float64
}

func (s *GaussianSampler) Sample(rng *rand.Rand) float64 {
	d := s.dist
	d.Src = rng
	return math.Min(s.max, math.Max(s.min, d.Rand()))
}

// samplerFunc draws from a gonum distribution bound to rng on each call, so
// every replication consumes its own partitioned stream.
type samplerFunc func(rng *rand.Rand) float64

func (f samplerFunc) Sample(rng *rand.Rand) float64 { return f(rng) }

func uniformSampler(lo, hi float64) Sampler {
	return samplerFunc(func(rng *rand.Rand) float64 {
		return distuv.Uniform{Min: lo, Max: hi, Src: rng}.Rand()
	})
}

func logNormalSampler(mu, sigma float64) Sampler {
	return samplerFunc(func(rng *rand.Rand) float64 {
		return distuv.LogNormal{Mu: mu, Sigma: sigma, Src: rng}.Rand()
	})
}

// gammaSampler takes a scale; distuv.Gamma is parameterized by rate.
func gammaSampler(shape, scale float64) Sampler {
	return samplerFunc(func(rng *rand.Rand) float64 {
		return distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: rng}.Rand()
	})
}

func betaSampler(alpha, beta float64) Sampler {
	return samplerFunc(func(rng *rand.Rand) float64 {
		return distuv.Beta{Alpha: alpha, Beta: beta, Src: rng}.Rand()
	})
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("distribution requires parameter %q", k)
		}
	}
	return nil
}

// NewSampler creates a Sampler from a DistSpec.
func NewSampler(spec DistSpec) (Sampler, error) {
	for name, val := range spec.Params {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("params.%s must be a finite number, got %f", name, val)
		}
	}
	p := spec.Params
	switch spec.Type {
	case "constant":
		if err := requireParam(p, "value"); err != nil {
			return nil, err
		}
		return &ConstantSampler{value: p["value"]}, nil

	case "gaussian":
		if err := requireParam(p, "mean", "std_dev", "min", "max"); err != nil {
			return nil, err
		}
		if p["min"] > p["max"] {
			return nil, fmt.Errorf("gaussian min %f exceeds max %f", p["min"], p["max"])
		}
		return &GaussianSampler{dist: distuv.Normal{Mu: p["mean"], Sigma: p["std_dev"]}, min: p["min"], max: p["max"]}, nil

	case "uniform":
		if err := requireParam(p, "min", "max"); err != nil {
			return nil, err
		}
		if p["min"] > p["max"] {
			return nil, fmt.Errorf("uniform min %f exceeds max %f", p["min"], p["max"])
		}
		return uniformSampler(p["min"], p["max"]), nil

	case "lognormal":
		if err := requireParam(p, "mu", "sigma"); err != nil {
			return nil, err
		}
		if p["sigma"] < 0 {
			return nil, fmt.Errorf("lognormal sigma must be non-negative, got %f", p["sigma"])
		}
		return logNormalSampler(p["mu"], p["sigma"]), nil

	case "gamma":
		if err := requireParam(p, "shape", "scale"); err != nil {
			return nil, err
		}
		if p["shape"] <= 0 || p["scale"] <= 0 {
			return nil, fmt.Errorf("gamma shape and scale must be positive, got %f, %f", p["shape"], p["scale"])
		}
		return gammaSampler(p["shape"], p["scale"]), nil

	case "beta":
		if err := requireParam(p, "alpha", "beta"); err != nil {
			return nil, err
		}
		if p["alpha"] <= 0 || p["beta"] <= 0 {
			return nil, fmt.Errorf("beta alpha and beta must be positive, got %f, %f", p["alpha"], p["beta"])
		}
		return betaSampler(p["alpha"], p["beta"]), nil

	default:
		return nil, fmt.Errorf("unknown distribution type %q; valid: constant, gaussian, uniform, lognormal, gamma, beta", spec.Type)
	}
}
