// Package risk turns model parameters into event times.
//
// A Repository produces one Instance per replication: the base case uses
// point estimates, probabilistic replications sample every uncertain
// parameter. An Instance is shared by every arm of its replication; Reset
// must be called between arms.
package risk

import (
	"github.com/sirupsen/logrus"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
)

// Repository creates per-replication parameter instances for a model.
type Repository struct {
	model *disease.Model
}

// NewRepository creates a repository for model.
func NewRepository(model *disease.Model) *Repository {
	return &Repository{model: model}
}

// Model returns the model the repository draws from.
func (r *Repository) Model() *disease.Model { return r.model }

// BaseCase returns an instance using every parameter's point estimate.
func (r *Repository) BaseCase(key sim.SimulationKey) *Instance {
	values := make([]float64, len(r.model.Params))
	for _, p := range r.model.Params {
		values[p.ID] = p.Value
	}
	return newInstance(r.model, 0, key, values)
}

// Draw returns an instance whose uncertain parameters are sampled from their
// second-order distributions using the replication's parameter stream.
func (r *Repository) Draw(replication int, key sim.SimulationKey) *Instance {
	inst := newInstance(r.model, replication, key, nil)
	rng := inst.rng.ForSubsystem(sim.SubsystemParameters)
	values := make([]float64, len(r.model.Params))
	for _, p := range r.model.Params {
		values[p.ID] = p.Draw(rng)
	}
	inst.values = values
	logrus.Debugf("replication %d: drew %d parameters", replication, len(values))
	return inst
}

// ForReplication returns the base case for replication 0 and a probabilistic
// draw for every other replication.
func (r *Repository) ForReplication(seed int64, replication int) *Instance {
	key := sim.ReplicationKey(seed, replication)
	if replication == 0 {
		return r.BaseCase(key)
	}
	return r.Draw(replication, key)
}
