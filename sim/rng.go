package sim

import (
	"hash/fnv"
	"math/rand/v2"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible replication.
// Two replications with the same SimulationKey and identical model configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// ReplicationKey derives the key of replication r from the experiment seed.
// Replication 0 (the base case) uses the seed directly.
// Uses a Knuth multiplicative hash so that (seed, r) pairs do not collide
// the way seed^r would (1^2 == 2^1).
func ReplicationKey(seed int64, replication int) SimulationKey {
	if replication == 0 {
		return SimulationKey(seed)
	}
	return SimulationKey(seed*2654435761 + int64(replication))
}

// === Subsystem Constants ===

const (
	// SubsystemCRN feeds the common-random-number cache.
	SubsystemCRN = "crn"

	// SubsystemParameters is used to draw second-order parameter uncertainty.
	SubsystemParameters = "parameters"

	// SubsystemPopulation is used to sample patient profiles in fresh arms.
	SubsystemPopulation = "population"
)

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName) seeds a PCG
// stream whose increment is the master seed.
//
// Thread-safety: NOT thread-safe. Each replication owns its own instance.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derivedSeed := int64(p.key) ^ fnv1a64(name)
	rng := rand.New(rand.NewPCG(uint64(derivedSeed), uint64(p.key)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
