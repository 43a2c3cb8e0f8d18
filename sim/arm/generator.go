package arm

import (
	"math/rand/v2"

	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/patient"
)

// ProfileSampler draws demographic profiles for fresh cohorts.
type ProfileSampler interface {
	SampleProfile(rng *rand.Rand) *patient.Profile
}

// Generator populates an arm's cohort. A fresh generator samples n new
// profiles; a replay generator clones the cohort of an earlier arm of the
// same replication, ordinal by ordinal.
type Generator struct {
	n       int
	sampler ProfileSampler
	rng     *rand.Rand
	source  *Simulation
}

// Fresh returns a generator that samples n profiles from sampler using rng.
func Fresh(n int, sampler ProfileSampler, rng *rand.Rand) *Generator {
	return &Generator{n: n, sampler: sampler, rng: rng}
}

// Replay returns a generator that clones the patients of source.
func Replay(source *Simulation) *Generator {
	return &Generator{n: len(source.Patients), source: source}
}

// IsReplay reports whether the generator clones an earlier cohort.
func (g *Generator) IsReplay() bool { return g.source != nil }

// generate creates the cohort bound to intervention. In replay mode the
// risk instance is reset first so per-arm memos do not leak across arms.
func (g *Generator) generate(intervention *disease.Intervention, inst RepositoryInstance, env *patient.Environment) []*patient.Patient {
	patients := make([]*patient.Patient, g.n)
	if g.source != nil {
		inst.Reset()
		for i, orig := range g.source.Patients {
			patients[i] = patient.NewClone(orig, intervention, env)
		}
		return patients
	}
	for i := range patients {
		patients[i] = patient.New(i, g.sampler.SampleProfile(g.rng), intervention, env)
	}
	return patients
}
