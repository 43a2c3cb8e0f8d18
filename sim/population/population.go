// Package population samples patient profiles and the stages patients have
// at simulation start.
package population

import (
	"fmt"
	"math/rand/v2"

	"github.com/ull-isaatc/sighos-sub008/sim"
	"github.com/ull-isaatc/sighos-sub008/sim/disease"
	"github.com/ull-isaatc/sighos-sub008/sim/patient"
)

// Population draws profiles from the model's population description.
// Initial stages are drawn through a common-random-number cache so that
// cloned patients start in the same state as the patient they replay.
type Population struct {
	model      *disease.Model
	age        disease.Sampler
	male       float64
	prevalence []float64 // indexed by Stage.Rank
	crn        *sim.CommonRandomNumbers
}

// New builds a population for model, drawing initial stages from crn.
func New(model *disease.Model, crn *sim.CommonRandomNumbers) (*Population, error) {
	age, err := disease.NewSampler(model.Population.Age)
	if err != nil {
		return nil, fmt.Errorf("population age: %w", err)
	}
	prevalence := make([]float64, len(model.Stages))
	for name, p := range model.Population.InitialPrevalence {
		s := model.Stage(name)
		if s == nil {
			return nil, fmt.Errorf("initial prevalence for unknown stage %q", name)
		}
		prevalence[s.Rank] = p
	}
	return &Population{
		model:      model,
		age:        age,
		male:       model.Population.MaleProportion,
		prevalence: prevalence,
		crn:        crn,
	}, nil
}

// SampleProfile draws a new profile.
func (pop *Population) SampleProfile(rng *rand.Rand) *patient.Profile {
	sex := patient.Female
	if rng.Float64() < pop.male {
		sex = patient.Male
	}
	return &patient.Profile{Age: pop.age.Sample(rng), Sex: sex}
}

// InitialStages returns the prevalent stages of p in rank order. When
// several stages of one complication are drawn only the most advanced is
// kept, since a patient holds a single stage per complication at start.
func (pop *Population) InitialStages(p *patient.Patient) []*disease.Stage {
	var out []*disease.Stage
	for _, c := range pop.model.Complications {
		var chosen *disease.Stage
		for _, s := range c.Stages {
			prev := pop.prevalence[s.Rank]
			if prev <= 0 {
				continue
			}
			if pop.crn.DrawOne(initialKey(s, p.ID)) < prev {
				chosen = s
			}
		}
		if chosen != nil {
			out = append(out, chosen)
		}
	}
	return out
}

func initialKey(s *disease.Stage, patientID int) string {
	return fmt.Sprintf("init/%s/%d", s.Name, patientID)
}
