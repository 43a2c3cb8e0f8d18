package risk

import (
	"fmt"

	"github.com/ull-isaatc/sighos-sub008/sim/disease"
)

// Common-random-number keys. Every key embeds the patient ordinal, which
// cloned patients share, so each arm replays the same draws.

func deathKey(patientID int) string {
	return fmt.Sprintf("death/%d", patientID)
}

func transitionRandKey(tr *disease.Transition, patientID int) string {
	return fmt.Sprintf("tr/%s/%d", tr.Name, patientID)
}

func transitionDeathKey(tr *disease.Transition, patientID int) string {
	return fmt.Sprintf("tr_death/%s/%d", tr.Name, patientID)
}

func acuteKey(a *disease.AcuteComplication, patientID int) string {
	return fmt.Sprintf("acute/%s/%d", a.Name, patientID)
}

func acuteDeathKey(a *disease.AcuteComplication, patientID int) string {
	return fmt.Sprintf("acute_death/%s/%d", a.Name, patientID)
}
