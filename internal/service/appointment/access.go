package appointment

import "github.com/medhq/hospital-api/internal/model"

// canAct is the single access predicate for appointment operations: a
// patient may act only on appointments where they are the patient party, a
// doctor only where they are the practitioner party, elevated roles bypass
// both checks.
func canAct(actor *model.Actor, apt *model.Appointment) bool {
	if actor.Role.Elevated() {
		return true
	}
	switch actor.Role {
	case model.RoleDoctor:
		return apt.PractitionerID == actor.ID
	case model.RolePatient:
		return apt.PatientID == actor.ID
	}
	return false
}
