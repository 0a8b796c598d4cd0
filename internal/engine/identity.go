package engine

import (
	"strings"

	"turnero/internal/conflict"
	appLog "turnero/internal/log"
	"turnero/internal/model"
)

// FindNameClash looks for a different patient whose normalized name equals
// name but whose DNI differs. The save flow surfaces this as an identity
// question before minting a new record.
func (e *Engine) FindNameClash(name, dni, excludeID string) (model.Patient, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	want := conflict.NormalizeName(name)
	if want == "" {
		return model.Patient{}, false
	}
	for _, p := range e.hist.Current().Patients {
		if p.ID == excludeID {
			continue
		}
		if conflict.NormalizeName(p.Name) != want {
			continue
		}
		if strings.TrimSpace(p.DNI) != strings.TrimSpace(dni) {
			return p, true
		}
	}
	return model.Patient{}, false
}

// FindDNIMatch looks for a different patient already holding the given DNI.
// The edit flow offers to unify the two records when this hits.
func (e *Engine) FindDNIMatch(dni, excludeID string) (model.Patient, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	want := strings.TrimSpace(dni)
	if want == "" {
		return model.Patient{}, false
	}
	for _, p := range e.hist.Current().Patients {
		if p.ID != excludeID && strings.TrimSpace(p.DNI) == want {
			return p, true
		}
	}
	return model.Patient{}, false
}

// UpdatePatient replaces an existing patient record in place. Appointments
// key off the id, so they follow automatically.
func (e *Engine) UpdatePatient(p model.Patient) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	for i, existing := range base.Patients {
		if existing.ID == p.ID {
			base.Patients[i] = p
			return e.commit(base)
		}
	}
	return Result{Notice: "patient not found", State: base}
}

// Unify merges two patient records suspected to be the same person: every
// appointment referencing removeID is re-pointed at keepID and the removed
// record is dropped. One history snapshot covers the whole merge.
func (e *Engine) Unify(keepID, removeID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	if keepID == removeID {
		return Result{Notice: "cannot unify a patient with itself", State: base}
	}
	if _, ok := base.PatientByID(keepID); !ok {
		return Result{Notice: "patient to keep not found", State: base}
	}
	if _, ok := base.PatientByID(removeID); !ok {
		return Result{Notice: "patient to remove not found", State: base}
	}

	moved := 0
	for i, a := range base.Appointments {
		if a.PatientID == removeID {
			base.Appointments[i].PatientID = keepID
			moved++
		}
	}
	kept := base.Patients[:0]
	for _, p := range base.Patients {
		if p.ID != removeID {
			kept = append(kept, p)
		}
	}
	base.Patients = kept

	appLog.Info("patients unified", "keep", keepID, "remove", removeID, "appointments_moved", moved)
	return e.commit(base)
}

// DeletePatient removes the patient and cascades to all of their
// appointments.
func (e *Engine) DeletePatient(id string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	if _, ok := base.PatientByID(id); !ok {
		return Result{Notice: "patient not found", State: base}
	}

	patients := base.Patients[:0]
	for _, p := range base.Patients {
		if p.ID != id {
			patients = append(patients, p)
		}
	}
	base.Patients = patients

	appts := base.Appointments[:0]
	removed := 0
	for _, a := range base.Appointments {
		if a.PatientID == id {
			removed++
			continue
		}
		appts = append(appts, a)
	}
	base.Appointments = appts

	appLog.Info("patient deleted", "id", id, "appointments_removed", removed)
	return e.commit(base)
}

// ImportPatients replaces the patient half of the snapshot wholesale,
// leaving appointments untouched.
func (e *Engine) ImportPatients(patients []model.Patient) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	base.Patients = patients
	appLog.Info("patients imported", "count", len(patients))
	return e.commit(base)
}

// ImportAppointments replaces the appointment half of the snapshot wholesale,
// leaving patients untouched.
func (e *Engine) ImportAppointments(appointments []model.Appointment) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	base.Appointments = appointments
	appLog.Info("appointments imported", "count", len(appointments))
	return e.commit(base)
}
