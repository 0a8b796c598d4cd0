package engine

import (
	"sort"
	"time"

	appLog "turnero/internal/log"
	"turnero/internal/model"
	"turnero/internal/recur"
	"turnero/internal/session"
	"turnero/internal/timegrid"
)

// SaveSingle upserts the patient and books one new appointment for them,
// subject to slot-conflict confirmation.
func (e *Engine) SaveSingle(p model.Patient, ap model.Appointment) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	upsertPatient(&base, &p)

	ap = ap.Clone()
	if ap.ID == "" {
		ap.ID = model.NewID()
	}
	ap.PatientID = p.ID
	return e.stageOrCommit(base, []model.Appointment{ap}, "save appointment")
}

// SaveRecurring books a recurring series expanded from the trigger over the
// given weekday set and week count. When the expansion yields one candidate
// or none, the plain single-save path is taken instead.
func (e *Engine) SaveRecurring(p model.Patient, trigger model.Appointment, weekdays []time.Weekday, weekCount int) Result {
	candidates, err := recur.Expand(trigger, weekdays, weekCount)
	if err != nil {
		return Result{Notice: err.Error(), State: e.State()}
	}
	if len(candidates) <= 1 {
		return e.SaveSingle(p, trigger)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	upsertPatient(&base, &p)
	for i := range candidates {
		candidates[i].PatientID = p.ID
	}
	recur.NumberSeries(candidates, trigger)

	appLog.Info("recurring series expanded", "patient", p.ID,
		"weeks", weekCount, "candidates", len(candidates))
	return e.stageOrCommit(base, candidates, "save recurring series")
}

// EditAppointment replaces an existing appointment by id and renumbers the
// patient's strictly-later sessions from the edited label.
func (e *Engine) EditAppointment(ap model.Appointment) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	idx := -1
	for i, a := range base.Appointments {
		if a.ID == ap.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{Notice: "appointment not found", State: base}
	}
	base.Appointments[idx] = ap.Clone()
	base.Appointments = recur.RenumberFuture(base.Appointments, ap)
	return e.commit(base)
}

// SetPedido updates the pedido tracking status of one appointment.
func (e *Engine) SetPedido(appointmentID string, status *model.PedidoStatus) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	for i, a := range base.Appointments {
		if a.ID != appointmentID {
			continue
		}
		if status != nil {
			s := *status
			base.Appointments[i].Pedido = &s
		} else {
			base.Appointments[i].Pedido = nil
		}
		return e.commit(base)
	}
	return Result{Notice: "appointment not found", State: base}
}

// DeleteDay removes the patient's appointment(s) on the exact date.
func (e *Engine) DeleteDay(patientID, date string) Result {
	return e.deleteMatching("delete day", func(a model.Appointment) bool {
		return a.PatientID == patientID && a.Date == date
	})
}

// DeleteWeek removes all of the patient's appointments in the Mon-Sun week
// containing the reference date.
func (e *Engine) DeleteWeek(patientID, refDate string) Result {
	ref, err := timegrid.ParseDate(refDate)
	if err != nil {
		return Result{Notice: "invalid reference date", State: e.State()}
	}
	monday := timegrid.MondayOf(ref)
	sunday := timegrid.AddDays(monday, timegrid.DaysPerWeek-1)
	from, to := timegrid.DateKey(monday), timegrid.DateKey(sunday)
	return e.deleteMatching("delete week", func(a model.Appointment) bool {
		return a.PatientID == patientID && a.Date >= from && a.Date <= to
	})
}

// DeleteColumn removes the patient's appointments on the reference date's
// weekday strictly after the reference date; the reference date itself is
// retained.
func (e *Engine) DeleteColumn(patientID, refDate string) Result {
	ref, err := timegrid.ParseDate(refDate)
	if err != nil {
		return Result{Notice: "invalid reference date", State: e.State()}
	}
	wd := ref.Weekday()
	return e.deleteMatching("delete column", func(a model.Appointment) bool {
		if a.PatientID != patientID || a.Date <= refDate {
			return false
		}
		d, derr := timegrid.ParseDate(a.Date)
		return derr == nil && d.Weekday() == wd
	})
}

// Annihilate removes all of the patient's appointments from the day after
// the reference date through three months later.
func (e *Engine) Annihilate(patientID, refDate string) Result {
	ref, err := timegrid.ParseDate(refDate)
	if err != nil {
		return Result{Notice: "invalid reference date", State: e.State()}
	}
	start := timegrid.AddDays(ref, 1)
	end := start.AddDate(0, 3, 0)
	from, to := timegrid.DateKey(start), timegrid.DateKey(end)
	return e.deleteMatching("annihilate", func(a model.Appointment) bool {
		return a.PatientID == patientID && a.Date >= from && a.Date <= to
	})
}

// deleteMatching removes every appointment matching the predicate, committing
// only when something actually matched.
func (e *Engine) deleteMatching(what string, match func(model.Appointment) bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()
	kept := base.Appointments[:0]
	removed := 0
	for _, a := range base.Appointments {
		if match(a) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	if removed == 0 {
		return Result{Notice: "no appointments matched", State: e.hist.Current().Clone()}
	}
	base.Appointments = kept
	appLog.Info("appointments removed", "op", what, "count", removed)
	return e.commit(base)
}

// ExtendWeek clones every appointment of the patient within the reference
// week forward by exactly seven days, continuing the session numbering from
// the patient's chronologically-latest existing appointment. Subject to the
// same conflict confirmation as creation.
func (e *Engine) ExtendWeek(patientID, refDate string) Result {
	ref, err := timegrid.ParseDate(refDate)
	if err != nil {
		return Result{Notice: "invalid reference date", State: e.State()}
	}
	monday := timegrid.MondayOf(ref)
	sunday := timegrid.AddDays(monday, timegrid.DaysPerWeek-1)
	from, to := timegrid.DateKey(monday), timegrid.DateKey(sunday)
	return e.extendMatching("extend week", patientID, func(a model.Appointment) bool {
		return a.Date >= from && a.Date <= to
	})
}

// ExtendColumn clones the patient's appointments on the exact date forward by
// seven days, numbering sessions one past the patient's latest existing one.
func (e *Engine) ExtendColumn(patientID, date string) Result {
	return e.extendMatching("extend column", patientID, func(a model.Appointment) bool {
		return a.Date == date
	})
}

func (e *Engine) extendMatching(what, patientID string, inScope func(model.Appointment) bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.hist.Current().Clone()

	var clones []model.Appointment
	for _, a := range base.Appointments {
		if a.PatientID != patientID || !inScope(a) {
			continue
		}
		c := a.Clone()
		c.ID = model.NewID()
		d, err := timegrid.ParseDate(a.Date)
		if err != nil {
			continue
		}
		c.Date = timegrid.DateKey(timegrid.AddDays(d, timegrid.DaysPerWeek))
		clones = append(clones, c)
	}
	if len(clones) == 0 {
		return Result{Notice: "no appointments to extend", State: base}
	}

	numberClones(clones, base, patientID)
	appLog.Info("appointments cloned forward", "op", what, "count", len(clones))
	return e.stageOrCommit(base, clones, what)
}

// numberClones assigns sequential session labels to freshly cloned
// appointments, continuing from the patient's chronologically-latest existing
// appointment. An unparseable latest label leaves the copied labels as-is.
func numberClones(clones []model.Appointment, base model.AppState, patientID string) {
	var latest *model.Appointment
	for i, a := range base.Appointments {
		if a.PatientID != patientID {
			continue
		}
		if latest == nil || latest.Before(a) {
			latest = &base.Appointments[i]
		}
	}
	if latest == nil {
		return
	}
	lbl := session.Parse(latest.Session)
	if !lbl.OK {
		return
	}
	sort.Slice(clones, func(i, j int) bool { return clones[i].Before(clones[j]) })
	for i := range clones {
		clones[i].Session = lbl.With(lbl.Number + 1 + i)
	}
}

// upsertPatient replaces the patient by id, appending when new. A blank id
// mints a fresh one.
func upsertPatient(base *model.AppState, p *model.Patient) {
	if p.ID == "" {
		p.ID = model.NewID()
	}
	for i, existing := range base.Patients {
		if existing.ID == p.ID {
			base.Patients[i] = *p
			return
		}
	}
	base.Patients = append(base.Patients, *p)
}
