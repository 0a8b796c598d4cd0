// Package export serializes the appointment book for download (pretty JSON
// per half, plus an iCalendar rendering) and validates imported JSON halves.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"turnero/internal/model"
	"turnero/internal/timegrid"
)

// appointmentMinutes is the slot length used for exported calendar events.
const appointmentMinutes = 30

// PatientsJSON renders the patient half as pretty-printed JSON.
func PatientsJSON(st model.AppState) ([]byte, error) {
	return json.MarshalIndent(st.Patients, "", "  ")
}

// AppointmentsJSON renders the appointment half as pretty-printed JSON.
func AppointmentsJSON(st model.AppState) ([]byte, error) {
	return json.MarshalIndent(st.Appointments, "", "  ")
}

// ParsePatients validates an imported patients document. Records missing an
// id get a fresh one minted; a malformed document aborts the import.
func ParsePatients(data []byte) ([]model.Patient, error) {
	var out []model.Patient
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("export: invalid patients document: %w", err)
	}
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = model.NewID()
		}
	}
	return out, nil
}

// ParseAppointments validates an imported appointments document.
func ParseAppointments(data []byte) ([]model.Appointment, error) {
	var out []model.Appointment
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("export: invalid appointments document: %w", err)
	}
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = model.NewID()
		}
	}
	return out, nil
}

// ICS renders every appointment as a VEVENT in the given timezone. Summary
// is the patient's display name plus the session label; treatment goes into
// the description when known.
func ICS(st model.AppState, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//turnero//appointment book//EN")

	now := time.Now().In(loc)
	for _, a := range st.Appointments {
		start, err := parseSlot(a.Date, a.Time, loc)
		if err != nil {
			// Tolerated in the data model; skip rather than fail the export.
			continue
		}

		ev := cal.AddEvent(a.ID)
		ev.SetCreatedTime(now)
		ev.SetDtStampTime(now)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(appointmentMinutes * time.Minute))

		summary := st.PatientName(a.PatientID)
		if a.Session != "" {
			summary += " (" + a.Session + ")"
		}
		ev.SetSummary(summary)

		if p, ok := st.PatientByID(a.PatientID); ok && p.Treatment != "" {
			ev.SetDescription(p.Treatment)
		}
	}

	return []byte(cal.Serialize()), nil
}

func parseSlot(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := timegrid.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}
