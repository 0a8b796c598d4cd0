package model

import "github.com/google/uuid"

// Stage is a tri-state progression used by pedido tracking axes.
type Stage string

const (
	StageNone      Stage = ""
	StageRequested Stage = "requested"
	StageGranted   Stage = "granted"
)

// PedidoStatus tracks the authorization paperwork of a single appointment.
// The axes are independent: an appointment can simultaneously have the
// pedido missing, a pending authorization and a granted reinforcement.
type PedidoStatus struct {
	Missing       bool  `json:"missing"`
	InProgress    bool  `json:"inProgress"`
	Authorization Stage `json:"authorization"`
	Reinforcement Stage `json:"reinforcement"`
}

// Patient is an identity record. ID is the only stable foreign key used by
// appointments; everything else is free text. DNI may collide across records,
// which is surfaced as a conflict rather than rejected.
type Patient struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DNI          string `json:"dni,omitempty"`
	Insurance    string `json:"insurance,omitempty"`
	InsuranceID  string `json:"insuranceId,omitempty"`
	Doctor       string `json:"doctor,omitempty"`
	Treatment    string `json:"treatment,omitempty"`
	Diagnosis    string `json:"diagnosis,omitempty"`
	Observations string `json:"observations,omitempty"`
}

// Appointment is a single scheduled occurrence. Date is an ISO day
// (YYYY-MM-DD) and Time an HH:MM wall-clock label on the half-hour grid.
// Session is a free-form label, conventionally "<n><suffix>" like "5/10".
type Appointment struct {
	ID        string        `json:"id"`
	PatientID string        `json:"patientId"`
	Date      string        `json:"date"`
	Time      string        `json:"time"`
	Session   string        `json:"session,omitempty"`
	Pedido    *PedidoStatus `json:"pedidoStatus,omitempty"`
}

// Clone returns a deep copy of the appointment.
func (a Appointment) Clone() Appointment {
	out := a
	if a.Pedido != nil {
		p := *a.Pedido
		out.Pedido = &p
	}
	return out
}

// SlotKey is the (date, time) occupancy key for this appointment.
func (a Appointment) SlotKey() string {
	return a.Date + " " + a.Time
}

// Before reports whether a is chronologically before b (date, then time).
// Both fields sort correctly as strings in their ISO forms.
func (a Appointment) Before(b Appointment) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.Time < b.Time
}

// AppState is an immutable point-in-time snapshot of the whole book.
// The application's true state is always the snapshot at the current
// history cursor; mutation is by wholesale snapshot replacement.
type AppState struct {
	Patients     []Patient     `json:"patients"`
	Appointments []Appointment `json:"appointments"`
}

// Clone returns a deep copy of the snapshot.
func (s AppState) Clone() AppState {
	out := AppState{
		Patients:     make([]Patient, len(s.Patients)),
		Appointments: make([]Appointment, len(s.Appointments)),
	}
	copy(out.Patients, s.Patients)
	for i, a := range s.Appointments {
		out.Appointments[i] = a.Clone()
	}
	return out
}

// PatientByID returns the patient with the given id, if any.
func (s AppState) PatientByID(id string) (Patient, bool) {
	for _, p := range s.Patients {
		if p.ID == id {
			return p, true
		}
	}
	return Patient{}, false
}

// AppointmentByID returns the appointment with the given id, if any.
func (s AppState) AppointmentByID(id string) (Appointment, bool) {
	for _, a := range s.Appointments {
		if a.ID == id {
			return a, true
		}
	}
	return Appointment{}, false
}

// PatientName resolves a patient id for display. Dangling references are
// tolerated and shown as "Unknown".
func (s AppState) PatientName(id string) string {
	if p, ok := s.PatientByID(id); ok {
		return p.Name
	}
	return "Unknown"
}

// NewID mints a globally unique record id.
func NewID() string {
	return uuid.NewString()
}
