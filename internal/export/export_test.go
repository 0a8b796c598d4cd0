package export

import (
	"strings"
	"testing"
	"time"

	"turnero/internal/model"
)

func testState() model.AppState {
	return model.AppState{
		Patients: []model.Patient{
			{ID: "p1", Name: "Marta Sol", Treatment: "kinesiología"},
		},
		Appointments: []model.Appointment{
			{ID: "a1", PatientID: "p1", Date: "2026-09-01", Time: "11:00", Session: "1/10"},
			{ID: "a2", PatientID: "ghost", Date: "2026-09-02", Time: "12:30"},
			{ID: "bad", PatientID: "p1", Date: "not-a-date", Time: "11:00"},
		},
	}
}

func TestJSONExportsArePretty(t *testing.T) {
	data, err := PatientsJSON(testState())
	if err != nil {
		t.Fatalf("PatientsJSON: %v", err)
	}
	if !strings.Contains(string(data), "\n  ") {
		t.Error("patients export should be indented")
	}
	if !strings.Contains(string(data), "Marta Sol") {
		t.Error("patients export missing record")
	}
}

func TestParsePatients(t *testing.T) {
	got, err := ParsePatients([]byte(`[{"name":"Luz Gil"},{"id":"x","name":"Juan Rey"}]`))
	if err != nil {
		t.Fatalf("ParsePatients: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d patients, want 2", len(got))
	}
	if got[0].ID == "" {
		t.Error("missing id must be minted")
	}
	if got[1].ID != "x" {
		t.Error("existing id must be kept")
	}

	if _, err := ParsePatients([]byte(`{"name":"not an array"}`)); err == nil {
		t.Fatal("expected error for non-array document")
	}
}

func TestParseAppointmentsRejectsMalformed(t *testing.T) {
	if _, err := ParseAppointments([]byte("{broken")); err == nil {
		t.Fatal("expected error")
	}
}

func TestICS(t *testing.T) {
	data, err := ICS(testState(), time.UTC)
	if err != nil {
		t.Fatalf("ICS: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "BEGIN:VCALENDAR") || !strings.Contains(out, "BEGIN:VEVENT") {
		t.Fatal("not an iCalendar document")
	}
	if !strings.Contains(out, "Marta Sol (1/10)") {
		t.Error("summary missing patient name and session")
	}
	if !strings.Contains(out, "Unknown") {
		t.Error("dangling patient reference should render as Unknown")
	}
	// The malformed appointment is skipped, so exactly two events.
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("got %d events, want 2", got)
	}
}
