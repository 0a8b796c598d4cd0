package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"turnero/internal/config"
	"turnero/internal/engine"
	"turnero/internal/model"
	"turnero/internal/store"
)

func testServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	eng := engine.New(cfg.HistoryCap, model.AppState{
		Patients: []model.Patient{
			{ID: "p1", Name: "Marta Sol", DNI: "111"},
		},
		Appointments: []model.Appointment{
			{ID: "a1", PatientID: "p1", Date: "2026-09-01", Time: "11:00", Session: "1/10"},
		},
	})

	srv := httptest.NewServer(NewServer(cfg, eng, st, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, eng
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var buf strings.Builder
	dec := json.NewDecoder(resp.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err == nil {
		buf.Write(raw)
	}
	return resp, []byte(buf.String())
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStateEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	var got stateResponse
	getJSON(t, srv.URL+"/api/state", &got)
	if len(got.Patients) != 1 || len(got.Appointments) != 1 {
		t.Fatalf("state = %+v", got)
	}
	if got.CanUndo || got.CanRedo {
		t.Error("fresh book must have no undo/redo")
	}
}

func TestSlotsEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	var got struct {
		Date  string    `json:"date"`
		Slots []slotDTO `json:"slots"`
	}
	getJSON(t, srv.URL+"/api/slots?date=2026-09-01", &got)
	if len(got.Slots) != 14 {
		t.Fatalf("got %d slots, want 14", len(got.Slots))
	}
	if !got.Slots[0].Occupied {
		t.Error("11:00 should be occupied by the seed appointment")
	}
	if got.Slots[1].Occupied {
		t.Error("11:30 should be free")
	}

	resp, err := http.Get(srv.URL + "/api/slots?date=bogus")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus date status = %d, want 400", resp.StatusCode)
	}
}

func TestSaveFlowWithNameClashAndForce(t *testing.T) {
	srv, _ := testServer(t)

	body := `{"patient":{"name":"MARTA  sol","dni":"999"},"appointment":{"date":"2026-09-03","time":"12:00","session":"1/5"}}`
	resp, raw := postJSON(t, srv.URL+"/api/appointments", body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409 identity question (%s)", resp.StatusCode, raw)
	}
	var q identityQuestion
	if err := json.Unmarshal(raw, &q); err != nil || q.Question != "name-clash" {
		t.Fatalf("unexpected 409 payload: %s", raw)
	}

	forced := `{"patient":{"name":"MARTA  sol","dni":"999"},"appointment":{"date":"2026-09-03","time":"12:00","session":"1/5"},"force":true}`
	resp, raw = postJSON(t, srv.URL+"/api/appointments", forced)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forced save status = %d (%s)", resp.StatusCode, raw)
	}
	var res opResponse
	if err := json.Unmarshal(raw, &res); err != nil || !res.Committed {
		t.Fatalf("forced save not committed: %s", raw)
	}
}

func TestConflictConfirmOverHTTP(t *testing.T) {
	srv, eng := testServer(t)

	body := `{"patient":{"id":"p1","name":"Marta Sol","dni":"111"},"appointment":{"date":"2026-09-01","time":"11:00","session":"2/10"}}`
	resp, raw := postJSON(t, srv.URL+"/api/appointments", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, raw)
	}
	var res opResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	if res.Committed || res.Pending == nil || len(res.Pending.Conflicts) != 1 {
		t.Fatalf("expected staged conflict, got %s", raw)
	}

	resp, raw = postJSON(t, srv.URL+"/api/pending/"+res.Pending.ID, `{"accept":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &res); err != nil || !res.Committed {
		t.Fatalf("confirm not committed: %s", raw)
	}
	if got := len(eng.State().Appointments); got != 1 {
		t.Fatalf("occupant must be replaced, have %d appointments", got)
	}
}

func TestOpsAndUndoOverHTTP(t *testing.T) {
	srv, eng := testServer(t)

	resp, raw := postJSON(t, srv.URL+"/api/ops/delete-day", `{"patientId":"p1","date":"2026-09-01"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res opResponse
	if err := json.Unmarshal(raw, &res); err != nil || !res.Committed {
		t.Fatalf("delete-day: %s", raw)
	}
	if len(eng.State().Appointments) != 0 {
		t.Fatal("appointment not deleted")
	}

	resp, raw = postJSON(t, srv.URL+"/api/undo", "{}")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("undo status = %d", resp.StatusCode)
	}
	if len(eng.State().Appointments) != 1 {
		t.Fatal("undo did not restore the appointment")
	}

	// Advisory path: extending an empty week.
	_, raw = postJSON(t, srv.URL+"/api/ops/extend-week", `{"patientId":"p1","date":"2027-01-06"}`)
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	if res.Committed || res.Notice == "" {
		t.Fatalf("expected advisory, got %s", raw)
	}

	// Missing fields are a 400.
	resp, _ = postJSON(t, srv.URL+"/api/ops/extend-week", `{"patientId":"p1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing date status = %d, want 400", resp.StatusCode)
	}
}

func TestImportExportOverHTTP(t *testing.T) {
	srv, eng := testServer(t)

	resp, err := http.Get(srv.URL + "/api/export/appointments")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Disposition"); !strings.Contains(ct, "appointments.json") {
		t.Errorf("Content-Disposition = %q", ct)
	}

	resp2, raw := postJSON(t, srv.URL+"/api/import/patients", `[{"name":"Nueva"}]`)
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d (%s)", resp2.StatusCode, raw)
	}
	st := eng.State()
	if len(st.Patients) != 1 || st.Patients[0].Name != "Nueva" {
		t.Fatalf("import did not replace patients: %+v", st.Patients)
	}
	if len(st.Appointments) != 1 {
		t.Fatal("import must leave appointments untouched")
	}

	resp3, _ := postJSON(t, srv.URL+"/api/import/patients", `{bad`)
	if resp3.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed import status = %d, want 400", resp3.StatusCode)
	}
}

func TestAssistantUnconfigured(t *testing.T) {
	srv, _ := testServer(t)
	resp, _ := postJSON(t, srv.URL+"/api/assistant", `{"question":"hi"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestStorageEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	var got store.Usage
	getJSON(t, srv.URL+"/api/storage", &got)
	if got.Budget != store.LogicalBudgetBytes {
		t.Errorf("budget = %d", got.Budget)
	}
}
