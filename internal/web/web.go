// Package web exposes the appointment book over a localhost HTTP API. The
// calendar UI itself is an external collaborator; this layer only moves the
// data it consumes and produces.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"turnero/internal/assistant"
	"turnero/internal/config"
	"turnero/internal/engine"
	"turnero/internal/export"
	appLog "turnero/internal/log"
	"turnero/internal/model"
	"turnero/internal/store"
	"turnero/internal/timegrid"
)

// Server provides the HTTP API over the engine, store and assistant.
type Server struct {
	cfg    *config.Config
	eng    *engine.Engine
	st     *store.Store
	assist *assistant.Client
	loc    *time.Location
	mux    *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, eng *engine.Engine, st *store.Store, assist *assistant.Client) *Server {
	s := &Server{
		cfg:    cfg,
		eng:    eng,
		st:     st,
		assist: assist,
		loc:    resolveLocationOrLocal(cfg.Timezone),
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/slots", s.handleSlots)
	s.mux.HandleFunc("GET /api/storage", s.handleStorage)

	s.mux.HandleFunc("POST /api/appointments", s.handleSaveAppointment)
	s.mux.HandleFunc("PUT /api/appointments/{id}", s.handleEditAppointment)
	s.mux.HandleFunc("PATCH /api/appointments/{id}/pedido", s.handlePedido)

	s.mux.HandleFunc("POST /api/ops/delete-day", s.opHandler(s.eng.DeleteDay))
	s.mux.HandleFunc("POST /api/ops/delete-week", s.opHandler(s.eng.DeleteWeek))
	s.mux.HandleFunc("POST /api/ops/delete-column", s.opHandler(s.eng.DeleteColumn))
	s.mux.HandleFunc("POST /api/ops/annihilate", s.opHandler(s.eng.Annihilate))
	s.mux.HandleFunc("POST /api/ops/extend-week", s.opHandler(s.eng.ExtendWeek))
	s.mux.HandleFunc("POST /api/ops/extend-column", s.opHandler(s.eng.ExtendColumn))

	s.mux.HandleFunc("POST /api/pending/{id}", s.handlePending)
	s.mux.HandleFunc("POST /api/undo", s.handleUndo)
	s.mux.HandleFunc("POST /api/redo", s.handleRedo)

	s.mux.HandleFunc("PUT /api/patients/{id}", s.handleUpdatePatient)
	s.mux.HandleFunc("POST /api/patients/unify", s.handleUnify)
	s.mux.HandleFunc("DELETE /api/patients/{id}", s.handleDeletePatient)

	s.mux.HandleFunc("GET /api/export/patients", s.handleExportPatients)
	s.mux.HandleFunc("GET /api/export/appointments", s.handleExportAppointments)
	s.mux.HandleFunc("GET /api/export/ics", s.handleExportICS)
	s.mux.HandleFunc("POST /api/import/patients", s.handleImportPatients)
	s.mux.HandleFunc("POST /api/import/appointments", s.handleImportAppointments)

	s.mux.HandleFunc("POST /api/assistant", s.handleAssistant)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// stateResponse is the JSON shape of the whole current snapshot plus the
// derived facts every view needs.
type stateResponse struct {
	Patients     []model.Patient     `json:"patients"`
	Appointments []model.Appointment `json:"appointments"`
	CanUndo      bool                `json:"canUndo"`
	CanRedo      bool                `json:"canRedo"`
	DNIConflicts any                 `json:"dniConflicts"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	st := s.eng.State()
	writeJSON(w, http.StatusOK, stateResponse{
		Patients:     st.Patients,
		Appointments: st.Appointments,
		CanUndo:      s.eng.CanUndo(),
		CanRedo:      s.eng.CanRedo(),
		DNIConflicts: s.eng.DNIConflicts(),
	})
}

type slotDTO struct {
	Time     string `json:"time"`
	Occupied bool   `json:"occupied"`
}

// handleSlots returns the daily grid for a date with per-slot occupancy.
//
// GET /api/slots?date=2026-09-01
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := timegrid.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	st := s.eng.State()
	labels := timegrid.Slots(s.cfg.Grid.StartHour, s.cfg.Grid.EndHour, s.cfg.Grid.StepMinutes)
	out := make([]slotDTO, 0, len(labels))
	for _, t := range labels {
		out = append(out, slotDTO{
			Time:     t,
			Occupied: timegrid.IsOccupied(st.Appointments, date, t),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": out})
}

func (s *Server) handleStorage(w http.ResponseWriter, _ *http.Request) {
	usage, err := s.st.Usage()
	if err != nil {
		appLog.Error("storage usage check failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read storage usage")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// opResponse is the JSON shape of every mutating operation's outcome.
type opResponse struct {
	Committed bool                  `json:"committed"`
	Notice    string                `json:"notice,omitempty"`
	Pending   *engine.PendingChange `json:"pending,omitempty"`
	CanUndo   bool                  `json:"canUndo"`
	CanRedo   bool                  `json:"canRedo"`
}

func (s *Server) writeResult(w http.ResponseWriter, res engine.Result) {
	writeJSON(w, http.StatusOK, opResponse{
		Committed: res.Committed,
		Notice:    res.Notice,
		Pending:   res.Pending,
		CanUndo:   s.eng.CanUndo(),
		CanRedo:   s.eng.CanRedo(),
	})
}

// identityQuestion is the 409 payload for the two inline identity flows:
// same name with a different DNI on save, same DNI on patient edit.
type identityQuestion struct {
	Question string        `json:"question"`
	Match    model.Patient `json:"match"`
}

type saveRequest struct {
	Patient     model.Patient     `json:"patient"`
	Appointment model.Appointment `json:"appointment"`
	Weekdays    []int             `json:"weekdays,omitempty"`
	Weeks       int               `json:"weeks,omitempty"`
	// Force skips the identity pre-check after the user has decided to
	// treat the record as a genuinely new patient.
	Force bool `json:"force,omitempty"`
}

func (s *Server) handleSaveAppointment(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Appointment.Date == "" || req.Appointment.Time == "" {
		writeError(w, http.StatusBadRequest, "appointment date and time are required")
		return
	}

	if !req.Force {
		if match, ok := s.eng.FindNameClash(req.Patient.Name, req.Patient.DNI, req.Patient.ID); ok {
			writeJSON(w, http.StatusConflict, identityQuestion{Question: "name-clash", Match: match})
			return
		}
	}

	var res engine.Result
	if len(req.Weekdays) > 0 {
		res = s.eng.SaveRecurring(req.Patient, req.Appointment, toWeekdays(req.Weekdays), req.Weeks)
	} else {
		res = s.eng.SaveSingle(req.Patient, req.Appointment)
	}
	s.writeResult(w, res)
}

func (s *Server) handleEditAppointment(w http.ResponseWriter, r *http.Request) {
	var ap model.Appointment
	if !decodeBody(w, r, &ap) {
		return
	}
	ap.ID = r.PathValue("id")
	s.writeResult(w, s.eng.EditAppointment(ap))
}

func (s *Server) handlePedido(w http.ResponseWriter, r *http.Request) {
	var status *model.PedidoStatus
	if !decodeBody(w, r, &status) {
		return
	}
	s.writeResult(w, s.eng.SetPedido(r.PathValue("id"), status))
}

// opRequest is the shared body of the patient-scoped bulk operations.
type opRequest struct {
	PatientID string `json:"patientId"`
	Date      string `json:"date"`
}

func (s *Server) opHandler(op func(patientID, date string) engine.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req opRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.PatientID == "" || req.Date == "" {
			writeError(w, http.StatusBadRequest, "patientId and date are required")
			return
		}
		s.writeResult(w, op(req.PatientID, req.Date))
	}
}

type pendingRequest struct {
	Accept bool `json:"accept"`
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.writeResult(w, s.eng.Resolve(r.PathValue("id"), req.Accept))
}

func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request) {
	s.writeResult(w, s.eng.Undo())
}

func (s *Server) handleRedo(w http.ResponseWriter, _ *http.Request) {
	s.writeResult(w, s.eng.Redo())
}

type updatePatientRequest struct {
	Patient model.Patient `json:"patient"`
	Force   bool          `json:"force,omitempty"`
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var req updatePatientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Patient.ID = r.PathValue("id")

	if !req.Force {
		if match, ok := s.eng.FindDNIMatch(req.Patient.DNI, req.Patient.ID); ok {
			writeJSON(w, http.StatusConflict, identityQuestion{Question: "dni-match", Match: match})
			return
		}
	}
	s.writeResult(w, s.eng.UpdatePatient(req.Patient))
}

type unifyRequest struct {
	KeepID   string `json:"keepId"`
	RemoveID string `json:"removeId"`
}

func (s *Server) handleUnify(w http.ResponseWriter, r *http.Request) {
	var req unifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.writeResult(w, s.eng.Unify(req.KeepID, req.RemoveID))
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	s.writeResult(w, s.eng.DeletePatient(r.PathValue("id")))
}

func (s *Server) handleExportPatients(w http.ResponseWriter, _ *http.Request) {
	data, err := export.PatientsJSON(s.eng.State())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	serveDownload(w, "patients.json", "application/json", data)
}

func (s *Server) handleExportAppointments(w http.ResponseWriter, _ *http.Request) {
	data, err := export.AppointmentsJSON(s.eng.State())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	serveDownload(w, "appointments.json", "application/json", data)
}

func (s *Server) handleExportICS(w http.ResponseWriter, _ *http.Request) {
	data, err := export.ICS(s.eng.State(), s.loc)
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	serveDownload(w, "turnero.ics", "text/calendar; charset=utf-8", data)
}

func (s *Server) handleImportPatients(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	patients, err := export.ParsePatients(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeResult(w, s.eng.ImportPatients(patients))
}

func (s *Server) handleImportAppointments(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	appointments, err := export.ParseAppointments(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeResult(w, s.eng.ImportAppointments(appointments))
}

type assistantRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.assist == nil {
		writeError(w, http.StatusServiceUnavailable, assistant.ErrNotConfigured.Error())
		return
	}
	answer, err := s.assist.Ask(r.Context(), s.eng.State(), req.Question)
	if err != nil {
		appLog.Error("assistant call failed", err)
		status := http.StatusBadGateway
		if errors.Is(err, assistant.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// StartServer serves the API on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, eng *engine.Engine, st *store.Store, assist *assistant.Client) error {
	s := NewServer(cfg, eng, st, assist)
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func toWeekdays(days []int) []time.Weekday {
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 {
			out = append(out, time.Weekday(d))
		}
	}
	return out
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, store.LogicalBudgetBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}
	return data, true
}

func serveDownload(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
