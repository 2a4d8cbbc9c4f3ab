package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/careops/hospital-backend/internal/booking"
	"github.com/careops/hospital-backend/internal/middleware"
	"github.com/careops/hospital-backend/internal/models"
)

// AppointmentHandler exposes the booking engine over HTTP
type AppointmentHandler struct {
	engine   *booking.Service
	validate *validator.Validate
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(engine *booking.Service) *AppointmentHandler {
	return &AppointmentHandler{
		engine:   engine,
		validate: validator.New(),
	}
}

type bookRequest struct {
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id" validate:"required,uuid"`
	Date            string `json:"date" validate:"required"`
	StartTime       string `json:"start_time" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	Reason          string `json:"reason" validate:"required"`
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

// Book creates a scheduled appointment. Patients can only book for
// themselves; staff may book on a patient's behalf.
func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid doctor_id"})
		return
	}
	date, err := parseDay(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	start, err := parseClock(req.StartTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	patientID := actor.UserID
	if actor.Role != models.RolePatient {
		patientID, err = uuid.Parse(req.PatientID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid patient_id"})
			return
		}
	}

	appt, err := h.engine.Book(r.Context(), booking.Request{
		PatientID:       patientID,
		DoctorID:        doctorID,
		Date:            date,
		StartMinute:     start,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
	}, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, apptView(appt))
}

// Get returns a single appointment, subject to ownership checks.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid appointment id"})
		return
	}

	appt, err := h.engine.Get(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apptView(appt))
}

// Cancel moves a scheduled appointment to cancelled.
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusCancelled)
}

// Complete moves a scheduled appointment to completed.
func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusCompleted)
}

// NoShow moves a scheduled appointment to no_show.
func (h *AppointmentHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusNoShow)
}

func (h *AppointmentHandler) transition(w http.ResponseWriter, r *http.Request, to models.AppointmentStatus) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid appointment id"})
		return
	}

	var req transitionRequest
	if r.Body != nil {
		// reason is optional except for cancellations
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if to == models.StatusCancelled && req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reason is required to cancel"})
		return
	}

	appt, err := h.engine.Transition(r.Context(), id, to, actor, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apptView(appt))
}

// List returns a doctor's appointments on a date, selected by the doctor_id
// and date query parameters. Staff and the doctor themselves only.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid doctor_id"})
		return
	}
	h.listForDoctor(w, r, doctorID)
}

// ListForDoctor is the path-parameter form of List.
func (h *AppointmentHandler) ListForDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid doctor id"})
		return
	}
	h.listForDoctor(w, r, doctorID)
}

func (h *AppointmentHandler) listForDoctor(w http.ResponseWriter, r *http.Request, doctorID uuid.UUID) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}
	if !actor.Role.Staff() && !(actor.Role == models.RoleDoctor && actor.UserID == doctorID) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}
	date, err := parseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	appts, err := h.engine.ListForDoctorDate(r.Context(), doctorID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]map[string]any, 0, len(appts))
	for i := range appts {
		views = append(views, apptView(&appts[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":         date.Format("2006-01-02"),
		"appointments": views,
	})
}

// Availability returns a doctor's free slots for a date.
func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid doctor id"})
		return
	}
	date, err := parseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	free, err := h.engine.CheckAvailability(r.Context(), doctorID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	slots := make([]map[string]string, 0, len(free))
	for _, iv := range free {
		slots = append(slots, map[string]string{
			"start": formatClock(iv.Start),
			"end":   formatClock(iv.End),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doctor_id": doctorID,
		"date":      date.Format("2006-01-02"),
		"free":      slots,
	})
}

func apptView(appt *models.Appointment) map[string]any {
	v := map[string]any{
		"id":                 appt.ID,
		"appointment_number": appt.AppointmentNumber,
		"patient_id":         appt.PatientID,
		"doctor_id":          appt.DoctorID,
		"date":               appt.Date.Format("2006-01-02"),
		"start_time":         formatClock(appt.StartMinute),
		"end_time":           formatClock(appt.EndMinute()),
		"duration_minutes":   appt.DurationMinutes,
		"status":             appt.Status,
		"reason":             appt.Reason,
	}
	if appt.Status == models.StatusCancelled {
		v["cancellation_reason"] = appt.CancellationReason
		v["cancelled_by"] = appt.CancelledBy
	}
	return v
}

func actorFrom(r *http.Request) (booking.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		return booking.Actor{}, false
	}
	return booking.Actor{UserID: user.UserID, Role: user.Role}, true
}
