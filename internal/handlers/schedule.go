package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careops/hospital-backend/internal/middleware"
	"github.com/careops/hospital-backend/internal/models"
	"github.com/careops/hospital-backend/internal/repository"
)

// ScheduleHandler manages doctors' declared weekly availability windows
type ScheduleHandler struct {
	windows *repository.AvailabilityRepository
	users   *repository.UserRepository
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(windows *repository.AvailabilityRepository, users *repository.UserRepository) *ScheduleHandler {
	return &ScheduleHandler{windows: windows, users: users}
}

type windowRequest struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  *bool  `json:"is_active"`
}

type scheduleRequest struct {
	Windows []windowRequest `json:"windows"`
}

// Get returns a doctor's full weekly schedule.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid doctor id"})
		return
	}

	windows, err := h.windows.WeeklyWindows(r.Context(), doctorID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load weekly windows")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	views := make([]map[string]any, 0, len(windows))
	for _, win := range windows {
		views = append(views, map[string]any{
			"weekday":    win.Weekday,
			"start_time": formatClock(win.StartMinute),
			"end_time":   formatClock(win.EndMinute),
			"is_active":  win.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doctor_id": doctorID,
		"windows":   views,
	})
}

// Put replaces a doctor's weekly schedule. Only the doctor themselves or an
// admin may change it.
func (h *ScheduleHandler) Put(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid doctor id"})
		return
	}
	if user.Role != models.RoleAdmin && user.UserID != doctorID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	if _, err := h.users.ActiveDoctor(r.Context(), doctorID); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown or inactive doctor"})
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	windows := make([]models.DoctorAvailability, 0, len(req.Windows))
	for _, win := range req.Windows {
		if win.Weekday < 0 || win.Weekday > 6 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "weekday must be 0 (Monday) through 6 (Sunday)"})
			return
		}
		start, err := parseClock(win.StartTime)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		end, err := parseClock(win.EndTime)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if end <= start {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "end_time must be after start_time"})
			return
		}
		active := true
		if win.IsActive != nil {
			active = *win.IsActive
		}
		windows = append(windows, models.DoctorAvailability{
			Weekday:     win.Weekday,
			StartMinute: start,
			EndMinute:   end,
			IsActive:    active,
		})
	}

	if err := h.windows.ReplaceWindows(r.Context(), doctorID, windows); err != nil {
		log.Error().Err(err).Msg("Failed to replace weekly windows")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doctor_id": doctorID,
		"windows":   len(windows),
	})
}
