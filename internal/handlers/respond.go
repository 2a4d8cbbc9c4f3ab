package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careops/hospital-backend/internal/booking"
	"github.com/careops/hospital-backend/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the error taxonomy onto HTTP status codes:
// 409 conflict and illegal transition, 422 availability, 400 validation,
// 401 authentication and token errors, 403 permission, 500 infrastructure.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		vErr    *booking.ValidationError
		avErr   *booking.AvailabilityError
		cErr    *booking.ConflictError
		trErr   *booking.InvalidTransitionError
		pErr    *booking.PermissionError
		authErr *session.AuthenticationError
		tokErr  *session.InvalidTokenError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Error()})
	case errors.As(err, &avErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: avErr.Error()})
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: cErr.Error()})
	case errors.As(err, &trErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: trErr.Error()})
	case errors.As(err, &pErr):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: pErr.Error()})
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
	case errors.As(err, &tokErr):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: tokErr.Error()})
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// formatClock renders minutes since midnight as "HH:MM".
func formatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// parseDay parses a "YYYY-MM-DD" date as UTC midnight.
func parseDay(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}
