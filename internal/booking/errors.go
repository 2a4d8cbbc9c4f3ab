package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careops/hospital-backend/internal/models"
)

// ValidationError reports malformed or out-of-range input. The caller can
// recover by correcting the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AvailabilityError reports that no active availability window covers the
// requested interval.
type AvailabilityError struct {
	DoctorID  uuid.UUID
	Date      time.Time
	Requested Interval
}

func (e *AvailabilityError) Error() string {
	return fmt.Sprintf("doctor %s has no availability covering %s on %s",
		e.DoctorID, e.Requested, e.Date.Format("2006-01-02"))
}

// ConflictError reports that the requested slot intersects an existing
// non-cancelled appointment.
type ConflictError struct {
	DoctorID  uuid.UUID
	Date      time.Time
	Requested Interval
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s on %s is already taken for doctor %s",
		e.Requested, e.Date.Format("2006-01-02"), e.DoctorID)
}

// InvalidTransitionError reports an illegal appointment state-machine edge.
type InvalidTransitionError struct {
	From models.AppointmentStatus
	To   models.AppointmentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition appointment from %s to %s", e.From, e.To)
}

// PermissionError reports that the acting user may not perform the
// transition on this appointment.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("actor is not allowed to %s this appointment", e.Action)
}
