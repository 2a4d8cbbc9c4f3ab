package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careops/hospital-backend/internal/cache"
	"github.com/careops/hospital-backend/internal/metrics"
	"github.com/careops/hospital-backend/internal/models"
	"github.com/careops/hospital-backend/internal/notify"
	"github.com/careops/hospital-backend/internal/repository"
	"github.com/careops/hospital-backend/pkg/logger"
)

const minutesPerDay = 24 * 60

// AppointmentStore is the persistence the engine needs for appointments.
// Insert must perform the conflict re-check and the insert atomically and
// return repository.ErrConflict when the slot race is lost.
type AppointmentStore interface {
	Insert(ctx context.Context, appt *models.Appointment) error
	ByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	ActiveForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]models.Appointment, error)
	ListForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]models.Appointment, error)
	UpdateStatus(ctx context.Context, appt *models.Appointment, expect models.AppointmentStatus) error
}

// AvailabilityStore provides the doctor's declared weekly windows.
type AvailabilityStore interface {
	ActiveWindows(ctx context.Context, doctorID uuid.UUID, weekday int) ([]models.DoctorAvailability, error)
}

// DoctorDirectory resolves active doctors.
type DoctorDirectory interface {
	ActiveDoctor(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Actor identifies who is performing an operation. Identity is always passed
// explicitly; the engine never reads ambient request state.
type Actor struct {
	UserID uuid.UUID
	Role   models.Role
}

// Request describes a booking attempt.
type Request struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	Date            time.Time
	StartMinute     int
	DurationMinutes int
	Reason          string
}

// Service is the booking engine. It validates requests against declared
// availability, delegates the race-safe insert to the store, and publishes
// notifications fire-and-forget.
type Service struct {
	appts    AppointmentStore
	windows  AvailabilityStore
	doctors  DoctorDirectory
	cache    cache.Cache
	notifier notify.Notifier
	slotTTL  time.Duration
	log      zerolog.Logger
}

// NewService creates a booking engine
func NewService(
	appts AppointmentStore,
	windows AvailabilityStore,
	doctors DoctorDirectory,
	slotCache cache.Cache,
	notifier notify.Notifier,
	slotTTL time.Duration,
) *Service {
	return &Service{
		appts:    appts,
		windows:  windows,
		doctors:  doctors,
		cache:    slotCache,
		notifier: notifier,
		slotTTL:  slotTTL,
		log:      logger.Component("booking"),
	}
}

// Book validates and persists an appointment request. It fails with
// *ValidationError for malformed input, *AvailabilityError when no active
// window covers the interval, and *ConflictError when the slot is taken.
func (s *Service) Book(ctx context.Context, req Request, actor Actor) (*models.Appointment, error) {
	if err := req.validate(); err != nil {
		metrics.BookingsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}
	date := dayOf(req.Date)
	requested := Interval{Start: req.StartMinute, End: req.StartMinute + req.DurationMinutes}

	if _, err := s.doctors.ActiveDoctor(ctx, req.DoctorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.BookingsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
			return nil, &ValidationError{Field: "doctor_id", Reason: "unknown or inactive doctor"}
		}
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}

	windows, err := s.windows.ActiveWindows(ctx, req.DoctorID, weekdayOf(date))
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	if !covered(windows, requested) {
		metrics.BookingsTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		return nil, &AvailabilityError{DoctorID: req.DoctorID, Date: date, Requested: requested}
	}

	appt := &models.Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		Date:            date,
		StartMinute:     req.StartMinute,
		DurationMinutes: req.DurationMinutes,
		Status:          models.StatusScheduled,
		Reason:          req.Reason,
		CreatedBy:       actor.UserID,
	}

	if err := s.appts.Insert(ctx, appt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.BookingsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
			return nil, &ConflictError{DoctorID: req.DoctorID, Date: date, Requested: requested}
		}
		if errors.Is(err, repository.ErrNotFound) {
			metrics.BookingsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
			return nil, &ValidationError{Field: "doctor_id", Reason: "unknown or inactive doctor"}
		}
		metrics.BookingsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("persist appointment: %w", err)
	}

	metrics.BookingsTotal.WithLabelValues(metrics.OutcomeBooked).Inc()
	s.invalidateSlots(ctx, appt.DoctorID, date)
	s.publish(ctx, notify.KeyAppointmentBooked, appt)

	return appt, nil
}

// Transition moves an appointment along the state machine:
// scheduled -> {completed, cancelled, no_show}; all three targets are
// terminal. Timing cutoffs for cancellation are a caller-side policy and are
// not enforced here.
func (s *Service) Transition(ctx context.Context, appointmentID uuid.UUID, newStatus models.AppointmentStatus, actor Actor, reason string) (*models.Appointment, error) {
	appt, err := s.appts.ByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ValidationError{Field: "appointment_id", Reason: "unknown appointment"}
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := allowTransition(appt.Status, newStatus); err != nil {
		return nil, err
	}
	if err := allowActor(appt, newStatus, actor); err != nil {
		return nil, err
	}

	from := appt.Status
	now := time.Now().UTC()
	appt.Status = newStatus
	switch newStatus {
	case models.StatusCompleted:
		appt.CompletedAt = &now
	case models.StatusNoShow:
		appt.NoShowAt = &now
	case models.StatusCancelled:
		appt.CancelledAt = &now
		appt.CancellationReason = reason
		appt.CancelledBy = string(actor.Role)
	}

	if err := s.appts.UpdateStatus(ctx, appt, from); err != nil {
		if errors.Is(err, repository.ErrStale) {
			// someone else closed it first; re-read for an accurate error
			current, rerr := s.appts.ByID(ctx, appointmentID)
			if rerr == nil {
				return nil, &InvalidTransitionError{From: current.Status, To: newStatus}
			}
			return nil, &InvalidTransitionError{From: from, To: newStatus}
		}
		return nil, fmt.Errorf("persist transition: %w", err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(newStatus)).Inc()
	s.invalidateSlots(ctx, appt.DoctorID, appt.Date)
	s.publish(ctx, transitionKey(newStatus), appt)

	return appt, nil
}

// CheckAvailability returns the doctor's free intervals for a date: declared
// windows minus booked intervals, pairwise disjoint, ordered by start. Pure
// apart from the read-through slot cache.
func (s *Service) CheckAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Interval, error) {
	date = dayOf(date)

	if s.cache != nil {
		if b, err := s.cache.Get(ctx, cache.SlotKey(doctorID, date)); err == nil {
			var free []Interval
			if json.Unmarshal(b, &free) == nil {
				metrics.SlotCacheHits.WithLabelValues("hit").Inc()
				return free, nil
			}
		}
		metrics.SlotCacheHits.WithLabelValues("miss").Inc()
	}

	if _, err := s.doctors.ActiveDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ValidationError{Field: "doctor_id", Reason: "unknown or inactive doctor"}
		}
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}

	windows, err := s.windows.ActiveWindows(ctx, doctorID, weekdayOf(date))
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	appts, err := s.appts.ActiveForDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	declared := make([]Interval, 0, len(windows))
	for _, w := range windows {
		declared = append(declared, Interval{Start: w.StartMinute, End: w.EndMinute})
	}
	busy := make([]Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, Interval{Start: a.StartMinute, End: a.EndMinute()})
	}

	free := Subtract(declared, busy)

	if s.cache != nil {
		if b, err := json.Marshal(free); err == nil {
			_ = s.cache.Set(ctx, cache.SlotKey(doctorID, date), b, s.slotTTL)
		}
	}
	return free, nil
}

// Get loads an appointment, allowing the owning patient, the owning doctor,
// and staff.
func (s *Service) Get(ctx context.Context, appointmentID uuid.UUID, actor Actor) (*models.Appointment, error) {
	appt, err := s.appts.ByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ValidationError{Field: "appointment_id", Reason: "unknown appointment"}
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if actor.Role.Staff() ||
		(actor.Role == models.RoleDoctor && actor.UserID == appt.DoctorID) ||
		(actor.Role == models.RolePatient && actor.UserID == appt.PatientID) {
		return appt, nil
	}
	return nil, &PermissionError{Action: "view"}
}

// ListForDoctorDate returns all of a doctor's appointments on a day,
// ordered by start time.
func (s *Service) ListForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]models.Appointment, error) {
	appts, err := s.appts.ListForDoctorDate(ctx, doctorID, dayOf(date))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (r *Request) validate() error {
	if r.PatientID == uuid.Nil {
		return &ValidationError{Field: "patient_id", Reason: "required"}
	}
	if r.DoctorID == uuid.Nil {
		return &ValidationError{Field: "doctor_id", Reason: "required"}
	}
	if r.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration_minutes", Reason: "must be positive"}
	}
	if r.StartMinute < 0 || r.StartMinute >= minutesPerDay {
		return &ValidationError{Field: "start_minute", Reason: "outside the day"}
	}
	if r.StartMinute+r.DurationMinutes > minutesPerDay {
		return &ValidationError{Field: "duration_minutes", Reason: "extends past midnight"}
	}
	if r.Reason == "" {
		return &ValidationError{Field: "reason", Reason: "required"}
	}
	if dayOf(r.Date).Before(dayOf(time.Now())) {
		return &ValidationError{Field: "date", Reason: "cannot book in the past"}
	}
	return nil
}

func allowTransition(from, to models.AppointmentStatus) error {
	if from.Terminal() {
		return &InvalidTransitionError{From: from, To: to}
	}
	switch to {
	case models.StatusCompleted, models.StatusCancelled, models.StatusNoShow:
		return nil
	}
	return &InvalidTransitionError{From: from, To: to}
}

// allowActor enforces who may drive which edge: the owning doctor or an
// admin closes visits; the owning patient or staff cancels.
func allowActor(appt *models.Appointment, to models.AppointmentStatus, actor Actor) error {
	switch to {
	case models.StatusCompleted, models.StatusNoShow:
		if actor.Role == models.RoleAdmin {
			return nil
		}
		if actor.Role == models.RoleDoctor && actor.UserID == appt.DoctorID {
			return nil
		}
		return &PermissionError{Action: "close"}
	case models.StatusCancelled:
		if actor.Role.Staff() || actor.Role == models.RoleDoctor {
			return nil
		}
		if actor.Role == models.RolePatient && actor.UserID == appt.PatientID {
			return nil
		}
		return &PermissionError{Action: "cancel"}
	}
	return &PermissionError{Action: "transition"}
}

func covered(windows []models.DoctorAvailability, requested Interval) bool {
	for _, w := range windows {
		if (Interval{Start: w.StartMinute, End: w.EndMinute}).Contains(requested) {
			return true
		}
	}
	return false
}

func transitionKey(status models.AppointmentStatus) string {
	switch status {
	case models.StatusCompleted:
		return notify.KeyAppointmentCompleted
	case models.StatusNoShow:
		return notify.KeyAppointmentNoShow
	default:
		return notify.KeyAppointmentCancelled
	}
}

func (s *Service) invalidateSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.SlotKey(doctorID, date)); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate slot cache")
	}
}

// publish dispatches a notification without affecting the caller's result.
func (s *Service) publish(ctx context.Context, key string, appt *models.Appointment) {
	if s.notifier == nil {
		return
	}
	event := map[string]any{
		"appointment_id":     appt.ID,
		"appointment_number": appt.AppointmentNumber,
		"patient_id":         appt.PatientID,
		"doctor_id":          appt.DoctorID,
		"date":               appt.Date.Format("2006-01-02"),
		"start_minute":       appt.StartMinute,
		"duration_minutes":   appt.DurationMinutes,
		"status":             appt.Status,
	}
	if err := s.notifier.Publish(ctx, key, event); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to publish notification")
	}
}

// dayOf truncates to UTC midnight.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekdayOf maps to 0=Monday..6=Sunday.
func weekdayOf(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
