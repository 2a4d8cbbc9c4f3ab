package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/careops/hospital-backend/internal/database"
	"github.com/careops/hospital-backend/internal/models"
)

// AppointmentRepository handles appointment database operations
type AppointmentRepository struct{}

// NewAppointmentRepository creates a new appointment repository
func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{}
}

// Insert persists a new scheduled appointment. The transaction first takes a
// FOR UPDATE lock on the doctor row, so the conflict check and the insert run
// as one critical section per doctor even when the slot is empty and the
// overlap query matches no rows. Concurrent bookings for the same slot
// serialize on that lock and exactly one wins; the loser gets ErrConflict.
func (r *AppointmentRepository) Insert(ctx context.Context, appt *models.Appointment) error {
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doctor models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&doctor, "id = ?", appt.DoctorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock doctor row: %w", err)
		}

		var existing models.Appointment
		err := tx.Model(&models.Appointment{}).
			Where("doctor_id = ? AND date = ? AND status = ?",
				appt.DoctorID, appt.Date, models.StatusScheduled).
			Where("start_minute < ? AND start_minute + duration_minutes > ?",
				appt.EndMinute(), appt.StartMinute).
			Take(&existing).Error

		if err == nil {
			return ErrConflict
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check for conflicts: %w", err)
		}

		return tx.Create(appt).Error
	})
	if err != nil && !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return err
}

// ByID retrieves an appointment by its identifier
func (r *AppointmentRepository) ByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appt models.Appointment
	if err := database.DB.WithContext(ctx).First(&appt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

// ActiveForDoctorDate returns the doctor's scheduled appointments on a day,
// ordered by start time. Cancelled and otherwise closed appointments do not
// block slots.
func (r *AppointmentRepository) ActiveForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]models.Appointment, error) {
	var appts []models.Appointment
	if err := database.DB.WithContext(ctx).
		Where("doctor_id = ? AND date = ? AND status = ?", doctorID, date, models.StatusScheduled).
		Order("start_minute ASC").
		Find(&appts).Error; err != nil {
		return nil, fmt.Errorf("failed to list active appointments: %w", err)
	}
	return appts, nil
}

// ListForDoctorDate returns all appointments for a doctor on a day,
// regardless of status, ordered by start time.
func (r *AppointmentRepository) ListForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]models.Appointment, error) {
	var appts []models.Appointment
	if err := database.DB.WithContext(ctx).
		Where("doctor_id = ? AND date = ?", doctorID, date).
		Order("start_minute ASC").
		Find(&appts).Error; err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}

// UpdateStatus persists a status transition guarded by the expected current
// status. If another transition got there first the update matches no rows
// and ErrStale is returned.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, appt *models.Appointment, expect models.AppointmentStatus) error {
	res := database.DB.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status = ?", appt.ID, expect).
		Updates(map[string]interface{}{
			"status":              appt.Status,
			"completed_at":        appt.CompletedAt,
			"no_show_at":          appt.NoShowAt,
			"cancelled_at":        appt.CancelledAt,
			"cancellation_reason": appt.CancellationReason,
			"cancelled_by":        appt.CancelledBy,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update appointment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}
