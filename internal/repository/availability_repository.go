package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/careops/hospital-backend/internal/database"
	"github.com/careops/hospital-backend/internal/models"
)

// AvailabilityRepository handles doctor availability window operations
type AvailabilityRepository struct{}

// NewAvailabilityRepository creates a new availability repository
func NewAvailabilityRepository() *AvailabilityRepository {
	return &AvailabilityRepository{}
}

// ActiveWindows returns the doctor's active windows for a weekday
// (0=Monday..6=Sunday), ordered by start time.
func (r *AvailabilityRepository) ActiveWindows(ctx context.Context, doctorID uuid.UUID, weekday int) ([]models.DoctorAvailability, error) {
	var windows []models.DoctorAvailability
	if err := database.DB.WithContext(ctx).
		Where("doctor_id = ? AND weekday = ? AND is_active = ?", doctorID, weekday, true).
		Order("start_minute ASC").
		Find(&windows).Error; err != nil {
		return nil, fmt.Errorf("failed to get availability windows: %w", err)
	}
	return windows, nil
}

// WeeklyWindows returns all of the doctor's windows ordered by weekday and
// start time.
func (r *AvailabilityRepository) WeeklyWindows(ctx context.Context, doctorID uuid.UUID) ([]models.DoctorAvailability, error) {
	var windows []models.DoctorAvailability
	if err := database.DB.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("weekday ASC, start_minute ASC").
		Find(&windows).Error; err != nil {
		return nil, fmt.Errorf("failed to get weekly windows: %w", err)
	}
	return windows, nil
}

// ReplaceWindows swaps the doctor's whole weekly schedule in one
// transaction.
func (r *AvailabilityRepository) ReplaceWindows(ctx context.Context, doctorID uuid.UUID, windows []models.DoctorAvailability) error {
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("doctor_id = ?", doctorID).
			Delete(&models.DoctorAvailability{}).Error; err != nil {
			return err
		}
		for i := range windows {
			windows[i].DoctorID = doctorID
			if err := tx.Create(&windows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace availability windows: %w", err)
	}
	return nil
}
