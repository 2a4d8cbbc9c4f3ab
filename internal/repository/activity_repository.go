package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/careops/hospital-backend/internal/database"
	"github.com/careops/hospital-backend/internal/models"
)

// ActivityRepository handles the append-only user activity audit trail
type ActivityRepository struct{}

// NewActivityRepository creates a new activity repository
func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{}
}

// Record appends an activity entry
func (r *ActivityRepository) Record(ctx context.Context, activity *models.UserActivity) error {
	if err := database.DB.WithContext(ctx).Create(activity).Error; err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ListForUser retrieves a user's activity, newest first
func (r *ActivityRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.UserActivity, error) {
	var activities []models.UserActivity
	query := database.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return activities, nil
}
