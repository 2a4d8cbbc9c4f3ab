package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/careops/hospital-backend/internal/database"
	"github.com/careops/hospital-backend/internal/models"
)

// SessionRepository handles credential session database operations
type SessionRepository struct{}

// NewSessionRepository creates a new session repository
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

// Create persists a new credential session
func (r *SessionRepository) Create(ctx context.Context, session *models.CredentialSession) error {
	if err := database.DB.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// ByID retrieves a session by its identifier (the refresh token jti)
func (r *SessionRepository) ByID(ctx context.Context, id uuid.UUID) (*models.CredentialSession, error) {
	var session models.CredentialSession
	if err := database.DB.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// Revoke marks a session revoked. Revoking an already revoked session is a
// no-op; revoking a missing session returns ErrNotFound.
func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res := database.DB.WithContext(ctx).
		Model(&models.CredentialSession{}).
		Where("id = ? AND revoked = ?", id, false).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": &now})
	if res.Error != nil {
		return fmt.Errorf("failed to revoke session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// already revoked is fine; missing is not
		var count int64
		if err := database.DB.WithContext(ctx).
			Model(&models.CredentialSession{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// RevokeAllForUser revokes every open session a user holds
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	now := time.Now().UTC()
	if err := database.DB.WithContext(ctx).
		Model(&models.CredentialSession{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": &now}).
		Error; err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}
