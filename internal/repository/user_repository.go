package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/careops/hospital-backend/internal/database"
	"github.com/careops/hospital-backend/internal/models"
)

// UserRepository handles user database operations
type UserRepository struct{}

// NewUserRepository creates a new user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// Create persists a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := database.DB.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// ByEmail retrieves a user by email address
func (r *UserRepository) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := database.DB.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// ByID retrieves a user by identifier
func (r *UserRepository) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := database.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ActiveDoctor retrieves a user that is an active doctor, or ErrNotFound.
func (r *UserRepository) ActiveDoctor(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := database.DB.WithContext(ctx).
		First(&user, "id = ? AND role = ? AND is_active = ?", id, models.RoleDoctor, true).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &user, nil
}
