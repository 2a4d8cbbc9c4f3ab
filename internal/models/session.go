package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CredentialSession represents one issued access/refresh token pair. Its ID
// doubles as the refresh token's jti claim, so a session lookup by jti is a
// primary-key read. A revoked session must never again yield an access token.
type CredentialSession struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	IssuedAt  time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	Revoked   bool       `gorm:"default:false" json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	IPAddress string     `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent string     `gorm:"type:text" json:"user_agent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (CredentialSession) TableName() string {
	return "credential_sessions"
}

// Expired reports whether the session's configured lifetime has elapsed.
func (s *CredentialSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Activity action types
const (
	ActionLogin   = "login"
	ActionLogout  = "logout"
	ActionRefresh = "refresh"
)

// Activity outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// UserActivity is an append-only audit record of authentication-relevant
// actions. It is never mutated or deleted during normal operation.
type UserActivity struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;index:idx_activity_user_time,priority:1" json:"user_id"`
	Action      string    `gorm:"type:varchar(20);not null;index" json:"action"`
	Outcome     string    `gorm:"type:varchar(20);not null" json:"outcome"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	IPAddress   string    `gorm:"type:varchar(45)" json:"ip_address"`
	CreatedAt   time.Time `gorm:"index:idx_activity_user_time,priority:2" json:"timestamp"`
}

// TableName overrides the table name
func (UserActivity) TableName() string {
	return "user_activities"
}

// BeforeCreate hook
func (a *UserActivity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
