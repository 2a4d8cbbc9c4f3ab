package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careops/hospital-backend/internal/auth"
	"github.com/careops/hospital-backend/internal/metrics"
	"github.com/careops/hospital-backend/internal/models"
	"github.com/careops/hospital-backend/internal/repository"
	"github.com/careops/hospital-backend/pkg/logger"
)

// SessionStore is the persistence the manager needs for credential sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.CredentialSession) error
	ByID(ctx context.Context, id uuid.UUID) (*models.CredentialSession, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

// ActivityStore appends audit records.
type ActivityStore interface {
	Record(ctx context.Context, activity *models.UserActivity) error
}

// UserStore resolves users during login and refresh.
type UserStore interface {
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ClientInfo carries per-login client metadata, passed explicitly rather
// than read from ambient request state.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service issues, refreshes, verifies, and revokes signed credentials, and
// keeps the session and activity bookkeeping.
type Service struct {
	users      UserStore
	sessions   SessionStore
	activity   ActivityStore
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        zerolog.Logger
}

// NewService creates a session manager
func NewService(users UserStore, sessions SessionStore, activity ActivityStore, secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		activity:   activity,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        logger.Component("session"),
	}
}

// Login verifies credentials and mints an access/refresh token pair backed
// by a new credential session. Exactly one activity record is written per
// attempt. Failures are indistinguishable between unknown identifier and
// wrong secret.
func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (*TokenPair, *models.User, error) {
	user, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordActivity(ctx, uuid.Nil, models.ActionLogin, models.OutcomeFailure, "unknown identifier", client)
			metrics.LoginsTotal.WithLabelValues(models.OutcomeFailure).Inc()
			return nil, nil, &AuthenticationError{}
		}
		return nil, nil, fmt.Errorf("resolve user: %w", err)
	}

	if !user.IsActive || !auth.CheckPassword(user.PasswordHash, password) {
		s.recordActivity(ctx, user.ID, models.ActionLogin, models.OutcomeFailure, "credential verification failed", client)
		metrics.LoginsTotal.WithLabelValues(models.OutcomeFailure).Inc()
		return nil, nil, &AuthenticationError{}
	}

	now := time.Now().UTC()
	sess := &models.CredentialSession{
		ID:        uuid.New(),
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	access, err := auth.MintAccessToken(user.ID, user.Role, s.secret, s.accessTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := auth.MintRefreshToken(user.ID, sess.ID, s.secret, s.refreshTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("mint refresh token: %w", err)
	}

	s.recordActivity(ctx, user.ID, models.ActionLogin, models.OutcomeSuccess, "", client)
	metrics.LoginsTotal.WithLabelValues(models.OutcomeSuccess).Inc()

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, user, nil
}

// Refresh exchanges a valid refresh token for a new access token. A revoked,
// expired, or unknown session fails with *InvalidTokenError, which also
// covers replay of a blacklisted token. The refresh token is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, sid, err := auth.ParseRefreshToken(refreshToken, s.secret)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(models.OutcomeFailure).Inc()
		return "", &InvalidTokenError{Reason: "bad signature or expiry"}
	}

	sess, err := s.sessions.ByID(ctx, sid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.TokenRefreshesTotal.WithLabelValues(models.OutcomeFailure).Inc()
			return "", &InvalidTokenError{Reason: "unknown session"}
		}
		return "", fmt.Errorf("load session: %w", err)
	}
	if sess.Revoked || sess.Expired(time.Now().UTC()) || sess.UserID != claims.UserID {
		metrics.TokenRefreshesTotal.WithLabelValues(models.OutcomeFailure).Inc()
		return "", &InvalidTokenError{Reason: "session revoked or expired"}
	}

	user, err := s.users.ByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.TokenRefreshesTotal.WithLabelValues(models.OutcomeFailure).Inc()
			return "", &InvalidTokenError{Reason: "user gone"}
		}
		return "", fmt.Errorf("resolve user: %w", err)
	}
	if !user.IsActive {
		metrics.TokenRefreshesTotal.WithLabelValues(models.OutcomeFailure).Inc()
		return "", &InvalidTokenError{Reason: "user inactive"}
	}

	access, err := auth.MintAccessToken(user.ID, user.Role, s.secret, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("mint access token: %w", err)
	}

	metrics.TokenRefreshesTotal.WithLabelValues(models.OutcomeSuccess).Inc()
	return access, nil
}

// Logout revokes the session behind a refresh token. Revoking an already
// revoked session still succeeds; later Refresh calls with the token fail.
// Access tokens minted before logout stay valid until their natural expiry;
// Verify never consults the session table.
func (s *Service) Logout(ctx context.Context, refreshToken string, client ClientInfo) error {
	claims, sid, err := auth.ParseRefreshToken(refreshToken, s.secret)
	if err != nil {
		return &InvalidTokenError{Reason: "bad signature or expiry"}
	}

	if err := s.sessions.Revoke(ctx, sid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &InvalidTokenError{Reason: "unknown session"}
		}
		return fmt.Errorf("revoke session: %w", err)
	}

	s.recordActivity(ctx, claims.UserID, models.ActionLogout, models.OutcomeSuccess, "", client)
	return nil
}

// Verify is a pure signature and expiry check plus claim extraction. No
// session lookup happens here.
func (s *Service) Verify(accessToken string) (*auth.AccessClaims, error) {
	claims, err := auth.ParseAccessToken(accessToken, s.secret)
	if err != nil {
		return nil, &InvalidTokenError{Reason: "bad signature or expiry"}
	}
	return claims, nil
}

// recordActivity appends an audit record; audit failures are logged but do
// not fail the surrounding operation.
func (s *Service) recordActivity(ctx context.Context, userID uuid.UUID, action, outcome, description string, client ClientInfo) {
	entry := &models.UserActivity{
		UserID:      userID,
		Action:      action,
		Outcome:     outcome,
		Description: description,
		IPAddress:   client.IPAddress,
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("Failed to record activity")
	}
}
