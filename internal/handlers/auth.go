package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/careops/hospital-backend/internal/middleware"
	"github.com/careops/hospital-backend/internal/repository"
	"github.com/careops/hospital-backend/internal/session"
)

// AuthHandler exposes the session manager over HTTP
type AuthHandler struct {
	sessions     *session.Service
	sessionRepo  *repository.SessionRepository
	activityRepo *repository.ActivityRepository
	validate     *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions *session.Service, sessionRepo *repository.SessionRepository, activityRepo *repository.ActivityRepository) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		sessionRepo:  sessionRepo,
		activityRepo: activityRepo,
		validate:     validator.New(),
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login verifies credentials and returns an access/refresh token pair
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	pair, user, err := h.sessions.Login(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"user": map[string]any{
			"id":        user.ID,
			"full_name": user.FullName,
			"role":      user.Role,
		},
	})
}

// Refresh exchanges a refresh token for a new access token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "refresh_token is required"})
		return
	}

	access, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

// Logout revokes the session behind a refresh token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "refresh_token is required"})
		return
	}

	if err := h.sessions.Logout(r.Context(), req.RefreshToken, clientInfo(r)); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the identity carried by the presented access token
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": user.UserID,
		"role":    user.Role,
	})
}

// LogoutAll revokes every open session the caller holds. Access tokens
// already issued run to their natural expiry.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}
	if err := h.sessionRepo.RevokeAllForUser(r.Context(), user.UserID); err != nil {
		log.Error().Err(err).Msg("Failed to revoke sessions")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out everywhere"})
}

// Activity returns the caller's recent audit trail, newest first.
func (h *AuthHandler) Activity(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	records, err := h.activityRepo.ListForUser(r.Context(), user.UserID, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list activity")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": records})
}

func clientInfo(r *http.Request) session.ClientInfo {
	return session.ClientInfo{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}
