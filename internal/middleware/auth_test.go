package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careops/hospital-backend/internal/auth"
	"github.com/careops/hospital-backend/internal/models"
	"github.com/careops/hospital-backend/internal/repository"
	"github.com/careops/hospital-backend/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type nilUserStore struct{}

func (nilUserStore) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, repository.ErrNotFound
}
func (nilUserStore) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, repository.ErrNotFound
}

type nilSessionStore struct{}

func (nilSessionStore) Create(ctx context.Context, s *models.CredentialSession) error { return nil }
func (nilSessionStore) ByID(ctx context.Context, id uuid.UUID) (*models.CredentialSession, error) {
	return nil, repository.ErrNotFound
}
func (nilSessionStore) Revoke(ctx context.Context, id uuid.UUID) error { return nil }

type nilActivityStore struct{}

func (nilActivityStore) Record(ctx context.Context, a *models.UserActivity) error { return nil }

func testSessions() *session.Service {
	return session.NewService(nilUserStore{}, nilSessionStore{}, nilActivityStore{}, testSecret, time.Minute, time.Hour)
}

func okHandler(t *testing.T, want uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			t.Error("identity missing from context")
		}
		if user.UserID != want {
			t.Errorf("user = %s, want %s", user.UserID, want)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthAcceptsValidToken(t *testing.T) {
	userID := uuid.New()
	raw, err := auth.MintAccessToken(userID, models.RoleDoctor, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("MintAccessToken failed: %v", err)
	}

	handler := Auth(testSessions())(okHandler(t, userID))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	handler := Auth(testSessions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	allowed := RequireRole(models.RoleAdmin, models.RoleDoctor)
	handler := allowed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	run := func(role models.Role) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := WithUser(req.Context(), UserContext{UserID: uuid.New(), Role: role})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		return rec.Code
	}

	if code := run(models.RoleDoctor); code != http.StatusOK {
		t.Errorf("doctor: status = %d, want 200", code)
	}
	if code := run(models.RolePatient); code != http.StatusForbidden {
		t.Errorf("patient: status = %d, want 403", code)
	}

	// no identity at all
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "198.51.100.4:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("burst requests got %v, want the first two to pass", codes)
	}
	if codes[3] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want the last request limited", codes)
	}

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.5:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh client: status = %d, want 200", rec.Code)
	}
}
