package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/careops/hospital-backend/internal/models"
)

// ErrBadToken covers malformed, expired, or wrongly signed tokens.
var ErrBadToken = errors.New("invalid token")

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword reports whether pw matches the stored hash.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// AccessClaims are carried by short-lived access tokens. They authorize
// individual API calls and are never checked against the session table.
type AccessClaims struct {
	UserID uuid.UUID   `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by long-lived refresh tokens. The registered ID
// (jti) is the credential session identifier.
type RefreshClaims struct {
	UserID uuid.UUID `json:"uid"`
	jwt.RegisteredClaims
}

// MintAccessToken signs a short-lived access token carrying identity and
// role claims.
func MintAccessToken(userID uuid.UUID, role models.Role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := AccessClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// MintRefreshToken signs a long-lived refresh token whose jti ties it to a
// revocable credential session.
func MintRefreshToken(userID, sessionID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// ParseAccessToken verifies signature and expiry and extracts the claims.
func ParseAccessToken(raw, secret string) (*AccessClaims, error) {
	tok, err := jwt.ParseWithClaims(raw, &AccessClaims{}, keyFunc(secret))
	if err != nil {
		return nil, ErrBadToken
	}
	c, ok := tok.Claims.(*AccessClaims)
	if !ok || !tok.Valid {
		return nil, ErrBadToken
	}
	return c, nil
}

// ParseRefreshToken verifies signature and expiry and returns the claims
// together with the embedded session identifier.
func ParseRefreshToken(raw, secret string) (*RefreshClaims, uuid.UUID, error) {
	tok, err := jwt.ParseWithClaims(raw, &RefreshClaims{}, keyFunc(secret))
	if err != nil {
		return nil, uuid.Nil, ErrBadToken
	}
	c, ok := tok.Claims.(*RefreshClaims)
	if !ok || !tok.Valid {
		return nil, uuid.Nil, ErrBadToken
	}
	sid, err := uuid.Parse(c.ID)
	if err != nil {
		return nil, uuid.Nil, ErrBadToken
	}
	return c, sid, nil
}

func keyFunc(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	}
}
