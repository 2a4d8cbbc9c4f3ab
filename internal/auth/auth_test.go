package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/careops/hospital-backend/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	raw, err := MintAccessToken(userID, models.RoleNurse, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("MintAccessToken failed: %v", err)
	}

	claims, err := ParseAccessToken(raw, testSecret)
	if err != nil {
		t.Fatalf("ParseAccessToken failed: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %s, want %s", claims.UserID, userID)
	}
	if claims.Role != models.RoleNurse {
		t.Errorf("Role = %s, want nurse", claims.Role)
	}
}

func TestRefreshTokenCarriesSessionID(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	raw, err := MintRefreshToken(userID, sessionID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("MintRefreshToken failed: %v", err)
	}

	claims, sid, err := ParseRefreshToken(raw, testSecret)
	if err != nil {
		t.Fatalf("ParseRefreshToken failed: %v", err)
	}
	if sid != sessionID {
		t.Errorf("session ID = %s, want %s", sid, sessionID)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %s, want %s", claims.UserID, userID)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	raw, err := MintAccessToken(uuid.New(), models.RoleAdmin, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("MintAccessToken failed: %v", err)
	}
	if _, err := ParseAccessToken(raw, testSecret); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	raw, err := MintAccessToken(uuid.New(), models.RoleAdmin, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("MintAccessToken failed: %v", err)
	}
	if _, err := ParseAccessToken(raw, "another-secret-another-secret-xx"); err == nil {
		t.Fatal("token signed with a different secret was accepted")
	}
}

func TestUnsignedTokenRejected(t *testing.T) {
	c := AccessClaims{
		UserID: uuid.New(),
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing with none failed: %v", err)
	}
	if _, err := ParseAccessToken(raw, testSecret); err == nil {
		t.Fatal("alg=none token was accepted")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !CheckPassword(hash, "s3cret") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}
