package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jemi-ng/pickup-backend/pkg/config"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "jemi"}

func TestSignAndParseAccessToken(t *testing.T) {
	userID := uuid.New()
	token, err := SignAccessToken(testJWT, AccessTokenClaims{UserID: userID, Role: enums.RoleAdmin}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}

	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.RoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != testJWT.Issuer {
		t.Fatalf("issuer mismatch: %s", claims.Issuer)
	}
}

func TestParseAccessTokenDefaultsUnknownRoleToCustomer(t *testing.T) {
	token, err := SignAccessToken(testJWT, AccessTokenClaims{UserID: uuid.New(), Role: "superuser"}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.RoleCustomer {
		t.Fatalf("expected customer role, got %s", claims.Role)
	}
}

func TestParseAccessTokenRejections(t *testing.T) {
	now := time.Now()
	expired, _ := SignAccessToken(testJWT, AccessTokenClaims{UserID: uuid.New()}, time.Minute, now.Add(-time.Hour))
	wrongIssuer, _ := SignAccessToken(config.JWTConfig{Secret: "secret", Issuer: "someone-else"}, AccessTokenClaims{UserID: uuid.New()}, time.Hour, now)
	wrongSecret, _ := SignAccessToken(config.JWTConfig{Secret: "other", Issuer: "jemi"}, AccessTokenClaims{UserID: uuid.New()}, time.Hour, now)
	noUser, _ := SignAccessToken(testJWT, AccessTokenClaims{}, time.Hour, now)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		UserID:           uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "jemi"},
	}).SignedString([]byte("secret"))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessTokenClaims{
		UserID:           uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "jemi", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString([]byte("secret"))

	cases := map[string]string{
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"wrong secret": wrongSecret,
		"no user":      noUser,
		"no expiry":    noExpiry,
		"hs512":        hs512,
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAccessToken(testJWT, token); err == nil {
				t.Fatalf("expected %s token to be rejected", name)
			}
		})
	}
}

func TestParseAccessTokenRequiresSecret(t *testing.T) {
	if _, err := ParseAccessToken(config.JWTConfig{}, "x"); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}
