package security

import (
	"errors"
	"testing"
	"time"

	"github.com/ticketdesk/auth-service/internal/domain"
)

func newTestManager() *JWTManager {
	return NewJWTManager(
		"ticketdesk",
		"ticketdesk-api",
		"abcdefghijklmnopqrstuvwxyz123456",
		"abcdefghijklmnopqrstuvwxyz654321",
	)
}

func testUser() *domain.User {
	return &domain.User{
		ID:       42,
		Username: "alice",
		Email:    "alice@example.com",
		Role:     domain.RoleReporter,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	mgr := newTestManager()
	raw, err := mgr.SignAccessToken(testUser(), 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := mgr.ParseAccessToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Username != "alice" || claims.Email != "alice@example.com" {
		t.Fatalf("identity claims missing: %+v", claims)
	}
	if claims.Role != "reporter" {
		t.Fatalf("unexpected role claim %q", claims.Role)
	}
	if id, err := claims.UserID(); err != nil || id != 42 {
		t.Fatalf("UserID = %d, %v", id, err)
	}
	if !claims.ExpiresAt.After(time.Now()) {
		t.Fatal("expected future expiry at issuance")
	}
}

func TestRefreshTokenOmitsIdentityClaims(t *testing.T) {
	mgr := newTestManager()
	raw, err := mgr.SignRefreshToken(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := mgr.ParseRefreshToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Username != "" || claims.Email != "" || claims.Role != "" {
		t.Fatalf("refresh token should not carry identity claims: %+v", claims)
	}
}

func TestParseRejectsWrongTokenType(t *testing.T) {
	mgr := newTestManager()
	access, err := mgr.SignAccessToken(testUser(), 15*time.Minute)
	if err != nil {
		t.Fatalf("sign access: %v", err)
	}
	refresh, err := mgr.SignRefreshToken(testUser(), time.Hour)
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}

	if _, err := mgr.ParseRefreshToken(access); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("access token through refresh parser: got %v, want ErrWrongTokenType", err)
	}
	if _, err := mgr.ParseAccessToken(refresh); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("refresh token through access parser: got %v, want ErrWrongTokenType", err)
	}
}

func TestParseRejectsExpiredAndMalformed(t *testing.T) {
	mgr := newTestManager()
	raw, err := mgr.SignAccessToken(testUser(), -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: got %v, want ErrInvalidToken", err)
	}
	if _, err := mgr.ParseAccessToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("malformed token: got %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	mgr := newTestManager()
	other := NewJWTManager("ticketdesk", "ticketdesk-api",
		"00000000000000000000000000000000", "11111111111111111111111111111111")
	raw, err := other.SignAccessToken(testUser(), 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign signature: got %v, want ErrInvalidToken", err)
	}
}
