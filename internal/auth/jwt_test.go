package auth

import (
	"errors"
	"testing"
	"time"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, "user-1", "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected user-1, got %q", claims.UserID)
	}
	if claims.Nickname != "alice" {
		t.Fatalf("expected alice, got %q", claims.Nickname)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateToken(cfg, "user-1", "")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	other := testJWTConfig()
	other.Secret = []byte("a-different-secret")
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.TTL = -time.Minute

	token, err := GenerateToken(cfg, "user-1", "")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestTokenRejectsWrongIssuerOrAudience(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateToken(cfg, "user-1", "")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	badIssuer := testJWTConfig()
	badIssuer.Issuer = "someone-else"
	if _, err := ValidateToken(badIssuer, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for issuer mismatch, got %v", err)
	}

	badAudience := testJWTConfig()
	badAudience.Audience = "another-service"
	if _, err := ValidateToken(badAudience, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for audience mismatch, got %v", err)
	}
}

func TestTokenRejectsEmptyUserID(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateToken(cfg, "", "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ValidateToken(cfg, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty user id, got %v", err)
	}
}

func TestVerifier(t *testing.T) {
	cfg := testJWTConfig()
	v := NewVerifier(cfg)

	token, err := GenerateToken(cfg, "user-1", "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected user-1, got %q", claims.UserID)
	}

	if _, err := v.Verify("not-a-token"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}
