package security

import (
	"testing"
	"time"

	"github.com/username/zynbudget/backend/src/config"
)

func init() {
	config.Cfg = &config.AppConfig{
		AccessTokenExpiry: time.Minute,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewAuthService("test-secret")

	token, err := svc.GenerateToken("42")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	userID, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if userID != "42" {
		t.Errorf("subject = %q, want 42", userID)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := NewAuthService("secret-a").GenerateToken("42")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewAuthService("secret-b").ValidateToken(token); err == nil {
		t.Error("token signed with a different secret should be rejected")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewAuthService("test-secret")
	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage token should be rejected")
	}
}

func TestGenerateRefreshTokenUniqueness(t *testing.T) {
	svc := NewAuthService("test-secret")
	a, err := svc.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	b, err := svc.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if a == b {
		t.Error("refresh tokens should be unique")
	}
	if len(a) != 64 {
		t.Errorf("refresh token length = %d, want 64 hex chars", len(a))
	}
}
