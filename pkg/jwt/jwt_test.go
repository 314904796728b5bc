package jwt

import (
	"testing"
	"time"

	"caqm-backend/config"

	"github.com/google/uuid"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Minute})
	userID := uuid.New()

	token, tokenID, err := svc.GenerateAccessToken(userID, "admin@caqm.com", 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != userID || claims.RoleID != 1 || claims.TokenID != tokenID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != AccessToken {
		t.Fatalf("expected access token, got %s", claims.TokenType)
	}
}

func TestValidateToken_RejectsWrongSecretAndExpired(t *testing.T) {
	issuer := NewJWTService(config.JWTConfig{Secret: "issuer-secret", AccessExpiry: time.Minute})
	token, _, err := issuer.GenerateAccessToken(uuid.New(), "pat@caqm.com", 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := NewJWTService(config.JWTConfig{Secret: "other-secret"})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("expected signature error")
	}

	expired := NewJWTService(config.JWTConfig{Secret: "issuer-secret", AccessExpiry: -time.Minute})
	stale, _, err := expired.GenerateAccessToken(uuid.New(), "pat@caqm.com", 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := expired.ValidateToken(stale); err == nil {
		t.Fatal("expected expiry error")
	}
}
