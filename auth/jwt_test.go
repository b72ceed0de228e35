package auth

import (
	"errors"
	"testing"
	"time"

	"linkguard/model"
)

func testUser() model.User {
	return model.User{
		ID:    "u1",
		Email: "alice@example.com",
		Role:  model.RoleAdmin,
	}
}

func TestNewJWTManager_RequiresSecret(t *testing.T) {
	_, err := NewJWTManager("", time.Hour)
	if !errors.Is(err, ErrMissingSecret) {
		t.Errorf("NewJWTManager() error = %v, want ErrMissingSecret", err)
	}
}

func TestGenerateAndValidate(t *testing.T) {
	manager, err := NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	token, err := manager.Generate(testUser())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("claims.UserID = %s, want u1", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("claims.Email = %s, want alice@example.com", claims.Email)
	}
	if claims.Role != model.RoleAdmin {
		t.Errorf("claims.Role = %s, want admin", claims.Role)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer, _ := NewJWTManager("secret-a", time.Hour)
	verifier, _ := NewJWTManager("secret-b", time.Hour)

	token, err := issuer.Generate(testUser())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := verifier.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	manager, _ := NewJWTManager("test-secret", -time.Minute)

	token, err := manager.Generate(testUser())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := manager.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	manager, _ := NewJWTManager("test-secret", time.Hour)

	if _, err := manager.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}
