package security

import (
	"Chatline/internal/api/config"
	"testing"
)

func TestGenerateAndValidateToken(t *testing.T) {
	Configure(config.JWTConfig{Secret: "test-secret", Issuer: "test", ExpirationHours: 1})

	token, jti, _, err := GenerateToken(42)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 || claims.ID != jti {
		t.Fatalf("claims = %+v", claims)
	}

	sig, err := ExtractSignature(token)
	if err != nil || sig == "" {
		t.Fatalf("signature: %q %v", sig, err)
	}
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	Configure(config.JWTConfig{Secret: "test-secret"})
	token, _, _, err := GenerateToken(7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	Configure(config.JWTConfig{Secret: "other-secret"})
	defer Configure(config.JWTConfig{Secret: "test-secret"})

	if _, err = ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret must fail")
	}
	if _, err = ValidateToken("not-a-token"); err == nil {
		t.Fatal("garbage must fail")
	}
	if _, err = ExtractSignature("a.b"); err == nil {
		t.Fatal("two-part token must fail")
	}
}
