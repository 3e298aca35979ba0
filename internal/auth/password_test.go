package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", hash)
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Fatal("expected wrong password to fail")
	}
}

func TestVerifyPasswordEmptyHash(t *testing.T) {
	t.Parallel()

	if VerifyPassword("", "") {
		t.Fatal("empty hash must never verify")
	}
	if VerifyPassword("", "anything") {
		t.Fatal("empty hash must never verify")
	}
}

func TestGenerateSessionSecret(t *testing.T) {
	t.Parallel()

	a, err := GenerateSessionSecret()
	if err != nil {
		t.Fatalf("GenerateSessionSecret: %v", err)
	}
	b, err := GenerateSessionSecret()
	if err != nil {
		t.Fatalf("GenerateSessionSecret: %v", err)
	}
	if len(a) < 40 {
		t.Fatalf("secret too short: %d chars", len(a))
	}
	if a == b {
		t.Fatal("secrets must be unique")
	}
}

func TestConstantTimeEquals(t *testing.T) {
	t.Parallel()

	if !ConstantTimeEquals("abc", "abc") {
		t.Fatal("equal strings must match")
	}
	if ConstantTimeEquals("abc", "abd") {
		t.Fatal("different strings must not match")
	}
	if ConstantTimeEquals("abc", "abcd") {
		t.Fatal("different lengths must not match")
	}
}
