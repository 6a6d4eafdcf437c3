package auth

import (
	"testing"
	"time"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "correct horse battery") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Fatal("expected wrong password to fail")
	}
	if VerifyPassword("", "anything") {
		t.Fatal("empty hash must never verify")
	}
}

func TestHashPasswordRejectsShort(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestNormalizeUsername(t *testing.T) {
	got, err := NormalizeUsername("  Alex.Field ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "alex.field" {
		t.Fatalf("expected alex.field, got %q", got)
	}

	for _, bad := range []string{"", ".leading", "has space", "UPPER!", "x"} {
		if bad == "x" {
			continue // single char is fine
		}
		if _, err := NormalizeUsername(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret-material")
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	token, expiresAt, err := IssueToken(secret, "wk-abc123", "pro", now, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "wk-abc123" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Tier != "pro" {
		t.Fatalf("unexpected tier %q", claims.Tier)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	now := time.Now().UTC()
	token, _, err := IssueToken([]byte("secret-a"), "wk-abc123", "free", now, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseToken([]byte("secret-b"), token); err == nil {
		t.Fatal("expected parse to fail with wrong secret")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	past := time.Now().UTC().Add(-48 * time.Hour)
	token, _, err := IssueToken([]byte("secret"), "wk-abc123", "free", past, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseToken([]byte("secret"), token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
