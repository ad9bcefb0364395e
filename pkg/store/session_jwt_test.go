package store

import (
	"testing"
	"time"
)

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok || userID != "user-1" {
		t.Fatalf("unexpected verify result: ok=%v userID=%q", ok, userID)
	}
}

func TestJWTSessionStoreRejectsExpiredToken(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", -2*time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestJWTSessionStoreRejectsWrongSecret(t *testing.T) {
	signer, _ := NewJWTSessionStore("secret-a", time.Minute)
	verifier, _ := NewJWTSessionStore("secret-b", time.Minute)

	token, err := signer.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := verifier.GetUserIDByToken(token); ok {
		t.Fatalf("expected signature mismatch to be rejected")
	}
}

func TestJWTSessionStoreRejectsGarbage(t *testing.T) {
	s, _ := NewJWTSessionStore("test-secret", time.Minute)
	if _, ok, err := s.GetUserIDByToken("not-a-jwt"); ok || err != nil {
		t.Fatalf("expected garbage token to be not found, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreRequiresSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("  ", time.Minute); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
}
