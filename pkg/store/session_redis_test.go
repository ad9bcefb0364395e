package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisSessionStore(mr.Addr(), "", time.Minute)

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || userID != "user-1" {
		t.Fatalf("unexpected result: ok=%v userID=%q", ok, userID)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); ok || err != nil {
		t.Fatalf("expected deleted session to be gone, ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionStoreExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisSessionStore(mr.Addr(), "", time.Minute)

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, err := s.GetUserIDByToken(token); ok || err != nil {
		t.Fatalf("expected expired session to be gone, ok=%v err=%v", ok, err)
	}
}
