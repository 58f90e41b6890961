package auth

import "testing"

func TestNewSessionTokenUnique(t *testing.T) {
	first, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken failed: %v", err)
	}
	second, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken failed: %v", err)
	}
	if first == second {
		t.Error("session tokens should be unique")
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first))
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("hash should be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("different tokens should hash differently")
	}
}
