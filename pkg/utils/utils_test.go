package utils

import (
	"strings"
	"testing"
)

func TestGenerateSessionID(t *testing.T) {
	id1 := GenerateSessionID()
	id2 := GenerateSessionID()

	if id1 == id2 {
		t.Error("expected different session IDs")
	}

	if !strings.HasPrefix(id1, "session_") {
		t.Errorf("expected prefix 'session_', got %s", id1)
	}
}

func TestGenerateClientID(t *testing.T) {
	id1 := GenerateClientID()
	id2 := GenerateClientID()

	if id1 == id2 {
		t.Error("expected different client IDs")
	}

	if !strings.HasPrefix(id1, "client_") {
		t.Errorf("expected prefix 'client_', got %s", id1)
	}

	suffix := strings.TrimPrefix(id1, "client_")
	if len(suffix) != 16 {
		t.Errorf("expected 16-character suffix, got %d", len(suffix))
	}
	for _, r := range suffix {
		if !strings.ContainsRune(randomCharset, r) {
			t.Errorf("unexpected character %q in client ID", r)
		}
	}
}

func TestRandomChars(t *testing.T) {
	a := RandomChars(32)
	b := RandomChars(32)

	if len(a) != 32 {
		t.Errorf("expected 32 characters, got %d", len(a))
	}
	if a == b {
		t.Error("expected different random strings")
	}
	for _, r := range a {
		if !strings.ContainsRune(randomCharset, r) {
			t.Errorf("unexpected character %q", r)
		}
	}
}
