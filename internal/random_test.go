package internal

import (
	"strings"
	"testing"
)

func TestNewAccessKeyID(t *testing.T) {
	a, err := NewAccessKeyID()
	if err != nil {
		t.Fatalf("NewAccessKeyID failed: %v", err)
	}
	b, err := NewAccessKeyID()
	if err != nil {
		t.Fatalf("NewAccessKeyID failed: %v", err)
	}
	if len(a) != 20 || !strings.HasPrefix(a, "ASIA") {
		t.Fatalf("unexpected key id %q", a)
	}
	if strings.ToUpper(a) != a {
		t.Fatalf("expected upper-case key id, got %q", a)
	}
	if a == b {
		t.Fatalf("expected distinct key ids")
	}
}

func TestNewSecretAccessKey(t *testing.T) {
	s, err := NewSecretAccessKey()
	if err != nil {
		t.Fatalf("NewSecretAccessKey failed: %v", err)
	}
	if len(s) != 40 {
		t.Fatalf("expected 40 characters, got %d", len(s))
	}
}

func TestNewSessionToken(t *testing.T) {
	if _, err := NewSessionToken(8); err == nil {
		t.Fatalf("expected error for short token")
	}
	tok, err := NewSessionToken(64)
	if err != nil {
		t.Fatalf("NewSessionToken failed: %v", err)
	}
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("expected url-safe token, got %q", tok)
	}
}
