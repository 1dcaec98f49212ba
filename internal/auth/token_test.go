package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	s, err := NewSigner("table-secret", 0)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	tok, err := s.Issue("g-1", "Alice", true)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.GameID != "g-1" || c.Player != "Alice" || !c.Host {
		t.Fatalf("claims=%+v", c)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	s, _ := NewSigner("table-secret", 0)
	other, _ := NewSigner("other-secret", 0)
	tok, _ := s.Issue("g-1", "Alice", false)

	forged, _ := s.Issue("g-1", "Mallory", true)
	payload, _, _ := strings.Cut(forged, ".")
	_, sig, _ := strings.Cut(tok, ".")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMalformedToken},
		{name: "no dot", token: "abc", want: ErrMalformedToken},
		{name: "swapped payload", token: payload + "." + sig, want: ErrBadSignature},
		{name: "garbage sig", token: payload + ".!!!", want: ErrMalformedToken},
	}
	for _, tc := range tests {
		if _, err := s.Verify(tc.token); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
	if _, err := other.Verify(tok); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("foreign key accepted: %v", err)
	}
}

func TestVerifyExpiry(t *testing.T) {
	s, _ := NewSigner("table-secret", time.Hour)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	tok, _ := s.Issue("g-1", "Alice", false)

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := s.Verify(tok); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestNewSignerRequiresSecret(t *testing.T) {
	if _, err := NewSigner("  ", 0); err == nil {
		t.Fatalf("expected blank secret to fail")
	}
}
