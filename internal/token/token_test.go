package token

import (
	"strings"
	"testing"
)

func TestNewShapeAndAlphabet(t *testing.T) {
	tok, err := New(DefaultLength)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(tok, Prefix) {
		t.Fatalf("token %q missing prefix", tok)
	}
	body := strings.TrimPrefix(tok, Prefix)
	if len(body) != DefaultLength {
		t.Fatalf("expected %d random chars, got %d", DefaultLength, len(body))
	}
	for _, r := range body {
		if !strings.ContainsRune(alphabet, r) {
			t.Fatalf("token %q contains %q outside the alphabet", tok, r)
		}
	}
}

func TestNewDoesNotRepeat(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, err := New(DefaultLength)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("token %q generated twice", tok)
		}
		seen[tok] = struct{}{}
	}
}
