package auth

import (
	"strings"
	"testing"
)

func TestHashPasswordAndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery") {
		t.Error("expected matching password")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("expected mismatch for wrong password")
	}
}

func TestCheckPassword_EmptyHash(t *testing.T) {
	if CheckPassword("", "anything-goes") {
		t.Error("empty hash must never match")
	}
}

func TestUnusablePasswordHash(t *testing.T) {
	a, err := unusablePasswordHash()
	if err != nil {
		t.Fatalf("unusablePasswordHash: %v", err)
	}
	b, _ := unusablePasswordHash()

	if !strings.HasPrefix(a, "oauth:") || len(a) != len("oauth:")+64 {
		t.Errorf("unexpected format: %q", a)
	}
	if a == b {
		t.Error("hashes must be random")
	}
	for _, candidate := range []string{"", a, strings.TrimPrefix(a, "oauth:"), "password123"} {
		if CheckPassword(a, candidate) {
			t.Errorf("unusable hash matched %q", candidate)
		}
	}
}
