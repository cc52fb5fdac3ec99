package cache

import (
	"testing"
)

func TestHashKey_Deterministic(t *testing.T) {
	t.Parallel()

	in := "initiate:u_123:someone@example.com"

	hash1 := hashKey(in)
	hash2 := hashKey(in)

	if hash1 != hash2 {
		t.Error("Same input should produce same hash")
	}
}

func TestHashKey_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"email", "someone@example.com"},
		{"token", "mrg_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b"},
		{"ip", "192.168.1.100"},
		{"empty", ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := hashKey(test.in); len(got) != 16 {
				t.Errorf("expected 16 hex chars, got %d (%q)", len(got), got)
			}
		})
	}
}

func TestHashKey_Distinct(t *testing.T) {
	t.Parallel()

	if hashKey("a@example.com") == hashKey("b@example.com") {
		t.Error("different inputs should produce different hashes")
	}
}
