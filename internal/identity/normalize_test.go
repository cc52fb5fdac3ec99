package identity

import (
	"errors"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"lowercase_passthrough", "user@example.com", "user@example.com", false},
		{"case_folded", "User@Example.COM", "user@example.com", false},
		{"trimmed", "  user@example.com \n", "user@example.com", false},
		{"missing_at", "user.example.com", "", true},
		{"missing_domain", "user@", "", true},
		{"missing_tld", "user@example", "", true},
		{"empty", "", "", true},
		{"internal_space", "us er@example.com", "", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := NormalizeEmail(test.raw)
			if test.wantErr {
				if !errors.Is(err, ErrMalformedIdentifier) {
					t.Fatalf("expected ErrMalformedIdentifier, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != test.want {
				t.Errorf("expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestParseExternalID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		raw         string
		wantProv    string
		wantAccount string
		wantErr     bool
	}{
		{"plain", "google:108234", "google", "108234", false},
		{"case_folded", "GitHub:AbC123", "github", "abc123", false},
		{"separators_stripped", "google:1082-34_5.6", "google", "1082345", false},
		{"qualifier_dropped", "okta:user123#primary", "okta", "user123", false},
		{"trimmed", " google : 108234 ", "google", "108234", false},
		{"no_separator", "google108234", "", "", true},
		{"empty_provider", ":108234", "", "", true},
		{"empty_account", "google:", "", "", true},
		{"only_separators", "google:---", "", "", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			prov, account, err := ParseExternalID(test.raw)
			if test.wantErr {
				if !errors.Is(err, ErrMalformedIdentifier) {
					t.Fatalf("expected ErrMalformedIdentifier, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if prov != test.wantProv || account != test.wantAccount {
				t.Errorf("expected (%q, %q), got (%q, %q)", test.wantProv, test.wantAccount, prov, account)
			}
		})
	}
}
