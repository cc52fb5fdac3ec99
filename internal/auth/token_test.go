package auth

import (
	"strings"
	"testing"
)

func TestGenerateSessionToken(t *testing.T) {
	t.Parallel()

	token, err := GenerateSessionToken(EnvLive)
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}

	if !strings.HasPrefix(token.Plaintext, "cs_live_") {
		t.Errorf("unexpected token prefix: %q", token.Plaintext)
	}
	if len(token.Prefix) != TokenPrefixLen {
		t.Errorf("expected prefix length %d, got %d", TokenPrefixLen, len(token.Prefix))
	}
	if !ValidateTokenFormat(token.Plaintext) {
		t.Errorf("generated token does not validate: %q", token.Plaintext)
	}

	ok, err := VerifySecret(token.Plaintext, token.Hash)
	if err != nil {
		t.Fatalf("VerifySecret returned error: %v", err)
	}
	if !ok {
		t.Error("generated token does not verify against its own hash")
	}
}

func TestGenerateSessionTokenUnknownEnv(t *testing.T) {
	t.Parallel()

	token, err := GenerateSessionToken("staging")
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}
	if !strings.HasPrefix(token.Plaintext, "cs_live_") {
		t.Errorf("unknown env should default to live, got %q", token.Plaintext)
	}
}

func TestParseSessionToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid_live", "cs_live_7a9b3c_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", false},
		{"valid_test", "cs_test_7a9b3c_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", false},
		{"wrong_prefix", "pk_live_7a9b3c_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", true},
		{"short_secret", "cs_live_7a9b3c_4f8d2e1b", true},
		{"uppercase_hex", "cs_live_7A9B3C_4F8D2E1B9C7A5F3D2E1B9C7A5F3D2E1B", true},
		{"empty", "", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			parsed, err := ParseSessionToken(test.token)
			if test.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", test.token)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if parsed.Prefix == "" || parsed.Secret == "" {
				t.Errorf("parsed token has empty parts: %+v", parsed)
			}
		})
	}
}

func TestVerifySecretRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("correct horse")
	if err != nil {
		t.Fatalf("HashSecret returned error: %v", err)
	}

	ok, err := VerifySecret("battery staple", hash)
	if err != nil {
		t.Fatalf("VerifySecret returned error: %v", err)
	}
	if ok {
		t.Error("wrong secret verified against hash")
	}
}

func TestVerifySecretInvalidHashFormat(t *testing.T) {
	t.Parallel()

	if _, err := VerifySecret("anything", "not-a-phc-string"); err == nil {
		t.Error("expected error for malformed hash")
	}
}
