package auth

import (
	"strings"
	"testing"
)

func TestGenerateServiceKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env        string
		wantPrefix string
	}{
		{EnvLive, "nk_live_"},
		{EnvTest, "nk_test_"},
		{"", "nk_live_"},
		{"staging", "nk_live_"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()

			key, err := GenerateServiceKey(tt.env)
			if err != nil {
				t.Fatalf("GenerateServiceKey failed: %v", err)
			}
			if !strings.HasPrefix(key.Plaintext, tt.wantPrefix) {
				t.Errorf("Key should start with %s, got: %s", tt.wantPrefix, key.Plaintext)
			}
			if len(key.Prefix) != KeyPrefixLen {
				t.Errorf("Prefix should be %d chars, got: %d", KeyPrefixLen, len(key.Prefix))
			}
			if !ValidateKeyFormat(key.Plaintext) {
				t.Errorf("generated key does not match format: %s", key.Plaintext)
			}

			match, err := VerifySecret(key.Plaintext, key.Hash)
			if err != nil || !match {
				t.Errorf("hash should verify plaintext: match=%v err=%v", match, err)
			}
		})
	}
}

func TestGenerateServiceKey_UniqueSecrets(t *testing.T) {
	t.Parallel()

	const numKeys = 20
	seen := make(map[string]bool, numKeys)

	for i := 0; i < numKeys; i++ {
		key, err := GenerateServiceKey(EnvTest)
		if err != nil {
			t.Fatalf("GenerateServiceKey failed: %v", err)
		}
		parsed, err := ParseServiceKey(key.Plaintext)
		if err != nil {
			t.Fatalf("ParseServiceKey failed: %v", err)
		}
		if seen[parsed.Secret] {
			t.Errorf("Duplicate secret found at iteration %d", i)
		}
		seen[parsed.Secret] = true
	}
}

func TestParseServiceKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		key        string
		wantErr    bool
		wantEnv    string
		wantPrefix string
	}{
		{
			name:       "valid live key",
			key:        "nk_live_abc123_0123456789abcdef0123456789abcdef",
			wantEnv:    "live",
			wantPrefix: "abc123",
		},
		{
			name:       "valid test key",
			key:        "nk_test_fff000_ffffffffffffffffffffffffffffffff",
			wantEnv:    "test",
			wantPrefix: "fff000",
		},
		{name: "empty", key: "", wantErr: true},
		{name: "wrong product prefix", key: "pk_live_abc123_0123456789abcdef0123456789abcdef", wantErr: true},
		{name: "unknown env", key: "nk_prod_abc123_0123456789abcdef0123456789abcdef", wantErr: true},
		{name: "short secret", key: "nk_live_abc123_0123", wantErr: true},
		{name: "uppercase hex", key: "nk_live_ABC123_0123456789abcdef0123456789abcdef", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parsed, err := ParseServiceKey(tt.key)
			if tt.wantErr {
				if err != ErrInvalidKeyFormat {
					t.Errorf("expected ErrInvalidKeyFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if parsed.Env != tt.wantEnv || parsed.Prefix != tt.wantPrefix {
				t.Errorf("got env=%s prefix=%s, want env=%s prefix=%s", parsed.Env, parsed.Prefix, tt.wantEnv, tt.wantPrefix)
			}
		})
	}
}
