package security

import (
	"strings"
	"testing"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := testPasswordConfig()

	encoded, err := HashPassword("correct horse battery staple", cfg)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format %q", encoded)
	}

	ok, err := VerifyPassword("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Errorf("expected matching password to verify")
	}

	ok, err = VerifyPassword("wrong password", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword mismatch: %v", err)
	}
	if ok {
		t.Errorf("expected mismatched password to fail")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword("", testPasswordConfig()); err == nil {
		t.Errorf("expected error for empty password")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"plainstring",
		"$argon2i$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8,t=1,p=1$!!$aGFzaA",
	}
	for _, encoded := range cases {
		if _, err := VerifyPassword("pw", encoded); err == nil {
			t.Errorf("expected error for hash %q", encoded)
		}
	}
}

func TestGenerateDownloadToken(t *testing.T) {
	a, err := GenerateDownloadToken()
	if err != nil {
		t.Fatalf("GenerateDownloadToken: %v", err)
	}
	if len(a) != DownloadTokenBytes*2 {
		t.Fatalf("token length = %d, want %d", len(a), DownloadTokenBytes*2)
	}

	b, err := GenerateDownloadToken()
	if err != nil {
		t.Fatalf("GenerateDownloadToken: %v", err)
	}
	if a == b {
		t.Errorf("expected distinct tokens")
	}
}
