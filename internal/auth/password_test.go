package auth

import (
	"errors"
	"testing"
)

func TestPasswordHashingLifecycle(t *testing.T) {
	password := "parents-rule-2026"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("unexpected error hashing password: %v", err)
	}
	if hash == "" {
		t.Fatal("expected hash to be populated")
	}

	if err := VerifyPassword(hash, password); err != nil {
		t.Fatalf("expected password to verify, got error: %v", err)
	}

	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("expected verification to fail for wrong password")
	}
}

func TestHashPasswordRejectsBlank(t *testing.T) {
	if _, err := HashPassword("   "); !errors.Is(err, ErrPasswordEmpty) {
		t.Fatalf("expected ErrPasswordEmpty, got %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"空密码", "", ErrPasswordEmpty},
		{"纯空白", "   ", ErrPasswordEmpty},
		{"过短", "abc123", ErrPasswordTooShort},
		{"刚好达标", "abcd1234", nil},
		{"多字节字符按字符数计", "密码密码密码密码", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePassword(tt.password); !errors.Is(err, tt.want) {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, err, tt.want)
			}
		})
	}
}
