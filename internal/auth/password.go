package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength 自助注册允许的最短密码长度。
const MinPasswordLength = 8

var (
	ErrPasswordEmpty    = errors.New("password must not be empty")
	ErrPasswordTooShort = errors.New("password is too short")
)

// ValidatePassword 校验自助注册密码的强度要求。
func ValidatePassword(password string) error {
	trimmed := strings.TrimSpace(password)
	if trimmed == "" {
		return ErrPasswordEmpty
	}
	if len([]rune(trimmed)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// HashPassword 对明文密码进行哈希处理
func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrPasswordEmpty
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword 验证密码是否与存储的哈希值匹配
func VerifyPassword(hash, candidate string) error {
	if strings.TrimSpace(hash) == "" {
		return errors.New("stored password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
}
