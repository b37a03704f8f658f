package service

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// isBcryptHash reports whether stored looks like a bcrypt hash rather than a
// legacy plaintext secret.
func isBcryptHash(stored string) bool {
	if !strings.HasPrefix(stored, "$2a$") && !strings.HasPrefix(stored, "$2b$") && !strings.HasPrefix(stored, "$2y$") {
		return false
	}
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

// checkSecret compares a supplied secret with the stored value. legacy is true
// when the stored value was plaintext and matched, so the caller can rehash it.
func checkSecret(stored, secret string) (match, legacy bool) {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil, false
	}
	if stored == "" {
		return false, false
	}
	ok := subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) == 1
	return ok, ok
}

func (s *Service) hashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
