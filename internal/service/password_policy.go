package service

import (
	"fmt"
	"unicode"

	"github.com/ticketdesk/auth-service/internal/security"
)

const minPasswordLength = 8

// ValidatePassword enforces the account password policy: at least 8
// characters, at least one letter and one digit, and no more than bcrypt's
// 72-byte input limit. Overlong passwords are rejected loudly rather than
// silently truncated.
func ValidatePassword(password string) error {
	if len(password) > security.MaxPasswordBytes {
		return fmt.Errorf("%w: longer than %d bytes", ErrWeakPassword, security.MaxPasswordBytes)
	}
	if len([]rune(password)) < minPasswordLength {
		return fmt.Errorf("%w: shorter than %d characters", ErrWeakPassword, minPasswordLength)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: needs at least one letter and one digit", ErrWeakPassword)
	}
	return nil
}
