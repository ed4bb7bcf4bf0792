package validation

import (
	"strings"
)

var commonPasswordPatterns = []string{
	"password", "123456", "qwerty", "admin", "letmein", "welcome",
}

// ValidatePassword enforces a minimum length and blocks well-known weak
// patterns. The upper bound exists because bcrypt truncates at 72 bytes.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return NewFieldError("password", "must be at least 8 characters")
	}

	if len(password) > 72 {
		return NewFieldError("password", "must not exceed 72 characters")
	}

	lower := strings.ToLower(password)
	for _, pattern := range commonPasswordPatterns {
		if strings.Contains(lower, pattern) {
			return NewFieldError("password", "is too common, please choose a stronger one")
		}
	}

	return nil
}
