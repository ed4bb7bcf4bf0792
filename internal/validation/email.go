package validation

import (
	"net/mail"
)

// ValidateEmail checks format via the stdlib RFC 5322 parser and the
// RFC 5321 overall length limit.
func ValidateEmail(email string) error {
	if email == "" {
		return NewFieldError("email", "is required")
	}

	if len(email) > 254 {
		return NewFieldError("email", "is too long (max 254 characters)")
	}

	_, err := mail.ParseAddress(email)
	if err != nil {
		return NewFieldError("email", "must be a valid email address")
	}

	return nil
}
