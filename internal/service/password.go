package service

import (
	"unicode"
	"unicode/utf8"

	apperrors "github.com/publicvoice/portal/internal/errors"
)

// MinPasswordLength matches the backend's registration rule.
const MinPasswordLength = 8

// ValidatePassword applies the backend's password rule locally so obvious mistakes are
// reported without a round trip: at least 8 characters with a digit and a letter.
func ValidatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return apperrors.ValidationField("password", "Password must be at least 8 characters")
	}

	var hasDigit, hasLetter bool
	for _, r := range pw {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	if !hasDigit {
		return apperrors.ValidationField("password", "Password must contain at least one digit")
	}
	if !hasLetter {
		return apperrors.ValidationField("password", "Password must contain at least one letter")
	}
	return nil
}
