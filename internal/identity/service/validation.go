package service

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
	maxNameLen     = 100
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	if !emailPattern.MatchString(email) {
		return invalid("email", "invalid email format")
	}
	return nil
}

// validatePassword requires 8 to 72 bytes with at least one letter and one digit.
func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return invalid("password", "password must be at least 8 characters")
	}
	if len(password) > maxPasswordLen {
		return invalid("password", "password must be at most 72 bytes")
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
		return invalid("password", "password must contain a letter and a digit")
	}
	return nil
}

func validateName(field, value string, required bool) error {
	value = strings.TrimSpace(value)
	if value == "" && required {
		return invalid(field, field+" is required")
	}
	if len(value) > maxNameLen {
		return invalid(field, field+" is too long")
	}
	return nil
}
