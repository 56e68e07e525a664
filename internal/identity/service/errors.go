package service

import "errors"

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountDisabled is returned only after the password verified.
	ErrAccountDisabled = errors.New("account is deactivated")
	// ErrEmailAlreadyRegistered means a user with the email exists.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrUserNotFound means the target user does not exist in the caller's organization.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden means the caller's stored role does not allow the operation.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports one invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
