package auth

import "errors"

// Validation errors: malformed command arguments.
var (
	ErrInvalidFormat = errors.New("registration must be <username> <password>")
	ErrUsage         = errors.New("login requires a username and a password")
)

// Authentication failures.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrAlreadyRegistered = errors.New("already registered")
)

// External call failures.
var (
	ErrDeliveryFailed = errors.New("private message delivery failed")
	ErrRoleGrant      = errors.New("role grant failed")
)
