package model

import (
	"errors"
	"fmt"
)

var (
	// Input and conflict errors
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidToken       = errors.New("invalid token")

	ErrUserNotFound = errors.New("user not found")

	// Infrastructure errors
	ErrHashing       = errors.New("password hashing failed")
	ErrStore         = errors.New("credential store failure")
	ErrMLUnavailable = errors.New("generation service unavailable")
)

// DuplicateKeyError reports which unique field collided on create.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key: %s", e.Field)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}
