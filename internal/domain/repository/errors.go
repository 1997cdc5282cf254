package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")
	// ErrCodeInUse is returned when another user already holds the verification code.
	ErrCodeInUse = errors.New("verification code in use")
)
