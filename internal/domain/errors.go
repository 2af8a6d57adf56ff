package domain

import "errors"

// Sentinel errors returned by collaborators (credential store, file storage).
// Core operations translate them into Result failures at their boundary.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateRole     = errors.New("role already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
)
