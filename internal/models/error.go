package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Security subsystem errors
	ErrInvalidSubject   = errors.New("invalid subject key")
	ErrStoreUnavailable = errors.New("backing store unavailable")
	ErrLockoutConflict  = errors.New("lockout decision conflict: retries exhausted")
)
