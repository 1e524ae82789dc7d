package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrResolutionFailed      = errors.New("entity resolution failed")
	ErrIntegrityViolation    = errors.New("data integrity violation")
)
