package domain

import "errors"

var (
	// ErrAuthFailure is the only failure a credential or token caller ever sees.
	ErrAuthFailure = errors.New("authentication failed")

	ErrNotFound        = errors.New("entity not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrDeserialization = errors.New("deserialization failed")
	ErrForbidden       = errors.New("forbidden")

	// ErrInvalidTransition is returned when an ActionRequest leaves a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTokenUsed is returned by Token.Use on a second call.
	ErrTokenUsed = errors.New("token already used")
)
