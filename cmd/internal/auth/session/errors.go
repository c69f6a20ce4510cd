package session

import "errors"

var (
	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// ErrInvalidInput is returned when required collaborators are missing.
	ErrInvalidInput = errors.New("invalid input")
)
