package buildconfig

import "errors"

var (
	// ErrUnknownMode is returned when the mode is neither production nor development.
	ErrUnknownMode = errors.New("unknown build mode")
	// ErrInvalidValue is returned by the lookup helpers when a value has the wrong type.
	ErrInvalidValue = errors.New("invalid configuration value")
	// ErrMissingValue is returned by the lookup helpers when a required key is absent.
	ErrMissingValue = errors.New("missing configuration value")
)
