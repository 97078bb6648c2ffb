package types

import "errors"

// Task schema errors
var (
	// ErrInvalidTask is returned when a task descriptor is malformed
	ErrInvalidTask = errors.New("invalid task descriptor")

	// ErrInvalidMapping is returned when a column mapping is malformed
	ErrInvalidMapping = errors.New("invalid column mapping")
)
