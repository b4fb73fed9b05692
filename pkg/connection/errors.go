package connection

import "errors"

// Connection configuration and lifecycle error types.
var (
	// ErrInvalidDSN is returned when a DSN string cannot be parsed or a
	// settings object carries no usable DSN.
	ErrInvalidDSN = errors.New("invalid DSN")

	// ErrMissingName is returned when settings are built without a name.
	ErrMissingName = errors.New("connection settings require a name")

	// ErrMissingKey is returned when a lifecycle call is made with an empty
	// context key.
	ErrMissingKey = errors.New("execution context key is required")
)
