package config

import "errors"

var (
	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrUnknownBackend indicates an unsupported cache or store backend.
	ErrUnknownBackend = errors.New("config: unknown backend")
)
