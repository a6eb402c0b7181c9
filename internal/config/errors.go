package config

import "errors"

var (
	// ErrEmptyDocument is returned when the configuration file holds no YAML mapping.
	ErrEmptyDocument = errors.New("configuration document is empty")
	// ErrMissingKey is returned when a required section or key is absent from the configuration file.
	ErrMissingKey = errors.New("missing required configuration key")
	// ErrInvalidConfig is returned when the resolved configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)
