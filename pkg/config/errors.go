package config

import "errors"

var (
	// ErrInvalidConfig covers malformed YAML, unknown keys and out-of-range
	// values.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrMissingRequired means a setting that another setting depends on
	// is empty, such as a Redis URL for the redis store.
	ErrMissingRequired = errors.New("config: missing required field")
)
