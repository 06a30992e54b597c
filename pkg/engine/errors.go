package engine

import "errors"

var (
	// ErrNoStore is returned by report lookups when persistence is off.
	ErrNoStore = errors.New("engine: no report store configured")

	// ErrInvalidRequest wraps malformed scan requests.
	ErrInvalidRequest = errors.New("engine: invalid request")
)
