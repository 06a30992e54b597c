package store

import "errors"

var (
	// ErrNotFound is returned when no report exists for an id and format.
	ErrNotFound = errors.New("store: report not found")

	// ErrInvalidID is returned for a scan ID with unsafe characters.
	ErrInvalidID = errors.New("store: invalid scan id")
)
