package scanner

import "errors"

var (
	// ErrInvalidTarget is returned for a target that is not an absolute
	// http(s) URL.
	ErrInvalidTarget = errors.New("scanner: invalid target")

	// ErrInvalidScanType is returned for an unknown scan type.
	ErrInvalidScanType = errors.New("scanner: invalid scan type")
)
